// Package run records one pipeline execution as a run.json manifest inside
// its output directory.
package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/propensity-cli/internal/model"
	"github.com/KaramelBytes/propensity-cli/internal/utils"
)

const manifestFileName = "run.json"

// Status values.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is the manifest of a pipeline execution persisted on disk.
type Run struct {
	ID         string            `json:"id"`
	Command    string            `json:"command"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Inputs     map[string]string `json:"inputs"`
	Params     map[string]any    `json:"params,omitempty"`
	Artifacts  []Artifact        `json:"artifacts"`
	Metrics    *model.Metrics    `json:"metrics,omitempty"`
	Rows       map[string]int    `json:"rows,omitempty"`
	Stages     map[string]string `json:"stages,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`

	// Not serialized: on-disk location of the run directory
	rootDir   string
	durations map[string]time.Duration
}

// Artifact is a file produced by a run, relative to the run directory.
type Artifact struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// New constructs an in-memory run rooted at runsDir/<id>. Call Save() to
// persist.
func New(command, runsDir string) *Run {
	id := uuid.NewString()
	return NewAt(command, filepath.Join(runsDir, id), id)
}

// NewAt constructs a run with an explicit directory and ID.
func NewAt(command, dir, id string) *Run {
	if id == "" {
		id = uuid.NewString()
	}
	return &Run{
		ID:        id,
		Command:   command,
		Status:    StatusRunning,
		Inputs:    make(map[string]string),
		Rows:      make(map[string]int),
		Stages:    make(map[string]string),
		StartedAt: time.Now().UTC(),
		rootDir:   dir,
		durations: make(map[string]time.Duration),
	}
}

// Load reads run.json from dir.
func Load(dir string) (*Run, error) {
	path := filepath.Join(dir, manifestFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("run not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read run: %w", err)
	}
	var r Run
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("parse run: %w", err)
	}
	r.rootDir = dir
	return &r, nil
}

// Dir returns the run's output directory.
func (r *Run) Dir() string { return r.rootDir }

// Path joins name onto the run directory.
func (r *Run) Path(name string) string { return filepath.Join(r.rootDir, name) }

// Save writes run.json using atomic write.
func (r *Run) Save() error {
	if r.rootDir == "" {
		return errors.New("run directory not set")
	}
	data, err := utils.PrettyJSON(r)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(r.rootDir, manifestFileName), data)
}

// AddArtifact records a produced file. Absolute paths inside the run
// directory are stored relative to it.
func (r *Run) AddArtifact(kind, path string) {
	if rel, err := filepath.Rel(r.rootDir, path); err == nil && !filepath.IsAbs(rel) && rel != "" && rel[0] != '.' {
		path = rel
	}
	r.Artifacts = append(r.Artifacts, Artifact{Kind: kind, Path: path})
}

// Stage starts timing a named stage; call the returned func when it ends.
func (r *Run) Stage(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		if r.durations == nil {
			r.durations = make(map[string]time.Duration)
		}
		r.durations[name] = d
		if r.Stages == nil {
			r.Stages = make(map[string]string)
		}
		r.Stages[name] = d.Round(time.Millisecond).String()
	}
}

// Durations returns the stage timings recorded in this process.
func (r *Run) Durations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(r.durations))
	for k, v := range r.durations {
		out[k] = v
	}
	return out
}

// Finish marks the run done, recording err if non-nil, and saves it.
func (r *Run) Finish(err error) error {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Status = StatusSucceeded
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
	}
	return r.Save()
}

// List loads every run under runsDir, newest first. Directories without a
// readable manifest are skipped.
func List(runsDir string) ([]*Run, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read runs dir: %w", err)
	}
	var runs []*Run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r, err := Load(filepath.Join(runsDir, e.Name()))
		if err != nil {
			continue
		}
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs, nil
}
