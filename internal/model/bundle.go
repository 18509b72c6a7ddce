package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sjwhitworth/golearn/ensemble"

	"github.com/KaramelBytes/propensity-cli/internal/dataset"
	"github.com/KaramelBytes/propensity-cli/internal/features"
	"github.com/KaramelBytes/propensity-cli/internal/utils"
)

// Artifact file names inside a model directory.
const (
	ModelFile  = "trained_model.cls"
	BundleFile = "model_bundle.json"

	bundleVersion = 1
)

// Bundle is everything besides the trees needed to score new data the same
// way the training data was scored.
type Bundle struct {
	Version   int                     `json:"version"`
	Features  []string                `json:"features"`
	Encodings dataset.Encodings       `json:"encodings,omitempty"`
	Scaler    features.StandardScaler `json:"scaler"`
	Params    Params                  `json:"params"`
	TrainedAt time.Time               `json:"trained_at"`
}

// Save writes the forest and its bundle into dir.
func Save(dir string, f *Forest, b Bundle) error {
	if !f.Trained() {
		return ErrNotTrained
	}
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	if err := f.rf.Save(filepath.Join(dir, ModelFile)); err != nil {
		return fmt.Errorf("save forest: %w", err)
	}
	b.Version = bundleVersion
	b.Features = f.Names
	b.Params = f.Params
	if b.TrainedAt.IsZero() {
		b.TrainedAt = time.Now().UTC()
	}
	data, err := utils.PrettyJSON(b)
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	if err := utils.SafeWriteFile(filepath.Join(dir, BundleFile), data); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	return nil
}

// Load reads a forest and its bundle from dir.
func Load(dir string) (*Forest, *Bundle, error) {
	data, err := os.ReadFile(filepath.Join(dir, BundleFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("no model bundle in %s", dir)
		}
		return nil, nil, fmt.Errorf("read bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.Version != bundleVersion {
		return nil, nil, fmt.Errorf("unsupported bundle version %d", b.Version)
	}
	if len(b.Features) == 0 || len(b.Scaler.Mean) != len(b.Features) {
		return nil, nil, fmt.Errorf("bundle in %s is incomplete", dir)
	}
	f := NewForest(b.Features, b.Params)
	rf := ensemble.NewRandomForest(f.Params.Trees, f.Params.featuresPerTree(len(f.Names)))
	if err := rf.Load(filepath.Join(dir, ModelFile)); err != nil {
		return nil, nil, fmt.Errorf("load forest: %w", err)
	}
	f.rf = rf
	return f, &b, nil
}
