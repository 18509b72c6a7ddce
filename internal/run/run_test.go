package run_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/propensity-cli/internal/model"
	"github.com/KaramelBytes/propensity-cli/internal/run"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	runsDir := t.TempDir()
	r := run.New("run", runsDir)
	r.Inputs["click_data"] = "click_data.csv"
	r.Rows["joined"] = 12
	r.Metrics = &model.Metrics{Accuracy: 0.8, AUCDefined: true, AUC: 0.9}
	r.AddArtifact("plot", r.Path("roc_curve.png"))
	r.AddArtifact("model", "/elsewhere/trained_model.cls")
	done := r.Stage("load")
	done()
	if err := r.Finish(nil); err != nil {
		t.Fatalf("finish: %v", err)
	}

	got, err := run.Load(r.Dir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ID != r.ID || got.Status != run.StatusSucceeded {
		t.Fatalf("unexpected run: %+v", got)
	}
	if got.Rows["joined"] != 12 || got.Metrics == nil || got.Metrics.AUC != 0.9 {
		t.Fatalf("rows/metrics not persisted: %+v", got)
	}
	if got.Artifacts[0].Path != "roc_curve.png" {
		t.Fatalf("expected relative artifact path, got %q", got.Artifacts[0].Path)
	}
	if got.Artifacts[1].Path != "/elsewhere/trained_model.cls" {
		t.Fatalf("expected outside path kept, got %q", got.Artifacts[1].Path)
	}
	if _, ok := got.Stages["load"]; !ok {
		t.Fatalf("missing stage timing")
	}
	if got.FinishedAt == nil {
		t.Fatalf("missing finish time")
	}
	if _, ok := r.Durations()["load"]; !ok {
		t.Fatalf("missing in-process duration")
	}
}

func TestFinishRecordsFailure(t *testing.T) {
	r := run.NewAt("train", filepath.Join(t.TempDir(), "out"), "fixed-id")
	if err := r.Finish(errors.New("boom")); err != nil {
		t.Fatalf("finish: %v", err)
	}
	got, err := run.Load(r.Dir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Status != run.StatusFailed || got.Error != "boom" || got.ID != "fixed-id" {
		t.Fatalf("unexpected run: %+v", got)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := run.Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing manifest")
	}
}

func TestListNewestFirst(t *testing.T) {
	runsDir := t.TempDir()
	older := run.New("run", runsDir)
	older.StartedAt = time.Now().Add(-time.Hour)
	if err := older.Save(); err != nil {
		t.Fatal(err)
	}
	newer := run.New("train", runsDir)
	if err := newer.Save(); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(runsDir, "junk"), 0o755); err != nil {
		t.Fatal(err)
	}

	runs, err := run.List(runsDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != newer.ID {
		t.Fatalf("expected newest first")
	}

	none, err := run.List(filepath.Join(runsDir, "missing"))
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty list for missing dir, got %v %v", none, err)
	}
}
