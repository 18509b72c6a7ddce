// Package pipeline wires the batch stages together: load, join, engineer,
// scale, split, fit, evaluate, score, rank, plot and export.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/propensity-cli/internal/config"
	"github.com/KaramelBytes/propensity-cli/internal/dataset"
	"github.com/KaramelBytes/propensity-cli/internal/features"
	"github.com/KaramelBytes/propensity-cli/internal/logging"
	"github.com/KaramelBytes/propensity-cli/internal/model"
	"github.com/KaramelBytes/propensity-cli/internal/rank"
	"github.com/KaramelBytes/propensity-cli/internal/run"
)

// Prepared is the joined, feature-engineered data plus the segment.
type Prepared struct {
	Inputs  *dataset.Inputs
	Joined  dataframe.DataFrame
	Join    dataset.JoinStats
	Table   *dataset.FeatureTable
	Segment []string
}

// Trained is a fitted model with its evaluation.
type Trained struct {
	Forest      *model.Forest
	Scaler      *features.StandardScaler
	Scaled      *mat.Dense
	Train, Test []int
	Evaluation  *model.Report
	Importances []float64
	Curve       *model.LearningCurve
}

// Ranked holds the segment scores and the derived top lists.
type Ranked struct {
	Segment  *rank.Result
	Primary  rank.ProductRanking
	Products []rank.ProductRanking
}

// Prepare loads, joins and engineers features. With enc nil, categorical
// encodings are fitted from the data; otherwise they are reused as-is.
func Prepare(cfg *config.Global, feats []string, enc dataset.Encodings, r *run.Run) (*Prepared, error) {
	delim, err := dataset.ParseDelimiter(cfg.Delimiter)
	if err != nil {
		return nil, err
	}
	opt := dataset.LoadOptions{IDColumn: cfg.IDColumn, Delimiter: delim, SheetName: cfg.SheetName}
	paths := dataset.Paths{
		Clicks:       cfg.ClickData,
		Sales:        cfg.SalesData,
		Demographics: cfg.DemographicData,
		Segment:      cfg.SegmentData,
	}
	if r != nil {
		r.Inputs["click_data"] = paths.Clicks
		r.Inputs["sales_data"] = paths.Sales
		r.Inputs["demographic_data"] = paths.Demographics
		r.Inputs["segment_data"] = paths.Segment
	}

	p := &Prepared{}
	done := stage(r, "load")
	p.Inputs, err = dataset.LoadInputs(paths, opt, cfg.ProductColumn)
	done()
	if err != nil {
		return nil, err
	}
	p.Segment = dataset.SegmentIDs(p.Inputs.Segment, cfg.IDColumn)

	done = stage(r, "join")
	p.Joined, p.Join, err = dataset.Join(p.Inputs, cfg.IDColumn)
	done()
	if err != nil {
		return nil, err
	}

	done = stage(r, "features")
	p.Table, err = dataset.Engineer(p.Joined, dataset.EngineerOptions{
		IDColumn:      cfg.IDColumn,
		ProductColumn: cfg.ProductColumn,
		Features:      feats,
		Encodings:     enc,
	})
	done()
	if err != nil {
		return nil, err
	}
	if r != nil {
		r.Rows["joined"] = p.Join.Rows
		r.Rows["features"] = p.Table.Rows()
		r.Rows["segment"] = len(p.Segment)
		r.Warnings = append(r.Warnings, p.Table.Warnings...)
	}
	return p, nil
}

// Params maps configuration onto forest hyper-parameters.
func Params(cfg *config.Global) model.Params {
	return model.Params{
		Trees:       cfg.Trees,
		MaxFeatures: cfg.MaxFeatures,
		Seed:        cfg.Seed,
		Threshold:   cfg.DecisionThreshold,
	}
}

// Train scales the full feature matrix, splits it, fits the forest on the
// training rows and evaluates on the held-out rows.
func Train(ctx context.Context, p *Prepared, cfg *config.Global, r *run.Run) (*Trained, error) {
	l := logging.With("train")
	t := &Trained{Scaler: &features.StandardScaler{}}

	done := stage(r, "scale")
	scaled, err := t.Scaler.FitTransform(p.Table.X)
	done()
	if err != nil {
		return nil, err
	}
	t.Scaled = scaled

	t.Train, t.Test, err = features.TrainTestSplit(p.Table.Rows(), cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, err
	}
	xTrain, yTrain := rowsOf(scaled, p.Table.Labels, t.Train)
	xTest, yTest := rowsOf(scaled, p.Table.Labels, t.Test)

	done = stage(r, "fit")
	t.Forest = model.NewForest(p.Table.Names, Params(cfg))
	err = t.Forest.Fit(xTrain, yTrain)
	done()
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	done = stage(r, "evaluate")
	proba, err := t.Forest.PredictProba(xTest)
	if err != nil {
		done()
		return nil, err
	}
	t.Evaluation, err = model.Evaluate(yTest, proba, cfg.DecisionThreshold)
	if err != nil {
		done()
		return nil, err
	}
	t.Importances, err = t.Forest.FeatureImportances()
	done()
	if err != nil {
		return nil, err
	}
	for _, w := range t.Evaluation.Warnings {
		l.Warn().Msg(w)
	}
	l.Info().
		Float64("accuracy", t.Evaluation.Metrics.Accuracy).
		Float64("f1", t.Evaluation.Metrics.F1).
		Float64("auc", t.Evaluation.Metrics.AUC).
		Msg("model evaluated")

	if !cfg.SkipCurve {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		done = stage(r, "learning_curve")
		t.Curve, err = model.ComputeLearningCurve(scaled, p.Table.Labels, p.Table.Names, Params(cfg),
			model.CurveOptions{Folds: cfg.CVFolds, Points: cfg.CurvePoints})
		done()
		if err != nil {
			// diagnostic only; the run continues without the plot
			l.Warn().Err(err).Msg("learning curve skipped")
			if r != nil {
				r.Warnings = append(r.Warnings, "learning curve skipped: "+err.Error())
			}
		}
	}

	if r != nil {
		r.Rows["train"] = len(t.Train)
		r.Rows["test"] = len(t.Test)
		m := t.Evaluation.Metrics
		r.Metrics = &m
		r.Warnings = append(r.Warnings, t.Evaluation.Warnings...)
	}
	return t, nil
}

// Rank scores the segment and builds the primary and per-product top lists.
func Rank(p *Prepared, sc rank.Scaler, m rank.Scorer, cfg *config.Global, r *run.Run) (*Ranked, error) {
	done := stage(r, "score")
	res, err := rank.ScoreSegment(p.Table, p.Segment, sc, m)
	done()
	if r != nil && res != nil {
		r.Rows["segment_missing"] = len(res.Missing)
	}
	if err != nil {
		return nil, err
	}
	out := &Ranked{Segment: res}
	out.Primary = rank.TopPerProduct(res.Scored, []string{cfg.PrimaryProduct}, cfg.TopN)[0]
	out.Products = rank.TopPerProduct(res.Scored, cfg.Products, cfg.TopNPerProduct)
	if r != nil {
		r.Rows["segment_scored"] = len(res.Scored)
	}
	return out, nil
}

// SaveModel persists the forest and its bundle under dir.
func SaveModel(dir string, p *Prepared, t *Trained, r *run.Run) error {
	if err := model.Save(dir, t.Forest, model.Bundle{
		Encodings: p.Table.Encodings,
		Scaler:    *t.Scaler,
	}); err != nil {
		return err
	}
	if r != nil {
		r.AddArtifact("model", filepath.Join(dir, model.ModelFile))
		r.AddArtifact("model", filepath.Join(dir, model.BundleFile))
	}
	return nil
}

func rowsOf(x *mat.Dense, y []int, idx []int) (*mat.Dense, []int) {
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	ys := make([]int, len(idx))
	for i, r := range idx {
		out.SetRow(i, x.RawRowView(r))
		ys[i] = y[r]
	}
	return out, ys
}

func stage(r *run.Run, name string) func() {
	if r == nil {
		return func() {}
	}
	return r.Stage(name)
}
