package model

import (
	"fmt"

	"github.com/sjwhitworth/golearn/evaluation"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Metrics are the headline scores of a held-out evaluation.
type Metrics struct {
	Accuracy   float64 `json:"accuracy"`
	Precision  float64 `json:"precision"`
	Recall     float64 `json:"recall"`
	F1         float64 `json:"f1"`
	AUC        float64 `json:"auc"`
	AUCDefined bool    `json:"auc_defined"`
	Support    int     `json:"support"`
}

// Curve is a sequence of (X, Y) points with the score threshold that
// produced each point.
type Curve struct {
	X          []float64 `json:"x"`
	Y          []float64 `json:"y"`
	Thresholds []float64 `json:"thresholds"`
}

// Report bundles the confusion matrix, metrics and curves for one test set.
type Report struct {
	Confusion evaluation.ConfusionMatrix `json:"confusion"`
	Metrics   Metrics                    `json:"metrics"`
	ROC       Curve                      `json:"-"`
	PR        Curve                      `json:"-"`
	Warnings  []string                   `json:"warnings,omitempty"`
}

// Labels is the fixed class order used for confusion matrices.
var Labels = []string{negative, positive}

// ConfusionMatrix counts actual (outer key) against predicted (inner key).
// Both classes are always present.
func ConfusionMatrix(yTrue, yPred []int) (evaluation.ConfusionMatrix, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("have %d labels but %d predictions", len(yTrue), len(yPred))
	}
	cm := make(evaluation.ConfusionMatrix, 2)
	for _, a := range Labels {
		cm[a] = map[string]int{negative: 0, positive: 0}
	}
	for i := range yTrue {
		cm[label(yTrue[i])][label(yPred[i])]++
	}
	return cm, nil
}

func label(y int) string {
	if y == 1 {
		return positive
	}
	return negative
}

// Evaluate scores probabilities against true labels at threshold t.
func Evaluate(yTrue []int, proba []float64, t float64) (*Report, error) {
	if len(yTrue) == 0 {
		return nil, fmt.Errorf("empty evaluation set")
	}
	if len(yTrue) != len(proba) {
		return nil, fmt.Errorf("have %d labels but %d scores", len(yTrue), len(proba))
	}
	cm, err := ConfusionMatrix(yTrue, Threshold(proba, t))
	if err != nil {
		return nil, err
	}
	r := &Report{Confusion: cm}
	r.Metrics.Support = len(yTrue)
	r.Metrics.Accuracy = evaluation.GetAccuracy(cm)

	tp := evaluation.GetTruePositives(positive, cm)
	fp := evaluation.GetFalsePositives(positive, cm)
	fn := evaluation.GetFalseNegatives(positive, cm)
	if tp+fp > 0 {
		r.Metrics.Precision = evaluation.GetPrecision(positive, cm)
	} else {
		r.Warnings = append(r.Warnings, "no positive predictions: precision set to 0")
	}
	if tp+fn > 0 {
		r.Metrics.Recall = evaluation.GetRecall(positive, cm)
	} else {
		r.Warnings = append(r.Warnings, "no positive labels in test set: recall set to 0")
	}
	if r.Metrics.Precision+r.Metrics.Recall > 0 {
		r.Metrics.F1 = evaluation.GetF1Score(positive, cm)
	}

	pos := int(tp + fn)
	neg := len(yTrue) - pos
	if pos == 0 || neg == 0 {
		r.Warnings = append(r.Warnings, "test set has a single class: ROC and AUC undefined")
		return r, nil
	}
	roc, pr := curves(yTrue, proba, pos, neg)
	r.ROC, r.PR = roc, pr
	r.Metrics.AUC = integrate.Trapezoidal(roc.X, roc.Y)
	r.Metrics.AUCDefined = true
	return r, nil
}

// curves builds the ROC curve with gonum and derives the precision-recall
// curve from the same operating points.
func curves(yTrue []int, proba []float64, pos, neg int) (Curve, Curve) {
	y := append([]float64(nil), proba...)
	classes := make([]bool, len(yTrue))
	for i, v := range yTrue {
		classes[i] = v == 1
	}
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, thresh := stat.ROC(nil, y, classes, nil)
	roc := Curve{X: fpr, Y: tpr, Thresholds: thresh}

	var pr Curve
	for i := range tpr {
		tp := tpr[i] * float64(pos)
		fp := fpr[i] * float64(neg)
		prec := 1.0
		if tp+fp > 0 {
			prec = tp / (tp + fp)
		}
		pr.X = append(pr.X, tpr[i])
		pr.Y = append(pr.Y, prec)
		pr.Thresholds = append(pr.Thresholds, thresh[i])
	}
	return roc, pr
}
