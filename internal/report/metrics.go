package report

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/KaramelBytes/propensity-cli/internal/model"
)

// MetricsFile is the Prometheus textfile written per run.
const MetricsFile = "metrics.prom"

// RunMetrics is the numeric outcome of a run.
type RunMetrics struct {
	Model     *model.Metrics           // nil when no model was evaluated
	Rows      map[string]int           // e.g. joined, train, test, segment_scored
	Durations map[string]time.Duration // per pipeline stage
	Finished  time.Time
}

// WriteMetrics renders m in the Prometheus text exposition format, suitable
// for the node_exporter textfile collector.
func WriteMetrics(path string, m RunMetrics) error {
	reg := prometheus.NewRegistry()

	score := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "propensity",
		Subsystem: "model",
		Name:      "score",
		Help:      "Held-out evaluation score of the trained classifier.",
	}, []string{"metric"})
	rows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "propensity",
		Name:      "rows",
		Help:      "Row counts per pipeline stage.",
	}, []string{"stage"})
	dur := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "propensity",
		Name:      "stage_duration_seconds",
		Help:      "Wall time spent per pipeline stage.",
	}, []string{"stage"})
	last := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "propensity",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the run finished.",
	})
	reg.MustRegister(score, rows, dur, last)

	if mm := m.Model; mm != nil {
		score.WithLabelValues("accuracy").Set(mm.Accuracy)
		score.WithLabelValues("precision").Set(mm.Precision)
		score.WithLabelValues("recall").Set(mm.Recall)
		score.WithLabelValues("f1").Set(mm.F1)
		if mm.AUCDefined {
			score.WithLabelValues("auc").Set(mm.AUC)
		}
	}
	for stage, n := range m.Rows {
		rows.WithLabelValues(stage).Set(float64(n))
	}
	for stage, d := range m.Durations {
		dur.WithLabelValues(stage).Set(d.Seconds())
	}
	if m.Finished.IsZero() {
		m.Finished = time.Now()
	}
	last.Set(float64(m.Finished.Unix()))

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
