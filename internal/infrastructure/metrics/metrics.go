package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitos/level_leverage_guard/internal/domain"
)

var (
	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llg_recommendations_total",
			Help: "Total number of leverage recommendations produced (by strategy).",
		},
		[]string{"strategy"},
	)

	SkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llg_skipped_evaluations_total",
			Help: "Total number of skipped symbol evaluations (by failure kind).",
		},
		[]string{"kind"},
	)

	EnhancementFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llg_enhancement_failures_total",
			Help: "Levels kept un-enhanced because the enhancement provider failed.",
		},
		[]string{"enhancement"},
	)

	FinalLeverage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llg_final_leverage",
			Help: "Last recommended leverage per symbol.",
		},
		[]string{"symbol"},
	)

	EvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llg_evaluation_duration_seconds",
			Help:    "Wall time of one symbol evaluation.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(RecommendationsTotal, SkippedTotal, EnhancementFailuresTotal, FinalLeverage, EvaluationDuration)
}

// Recorder feeds evaluation outcomes into the package collectors.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) ObserveRecommendation(rec *domain.LeverageRecommendation, duration time.Duration) {
	RecommendationsTotal.WithLabelValues(rec.Strategy).Inc()
	FinalLeverage.WithLabelValues(rec.Symbol).Set(rec.RecommendedLeverage)
	EvaluationDuration.Observe(duration.Seconds())
}

func (r *Recorder) ObserveSkipped(kind domain.FailureKind) {
	SkippedTotal.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) ObserveEnhancementFailures(enhancement string, count int) {
	if count <= 0 {
		return
	}
	EnhancementFailuresTotal.WithLabelValues(enhancement).Add(float64(count))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
