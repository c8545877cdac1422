package sqlformula

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of a Compiler.
type Metrics struct {
	Compiles       *prometheus.CounterVec
	CompileErrors  *prometheus.CounterVec
	CompileSeconds prometheus.Histogram
	SQLFallbacks   prometheus.Counter
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	compiles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlformula_compiles_total",
		Help: "Total formula compilations by outcome",
	}, []string{"outcome"})

	compileErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlformula_compile_errors_total",
		Help: "Total compile errors by error code",
	}, []string{"code"})

	compileSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sqlformula_compile_duration_seconds",
		Help:    "Time spent compiling a formula",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sqlformula_sql_rewrite_fallbacks_total",
		Help: "Total SQL renderings that fell back to the tokens without rewrites",
	})

	reg.MustRegister(compiles, compileErrors, compileSeconds, fallbacks)

	return &Metrics{
		Compiles:       compiles,
		CompileErrors:  compileErrors,
		CompileSeconds: compileSeconds,
		SQLFallbacks:   fallbacks,
	}
}

func (m *Metrics) observe(r *ParseResult, seconds float64) {
	if m == nil {
		return
	}
	outcome := "success"
	if !r.IsSuccess() {
		outcome = "failure"
	}
	m.Compiles.WithLabelValues(outcome).Inc()
	for _, e := range r.Errors {
		m.CompileErrors.WithLabelValues(e.Code.String()).Inc()
	}
	m.CompileSeconds.Observe(seconds)
}

func (m *Metrics) fallback() {
	if m != nil {
		m.SQLFallbacks.Inc()
	}
}
