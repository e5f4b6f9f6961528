package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eduplanner/timetabling/pkg/model"
)

const (
	ResultSolved     = "solved"
	ResultInfeasible = "infeasible"
	ResultInvalid    = "invalid"
	ResultError      = "error"
)

// Recorder accumulates search instrumentation for generation runs.
type Recorder struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	nodes       prometheus.Counter
	backtracks  prometheus.Counter
	iterations  prometheus.Counter
	bestPenalty prometheus.Gauge
	infeasible  *prometheus.CounterVec
}

// NewRecorder registers the search collectors on a private registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_runs_total",
		Help: "Total number of generation runs by result",
	}, []string{"result"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetable_run_duration_seconds",
		Help:    "Duration of generation runs in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
	}, []string{"result"})

	nodes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_search_nodes_total",
		Help: "Total number of backtracking nodes explored",
	})

	backtracks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_search_backtracks_total",
		Help: "Total number of backtracks",
	})

	iterations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_anneal_iterations_total",
		Help: "Total number of local search iterations",
	})

	bestPenalty := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_best_penalty",
		Help: "Soft constraint penalty of the last generated timetable",
	})

	infeasible := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_infeasible_total",
		Help: "Total number of infeasible runs by violated constraint class",
	}, []string{"constraint"})

	registry.MustRegister(runs, duration, nodes, backtracks, iterations, bestPenalty, infeasible)

	return &Recorder{
		registry:    registry,
		runs:        runs,
		duration:    duration,
		nodes:       nodes,
		backtracks:  backtracks,
		iterations:  iterations,
		bestPenalty: bestPenalty,
		infeasible:  infeasible,
	}
}

// Observe records the outcome of a single Build call.
func (r *Recorder) Observe(timetable model.Timetable, err error, elapsed time.Duration) {
	if r == nil {
		return
	}

	result := Result(err)
	r.runs.WithLabelValues(result).Inc()
	r.duration.WithLabelValues(result).Observe(elapsed.Seconds())

	var infeasible *model.InfeasibleScheduleError
	if errors.As(err, &infeasible) {
		r.infeasible.WithLabelValues(string(infeasible.Constraint)).Inc()
	}
	if err != nil {
		return
	}

	r.nodes.Add(float64(timetable.Nodes))
	r.backtracks.Add(float64(timetable.Backtracks))
	r.iterations.Add(float64(timetable.Iterations))
	r.bestPenalty.Set(timetable.Penalty)
}

// WriteToTextfile dumps the registry in the Prometheus text format, for the node exporter textfile collector.
func (r *Recorder) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Result classifies the error returned by a Build call.
func Result(err error) string {
	var infeasible *model.InfeasibleScheduleError
	var internal *model.InternalValidationError
	switch {
	case err == nil:
		return ResultSolved
	case errors.As(err, &internal):
		return ResultInvalid
	case errors.As(err, &infeasible):
		return ResultInfeasible
	default:
		return ResultError
	}
}
