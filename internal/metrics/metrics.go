// Package metrics exposes Prometheus collectors for the scan flow.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCacheHit  = "cache_hit"
	OutcomeCancelled = "cancelled"
	OutcomeDenied    = "denied"
)

type Recorder struct {
	extractions   *prometheus.CounterVec
	extractTime   prometheus.Histogram
	acquisitions  *prometheus.CounterVec
	exports       *prometheus.CounterVec
	staleDiscards prometheus.Counter
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scansmart",
			Name:      "extractions_total",
			Help:      "OCR extraction runs by outcome.",
		}, []string{"outcome"}),
		extractTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scansmart",
			Name:      "extraction_duration_seconds",
			Help:      "Wall time of OCR extraction runs, engine setup included.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scansmart",
			Name:      "acquisitions_total",
			Help:      "Image acquisitions by source and outcome.",
		}, []string{"source", "outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scansmart",
			Name:      "exports_total",
			Help:      "Document exports by format and outcome.",
		}, []string{"format", "outcome"}),
		staleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scansmart",
			Name:      "stale_results_discarded_total",
			Help:      "Extraction results dropped because a newer acquisition superseded the run.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.extractions, r.extractTime, r.acquisitions, r.exports, r.staleDiscards)
	}
	return r
}

func (r *Recorder) Extraction(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.extractions.WithLabelValues(outcome).Inc()
	if outcome != OutcomeCacheHit {
		r.extractTime.Observe(d.Seconds())
	}
}

func (r *Recorder) Acquisition(source, outcome string) {
	if r == nil {
		return
	}
	r.acquisitions.WithLabelValues(source, outcome).Inc()
}

func (r *Recorder) Export(format, outcome string) {
	if r == nil {
		return
	}
	r.exports.WithLabelValues(format, outcome).Inc()
}

func (r *Recorder) StaleDiscarded() {
	if r == nil {
		return
	}
	r.staleDiscards.Inc()
}
