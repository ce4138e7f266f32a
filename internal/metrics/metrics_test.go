package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Extraction(OutcomeSuccess, time.Second)
	r.Extraction(OutcomeSuccess, time.Second)
	r.Extraction(OutcomeCacheHit, 0)
	r.Export("pdf", OutcomeFailure)
	r.Acquisition("GALLERY", OutcomeDenied)
	r.StaleDiscarded()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.extractions.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.extractions.WithLabelValues(OutcomeCacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.exports.WithLabelValues("pdf", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.acquisitions.WithLabelValues("GALLERY", OutcomeDenied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.staleDiscards))

	n, err := testutil.GatherAndCount(reg, "scansmart_extraction_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Extraction(OutcomeFailure, time.Second)
		r.Export("pdf", OutcomeSuccess)
		r.Acquisition("CAMERA", OutcomeCancelled)
		r.StaleDiscarded()
	})
}
