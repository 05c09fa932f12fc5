package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAccumulate(t *testing.T) {
	before := testutil.ToFloat64(VesselFetches.WithLabelValues(ResultError))
	VesselFetches.WithLabelValues(ResultError).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(VesselFetches.WithLabelValues(ResultError)))

	FetcherRunning.Set(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(FetcherRunning))
	FetcherRunning.Set(0)
}
