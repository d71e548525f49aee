package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveFit(t *testing.T) {
	before := testutil.ToFloat64(fitsTotal.WithLabelValues("powell", OutcomeSuccess))
	ObserveFit("powell", 20*time.Millisecond, "whatever")
	after := testutil.ToFloat64(fitsTotal.WithLabelValues("powell", OutcomeSuccess))
	assert.Equal(t, before+1, after)

	ObserveFit("powell", -time.Second, OutcomeCancelled)
	assert.Equal(t, 1.0, testutil.ToFloat64(fitsTotal.WithLabelValues("powell", OutcomeCancelled)))
}

func TestObserveStart(t *testing.T) {
	ObserveStart("nelder-mead")
	ObserveStart("nelder-mead")
	assert.Equal(t, 2.0, testutil.ToFloat64(startsTotal.WithLabelValues("nelder-mead")))
}
