package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserve(t *testing.T) {
	before := counterValue(t, Operations.WithLabelValues("test_op", "error"))
	Observe("test_op", 0.01, errors.New("boom"))
	Observe("test_op", 0.01, nil)

	assert.Equal(t, before+1, counterValue(t, Operations.WithLabelValues("test_op", "error")))
	assert.GreaterOrEqual(t, counterValue(t, Operations.WithLabelValues("test_op", "ok")), 1.0)
}
