package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCreditEngineObserve(t *testing.T) {
	m := CreditEngine()
	require.Same(t, m, CreditEngine())

	successBefore := testutil.ToFloat64(m.requests.WithLabelValues("mint", "success"))
	errorBefore := testutil.ToFloat64(m.errors.WithLabelValues("mint", "invalid_amount"))

	m.Observe("Mint", "", 5*time.Millisecond)
	m.Observe("mint", "invalid_amount", time.Millisecond)

	require.Equal(t, successBefore+1, testutil.ToFloat64(m.requests.WithLabelValues("mint", "success")))
	require.Equal(t, errorBefore+1, testutil.ToFloat64(m.errors.WithLabelValues("mint", "invalid_amount")))

	before := testutil.ToFloat64(m.liquidations.WithLabelValues("unknown"))
	m.RecordLiquidation("  ")
	require.Equal(t, before+1, testutil.ToFloat64(m.liquidations.WithLabelValues("unknown")))
}

func TestExecutorMetrics(t *testing.T) {
	m := Executor()
	committed := testutil.ToFloat64(m.calls.WithLabelValues("deposit", "committed"))
	reverted := testutil.ToFloat64(m.calls.WithLabelValues("deposit", "reverted"))

	m.RecordCall("deposit", nil)
	m.RecordCall("deposit", errors.New("boom"))
	m.RecordEvent("credit.minted")

	require.Equal(t, committed+1, testutil.ToFloat64(m.calls.WithLabelValues("deposit", "committed")))
	require.Equal(t, reverted+1, testutil.ToFloat64(m.calls.WithLabelValues("deposit", "reverted")))
	require.GreaterOrEqual(t, testutil.ToFloat64(m.committed.WithLabelValues("credit.minted")), 1.0)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var engine *CreditEngineMetrics
	engine.Observe("mint", "", time.Second)
	engine.RecordLiquidation("native")

	var exec *ExecutorMetrics
	exec.RecordCall("mint", nil)
	exec.RecordEvent("credit.minted")
	exec.RecordSinkError("credit.minted")
}
