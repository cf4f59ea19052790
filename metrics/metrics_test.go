package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/libretto-go/types"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestRecordVaultCreated(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordVaultCreated("timelocked")
	c.RecordVaultCreated("giftable")
	c.RecordVaultCreated("giftable")

	mf := gather(t, reg, "libretto_vaults_created_total")
	assert.Len(t, mf.GetMetric(), 2)
	assert.Equal(t, float64(3), gather(t, reg, "libretto_vaults").GetMetric()[0].GetGauge().GetValue())
}

func TestRecordWithdraw(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	amount, err := types.ParseEther("2.5")
	require.NoError(t, err)
	c.RecordWithdraw(amount)

	assert.Equal(t, float64(1), gather(t, reg, "libretto_withdrawals_total").GetMetric()[0].GetCounter().GetValue())
	h := gather(t, reg, "libretto_withdrawn_ether").GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(1), h.GetSampleCount())
	assert.InDelta(t, 2.5, h.GetSampleSum(), 1e-9)
}

func TestRecordDeposit(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	for _, s := range []string{"1", "0.25"} {
		amount, err := types.ParseEther(s)
		require.NoError(t, err)
		c.RecordDeposit(amount)
	}

	assert.Equal(t, float64(2), gather(t, reg, "libretto_deposits_total").GetMetric()[0].GetCounter().GetValue())
	h := gather(t, reg, "libretto_deposited_ether").GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(2), h.GetSampleCount())
	assert.InDelta(t, 1.25, h.GetSampleSum(), 1e-9)
}

func TestRecordWithdrawRejected(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordWithdrawRejected(string(types.CodeLocked))
	c.RecordWithdrawRejected(string(types.CodeLocked))
	c.RecordWithdrawRejected(string(types.CodeNotAuthorized))

	mf := gather(t, reg, "libretto_withdraw_rejected_total")
	total := 0.0
	for _, m := range mf.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	assert.Len(t, mf.GetMetric(), 2)
	assert.Equal(t, float64(3), total)
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordRPC("vault_get", "ok", 5*time.Millisecond)
	c.RecordBeneficiaryChanged()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `libretto_rpc_requests_total{code="ok",method="vault_get"} 1`))
	assert.True(t, strings.Contains(string(body), "libretto_beneficiary_changes_total 1"))
}
