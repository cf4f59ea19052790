// Package metrics 金库节点的 Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weisyn/libretto-go/types"
)

// Recorder 指标记录接口，宿主与服务端通过它上报
type Recorder interface {
	RecordVaultCreated(kind string)
	RecordDeposit(amount *uint256.Int)
	RecordWithdraw(amount *uint256.Int)
	RecordWithdrawRejected(reason string)
	RecordBeneficiaryChanged()
	RecordRPC(method string, code string, duration time.Duration)
}

// Collector Prometheus 实现
type Collector struct {
	vaultsCreated      *prometheus.CounterVec
	vaults             prometheus.Gauge
	deposits           prometheus.Counter
	depositedEther     prometheus.Histogram
	withdrawals        prometheus.Counter
	withdrawRejected   *prometheus.CounterVec
	withdrawnEther     prometheus.Histogram
	beneficiaryChanges prometheus.Counter
	rpcRequests        *prometheus.CounterVec
	rpcLatency         *prometheus.HistogramVec
}

// NewCollector 创建 Collector 并注册到 reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		vaultsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libretto_vaults_created_total",
			Help: "Total number of vaults created by kind",
		}, []string{"kind"}),
		vaults: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "libretto_vaults",
			Help: "Number of vaults hosted by this node",
		}),
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libretto_deposits_total",
			Help: "Total number of deposits",
		}),
		depositedEther: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "libretto_deposited_ether",
			Help:    "Amount received per deposit, in ether",
			Buckets: []float64{0.01, 0.1, 1, 10, 100, 1000},
		}),
		withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libretto_withdrawals_total",
			Help: "Total number of successful withdrawals",
		}),
		withdrawRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libretto_withdraw_rejected_total",
			Help: "Rejected withdrawals by reason",
		}, []string{"reason"}),
		withdrawnEther: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "libretto_withdrawn_ether",
			Help:    "Amount released per withdrawal, in ether",
			Buckets: []float64{0.01, 0.1, 1, 10, 100, 1000},
		}),
		beneficiaryChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libretto_beneficiary_changes_total",
			Help: "Total number of beneficiary reassignments",
		}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libretto_rpc_requests_total",
			Help: "JSON-RPC requests by method and result code",
		}, []string{"method", "code"}),
		rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "libretto_rpc_latency_seconds",
			Help:    "JSON-RPC handling latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		c.vaultsCreated,
		c.vaults,
		c.deposits,
		c.depositedEther,
		c.withdrawals,
		c.withdrawRejected,
		c.withdrawnEther,
		c.beneficiaryChanges,
		c.rpcRequests,
		c.rpcLatency,
	)
	return c
}

// RecordVaultCreated 记录金库创建
func (c *Collector) RecordVaultCreated(kind string) {
	c.vaultsCreated.WithLabelValues(kind).Inc()
	c.vaults.Inc()
}

// RecordDeposit 记录存款
func (c *Collector) RecordDeposit(amount *uint256.Int) {
	c.deposits.Inc()
	f, _ := types.ToEtherDecimal(amount).Float64()
	c.depositedEther.Observe(f)
}

// RecordWithdraw 记录成功提取及金额
func (c *Collector) RecordWithdraw(amount *uint256.Int) {
	c.withdrawals.Inc()
	f, _ := types.ToEtherDecimal(amount).Float64()
	c.withdrawnEther.Observe(f)
}

// RecordWithdrawRejected 记录被拒绝的提取（按错误码）
func (c *Collector) RecordWithdrawRejected(reason string) {
	c.withdrawRejected.WithLabelValues(reason).Inc()
}

// RecordBeneficiaryChanged 记录受益人改派
func (c *Collector) RecordBeneficiaryChanged() {
	c.beneficiaryChanges.Inc()
}

// RecordRPC 记录一次 JSON-RPC 调用
func (c *Collector) RecordRPC(method string, code string, duration time.Duration) {
	c.rpcRequests.WithLabelValues(method, code).Inc()
	c.rpcLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler Prometheus 抓取用的 HTTP handler
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop 不记录任何指标
type Nop struct{}

func (Nop) RecordVaultCreated(string)               {}
func (Nop) RecordDeposit(*uint256.Int)              {}
func (Nop) RecordWithdraw(*uint256.Int)             {}
func (Nop) RecordWithdrawRejected(string)           {}
func (Nop) RecordBeneficiaryChanged()               {}
func (Nop) RecordRPC(string, string, time.Duration) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
