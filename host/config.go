package host

import (
	"time"

	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/ledger"
	"github.com/weisyn/libretto-go/logger"
	"github.com/weisyn/libretto-go/metrics"
)

// Config 宿主配置
type Config struct {
	// Dev 开发模式：开放水龙头与时间推进，时钟为手动时钟
	Dev bool

	// GenesisTime 开发模式下手动时钟的起点，零值表示当前时间
	GenesisTime time.Time

	// HistoryLimit 事件历史保留条数
	HistoryLimit int
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Dev:          false,
		HistoryLimit: event.DefaultHistoryLimit,
	}
}

// Option 宿主选项
type Option func(*Host)

// WithLogger 设置日志器
func WithLogger(l logger.Logger) Option {
	return func(h *Host) {
		h.logger = logger.OrNop(l)
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(m metrics.Recorder) Option {
	return func(h *Host) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithClock 覆盖时钟
func WithClock(c ledger.Clock) Option {
	return func(h *Host) {
		if c != nil {
			h.clock = c
		}
	}
}
