package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weisyn/libretto-go/logger"
	"github.com/weisyn/libretto-go/metrics"
)

// Config 节点服务配置
type Config struct {
	// HTTPAddr JSON-RPC / WebSocket / metrics 监听地址
	HTTPAddr string

	// GRPCAddr gRPC 健康检查监听地址，为空时不启动
	GRPCAddr string

	// ReadHeaderTimeout 读取请求头超时
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout 优雅关闭超时
	ShutdownTimeout time.Duration

	// MaxBodyBytes 单个请求体上限
	MaxBodyBytes int64
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:          ":8545",
		GRPCAddr:          ":9545",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxBodyBytes:      1 << 20,
	}
}

// Option 服务选项
type Option func(*Server)

// WithLogger 设置日志器
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = logger.OrNop(l)
	}
}

// WithMetrics 设置指标记录器与 /metrics 的数据源
func WithMetrics(rec metrics.Recorder, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		if rec != nil {
			s.metrics = rec
		}
		s.gatherer = gatherer
	}
}
