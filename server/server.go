// Package server 金库节点：JSON-RPC over HTTP、WebSocket 事件推送、
// Prometheus 指标与 gRPC 健康检查。
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/weisyn/libretto-go/host"
	"github.com/weisyn/libretto-go/logger"
	"github.com/weisyn/libretto-go/metrics"
)

// ServiceName gRPC 健康检查中登记的服务名
const ServiceName = "libretto.Vault"

type methodKey struct{}

// Server 金库节点服务
type Server struct {
	cfg      *Config
	host     *host.Host
	logger   logger.Logger
	metrics  metrics.Recorder
	gatherer prometheus.Gatherer
	methods  map[string]methodFunc
	upgrader websocket.Upgrader
	health   *health.Server
}

// New 创建节点服务
func New(cfg *Config, h *host.Host, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		cfg:     cfg,
		host:    h,
		logger:  logger.Nop(),
		metrics: metrics.Nop{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		health: health.NewServer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerMethods()
	return s
}

// Handler 构建 HTTP 路由
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware(s.logger))
	r.Use(loggingMiddleware(s.logger))

	r.Post("/", s.handleHTTP)
	r.Post("/jsonrpc", s.handleHTTP)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if s.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.gatherer))
	}
	return r
}

// dispatch 执行单个请求，返回 nil 表示通知（无需响应）
func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	start := time.Now()
	resp := &Response{JSONRPC: "2.0", ID: req.ID}
	if resp.ID == nil {
		resp.ID = json.RawMessage("null")
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		resp.Error = newError(CodeInvalidRequest, "invalid request")
		return resp
	}
	fn, ok := s.methods[req.Method]
	if !ok {
		resp.Error = newError(CodeMethodNotFound, "method %s not found", req.Method)
		s.metrics.RecordRPC(req.Method, "method_not_found", time.Since(start))
		return resp
	}

	result, err := fn(context.WithValue(ctx, methodKey{}, req.Method), req.Params)
	code := "ok"
	if err != nil {
		resp.Error = toRPCError(err)
		if resp.Error.Data != nil {
			code = resp.Error.Data.Code
		} else {
			code = fmt.Sprintf("%d", resp.Error.Code)
		}
		s.logger.Warn("rpc call failed", "method", req.Method, "code", code, "error", err)
	} else {
		resp.Result = result
		s.logger.Debug("rpc call", "method", req.Method, "duration", time.Since(start).String())
	}
	s.metrics.RecordRPC(req.Method, code, time.Since(start))

	if req.ID == nil {
		return nil
	}
	return resp
}

// handleHTTP 处理单个或批量 JSON-RPC 请求
func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		writeJSON(w, &Response{JSONRPC: "2.0", ID: json.RawMessage("null"), Error: newError(CodeInvalidRequest, "read body: %v", err)})
		return
	}
	body = bytes.TrimSpace(body)

	if len(body) > 0 && body[0] == '[' {
		var batch []Request
		if err := json.Unmarshal(body, &batch); err != nil {
			writeJSON(w, &Response{JSONRPC: "2.0", ID: json.RawMessage("null"), Error: newError(CodeParseError, "parse error: %v", err)})
			return
		}
		if len(batch) == 0 {
			writeJSON(w, &Response{JSONRPC: "2.0", ID: json.RawMessage("null"), Error: newError(CodeInvalidRequest, "empty batch")})
			return
		}
		out := make([]*Response, 0, len(batch))
		for i := range batch {
			if resp := s.dispatch(r.Context(), &batch[i]); resp != nil {
				out = append(out, resp)
			}
		}
		// 全部是通知时不返回内容
		if len(out) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, out)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, &Response{JSONRPC: "2.0", ID: json.RawMessage("null"), Error: newError(CodeParseError, "parse error: %v", err)})
		return
	}
	resp := s.dispatch(r.Context(), &req)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// GRPCServer 创建注册了健康检查的 gRPC 服务
func (s *Server) GRPCServer() *grpc.Server {
	g := grpc.NewServer()
	healthpb.RegisterHealthServer(g, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return g
}

// Run 启动 HTTP 与 gRPC 监听，ctx 结束时优雅关闭
func (s *Server) Run(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http %s failed: %w", s.cfg.HTTPAddr, err)
	}
	return s.Serve(ctx, httpLn, nil)
}

// Serve 在给定监听器上提供服务；grpcLn 为 nil 时按配置自行监听
func (s *Server) Serve(ctx context.Context, httpLn net.Listener, grpcLn net.Listener) error {
	if grpcLn == nil && s.cfg.GRPCAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			_ = httpLn.Close()
			return fmt.Errorf("listen grpc %s failed: %w", s.cfg.GRPCAddr, err)
		}
		grpcLn = ln
	}

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("http server listening", "addr", httpLn.Addr().String())
		if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	var grpcSrv *grpc.Server
	if grpcLn != nil {
		grpcSrv = s.GRPCServer()
		go func() {
			s.logger.Info("grpc health server listening", "addr", grpcLn.Addr().String())
			if err := grpcSrv.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("grpc server failed: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	s.health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown failed", "error", err)
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	s.logger.Info("server stopped")
	return runErr
}
