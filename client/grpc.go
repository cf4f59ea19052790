package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthStatus 节点健康状态
type HealthStatus string

const (
	HealthServing    HealthStatus = "SERVING"
	HealthNotServing HealthStatus = "NOT_SERVING"
	HealthUnknown    HealthStatus = "UNKNOWN"
)

// CheckHealth 通过 gRPC 健康检查协议探测节点
//
// service 为空时查询节点整体状态。
func CheckHealth(ctx context.Context, endpoint string, service string) (HealthStatus, error) {
	// 移除协议前缀（如果有）
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	// 注意：当前使用 insecure 连接，生产环境应该使用 TLS
	conn, err := grpc.DialContext(ctx, endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return HealthUnknown, NewNetworkError(fmt.Errorf("dial gRPC: %w", err))
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return HealthUnknown, NewNetworkError(fmt.Errorf("health check: %w", err))
	}

	switch resp.GetStatus() {
	case healthpb.HealthCheckResponse_SERVING:
		return HealthServing, nil
	case healthpb.HealthCheckResponse_NOT_SERVING:
		return HealthNotServing, nil
	default:
		return HealthUnknown, nil
	}
}
