package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/logger"
	"github.com/weisyn/libretto-go/types"
)

// httpClient HTTP 客户端实现
type httpClient struct {
	endpoint string
	client   *http.Client
	logger   logger.Logger
	debug    bool
	nextID   atomic.Uint64
	retry    *RetryConfig
}

// NewHTTPClient 创建 HTTP 客户端
func NewHTTPClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	tlsCfg, err := config.tlsConfig()
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}
	httpCli := &http.Client{
		Timeout:   time.Duration(config.Timeout) * time.Second,
		Transport: transport,
	}

	log := logger.OrNop(config.Logger)
	retryConfig := config.Retry
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
		if config.Debug {
			retryConfig.OnRetry = func(attempt int, err error) {
				log.Warn("Retrying request", "attempt", attempt, "error", err)
			}
		}
	}

	return &httpClient{
		endpoint: endpoint(config.Endpoint),
		client:   httpCli,
		logger:   log,
		debug:    config.Debug,
		retry:    retryConfig,
	}, nil
}

// endpoint 补全协议前缀
func endpoint(e string) string {
	if strings.HasPrefix(e, "http://") || strings.HasPrefix(e, "https://") {
		return e
	}
	return "http://" + e
}

// Call 调用 JSON-RPC 方法
func (c *httpClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	req := &jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}
	if c.debug {
		c.logger.Debug("JSON-RPC request", "method", method, "body", string(reqBody))
	}

	// 发送请求（带重试）
	var status int
	var respBody []byte
	err = withRetry(ctx, func() error {
		// 每次重试都创建新的请求（因为 Body 只能读取一次）
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
		if reqErr != nil {
			return fmt.Errorf("create request failed: %w", reqErr)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		httpResp, reqErr := c.client.Do(httpReq)
		if reqErr != nil {
			return reqErr
		}
		defer func() {
			if cerr := httpResp.Body.Close(); cerr != nil {
				c.logger.Warn("Failed to close response body", "error", cerr)
			}
		}()

		if isRetryableHTTPError(httpResp.StatusCode) {
			return &retryableHTTPError{status: httpResp.StatusCode}
		}
		body, readErr := io.ReadAll(httpResp.Body)
		if readErr != nil {
			return fmt.Errorf("read response failed: %w", readErr)
		}
		status = httpResp.StatusCode
		respBody = body
		return nil
	}, c.retry)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, NewNetworkError(err)
	}

	if c.debug {
		c.logger.Debug("JSON-RPC response", "status", status, "body", string(respBody))
	}

	if status != http.StatusOK {
		return nil, httpStatusError(status, respBody)
	}

	var jsonResp jsonRPCResponse
	if err := json.Unmarshal(respBody, &jsonResp); err != nil {
		return nil, NewInvalidResponseError(fmt.Sprintf("unmarshal response failed: %v", err))
	}
	if jsonResp.Error != nil {
		return nil, newRPCError(jsonResp.Error)
	}
	return jsonResp.Result, nil
}

// httpStatusError 非 200 响应；application/problem+json 时还原 Problem Details
func httpStatusError(status int, body []byte) error {
	var data interface{}
	if err := json.Unmarshal(body, &data); err == nil {
		if pd, err := types.ParseProblemDetails(data); err == nil {
			return &RPCError{Code: status, Message: pd.UserMessage, Problem: pd, vault: pd.ToVaultError()}
		}
	}
	return NewInvalidResponseError(fmt.Sprintf("HTTP error: %d, body: %s", status, strings.TrimSpace(string(body))))
}

// Subscribe HTTP 不支持订阅，需要使用 WebSocket
func (c *httpClient) Subscribe(ctx context.Context, filter *event.Filter) (<-chan *event.Log, error) {
	return nil, NewNotSupportedError("subscribe over HTTP, use WebSocket client instead")
}

// Close 关闭连接（HTTP 客户端只需释放空闲连接）
func (c *httpClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
