package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/logger"
	"github.com/weisyn/libretto-go/types"
)

// subscriptionNotification 订阅推送方法名
const subscriptionNotification = "vault_subscription"

// websocketClient WebSocket 客户端实现
type websocketClient struct {
	endpoint string
	conn     *websocket.Conn
	logger   logger.Logger
	timeout  time.Duration
	writeMu  sync.Mutex
	closed   atomic.Bool
	nextID   atomic.Uint64

	muReq    sync.Mutex
	requests map[uint64]chan *jsonRPCResponse

	muSub sync.Mutex
	subs  map[string]chan *event.Log
}

// NewWebSocketClient 创建 WebSocket 客户端
func NewWebSocketClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	tlsCfg, err := config.tlsConfig()
	if err != nil {
		return nil, err
	}
	ep := wsEndpoint(config.Endpoint)
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		TLSClientConfig:  tlsCfg,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, _, err := dialer.Dial(ep, nil)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("dial websocket: %w", err))
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &websocketClient{
		endpoint: ep,
		conn:     conn,
		logger:   logger.OrNop(config.Logger),
		timeout:  timeout,
		requests: make(map[uint64]chan *jsonRPCResponse),
		subs:     make(map[string]chan *event.Log),
	}

	// 启动消息读取循环
	go c.readLoop()
	return c, nil
}

// wsEndpoint 把 http(s) 端点转换为 ws(s)，并补上 /ws 路径
func wsEndpoint(e string) string {
	switch {
	case strings.HasPrefix(e, "http://"):
		e = "ws://" + strings.TrimPrefix(e, "http://")
	case strings.HasPrefix(e, "https://"):
		e = "wss://" + strings.TrimPrefix(e, "https://")
	case !strings.HasPrefix(e, "ws://") && !strings.HasPrefix(e, "wss://"):
		e = "ws://" + e
	}
	scheme := e[:strings.Index(e, "://")+3]
	rest := strings.TrimPrefix(e, scheme)
	if !strings.Contains(rest, "/") {
		e += "/ws"
	}
	return e
}

// readLoop 消息读取循环：响应按 ID 投递，订阅推送按订阅 ID 投递
func (c *websocketClient) readLoop() {
	defer c.shutdown()

	for {
		var msg jsonRPCResponse
		if err := c.conn.ReadJSON(&msg); err != nil {
			if !c.closed.Load() {
				c.logger.Debug("websocket read ended", "error", err)
			}
			return
		}

		if msg.Method == subscriptionNotification {
			c.deliver(msg.Params)
			continue
		}
		if msg.ID == nil {
			continue
		}

		c.muReq.Lock()
		ch, exists := c.requests[*msg.ID]
		delete(c.requests, *msg.ID)
		c.muReq.Unlock()
		if exists {
			ch <- &msg
		}
	}
}

func (c *websocketClient) deliver(raw json.RawMessage) {
	var params struct {
		Subscription string     `json:"subscription"`
		Result       *event.Log `json:"result"`
	}
	if err := json.Unmarshal(raw, &params); err != nil || params.Result == nil {
		c.logger.Warn("invalid subscription notification", "error", err)
		return
	}

	c.muSub.Lock()
	defer c.muSub.Unlock()
	ch, ok := c.subs[params.Subscription]
	if !ok {
		return
	}
	select {
	case ch <- params.Result:
	default:
		c.logger.Warn("subscription buffer full, dropping event", "subscription", params.Subscription, "seq", params.Result.Seq)
	}
}

// shutdown 连接断开：结束所有挂起请求与订阅
func (c *websocketClient) shutdown() {
	c.closed.Store(true)

	c.muReq.Lock()
	for id, ch := range c.requests {
		close(ch)
		delete(c.requests, id)
	}
	c.muReq.Unlock()

	c.muSub.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.muSub.Unlock()
}

// Call 调用 JSON-RPC 方法
func (c *websocketClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, NewNetworkError(fmt.Errorf("websocket client is closed"))
	}
	if params == nil {
		params = []interface{}{}
	}

	reqID := c.nextID.Add(1)
	req := jsonRPCRequest{JSONRPC: "2.0", Method: method, Params: params, ID: reqID}

	respCh := make(chan *jsonRPCResponse, 1)
	c.muReq.Lock()
	c.requests[reqID] = respCh
	c.muReq.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(reqID)
		return nil, NewNetworkError(fmt.Errorf("write request: %w", err))
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-respCh:
		if !ok || resp == nil {
			return nil, NewNetworkError(fmt.Errorf("connection closed while waiting for %s", method))
		}
		if resp.Error != nil {
			return nil, newRPCError(resp.Error)
		}
		return resp.Result, nil

	case <-ctx.Done():
		c.forget(reqID)
		return nil, ctx.Err()

	case <-timer.C:
		c.forget(reqID)
		return nil, NewTimeoutError()
	}
}

func (c *websocketClient) forget(id uint64) {
	c.muReq.Lock()
	delete(c.requests, id)
	c.muReq.Unlock()
}

// Subscribe 订阅金库事件，ctx 结束时自动退订并关闭通道
func (c *websocketClient) Subscribe(ctx context.Context, filter *event.Filter) (<-chan *event.Log, error) {
	params := []interface{}{}
	if filter != nil {
		params = append(params, filter)
	}

	var res types.SubscriptionResult
	if err := CallInto(ctx, c, types.MethodSubscribe, params, &res); err != nil {
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}
	if res.Subscription == "" {
		return nil, NewInvalidResponseError("missing subscription ID")
	}

	ch := make(chan *event.Log, 100)
	c.muSub.Lock()
	if c.closed.Load() {
		c.muSub.Unlock()
		close(ch)
		return ch, nil
	}
	c.subs[res.Subscription] = ch
	c.muSub.Unlock()

	go func() {
		<-ctx.Done()
		c.muSub.Lock()
		sub, ok := c.subs[res.Subscription]
		if ok {
			delete(c.subs, res.Subscription)
			close(sub)
		}
		c.muSub.Unlock()
		if ok && !c.closed.Load() {
			unsubCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
			defer cancel()
			_, _ = c.Call(unsubCtx, types.MethodUnsubscribe, []interface{}{res.Subscription})
		}
	}()

	return ch, nil
}

// Close 关闭连接
func (c *websocketClient) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		return c.conn.Close()
	}
	return nil
}
