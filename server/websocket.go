package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/types"
)

// NotificationMethod 订阅推送的方法名
const NotificationMethod = "vault_subscription"

// wsConn 单个 WebSocket 连接
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]context.CancelFunc
}

func (c *wsConn) write(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// handleWebSocket 在 WebSocket 上提供 JSON-RPC，并支持 vault_subscribe / vault_unsubscribe
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	ws := &wsConn{conn: conn, subs: make(map[string]context.CancelFunc)}
	defer func() {
		cancel()
		_ = conn.Close()
	}()

	s.logger.Debug("websocket connected", "remote", r.RemoteAddr)
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return
		}

		var resp *Response
		switch req.Method {
		case types.MethodSubscribe:
			resp = s.subscribe(ctx, ws, &req)
		case types.MethodUnsubscribe:
			resp = s.unsubscribe(ws, &req)
		default:
			resp = s.dispatch(ctx, &req)
		}
		if resp == nil {
			continue
		}
		if err := ws.write(resp); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}

// subscribe params = [] 或 [filter]
func (s *Server) subscribe(ctx context.Context, ws *wsConn, req *Request) *Response {
	resp := &Response{JSONRPC: "2.0", ID: req.ID}

	list, err := positional(req.Params, 0)
	if err != nil {
		resp.Error = toRPCError(err)
		return resp
	}
	var filter *event.Filter
	if len(list) > 0 && string(list[0]) != "null" {
		filter = &event.Filter{}
		if err := json.Unmarshal(list[0], filter); err != nil {
			resp.Error = newError(CodeInvalidParams, "invalid filter: %v", err)
			return resp
		}
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch, err := s.host.Subscribe(subCtx, filter)
	if err != nil {
		cancel()
		resp.Error = toRPCError(err)
		return resp
	}

	id := uuid.NewString()
	ws.mu.Lock()
	ws.subs[id] = cancel
	ws.mu.Unlock()

	go func() {
		defer func() {
			ws.mu.Lock()
			delete(ws.subs, id)
			ws.mu.Unlock()
			cancel()
		}()
		for log := range ch {
			n := &Notification{
				JSONRPC: "2.0",
				Method:  NotificationMethod,
				Params:  NotificationParams{Subscription: id, Result: log},
			}
			if err := ws.write(n); err != nil {
				return
			}
		}
	}()

	resp.Result = &types.SubscriptionResult{Subscription: id}
	return resp
}

// unsubscribe params = [subscriptionID]
func (s *Server) unsubscribe(ws *wsConn, req *Request) *Response {
	resp := &Response{JSONRPC: "2.0", ID: req.ID}
	var id string
	if err := firstParam(req.Params, &id); err != nil {
		resp.Error = toRPCError(err)
		return resp
	}
	ws.mu.Lock()
	cancel, ok := ws.subs[id]
	delete(ws.subs, id)
	ws.mu.Unlock()
	if ok {
		cancel()
	}
	resp.Result = ok
	return resp
}
