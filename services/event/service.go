package event

import (
	"context"
	"fmt"

	"github.com/weisyn/libretto-go/client"
	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/types"
)

// Service 金库事件服务接口
//
// 与金库服务的 GetEvents / Subscribe 不同，这里返回已按 ABI 解码的事件。
type Service interface {
	// GetEvents 获取事件列表
	GetEvents(ctx context.Context, filters *EventFilters) ([]*EventInfo, error)

	// SubscribeEvents 订阅事件（需要 WebSocket 客户端）
	SubscribeEvents(ctx context.Context, filters *EventFilters) (<-chan *EventInfo, error)
}

// eventService Event 服务实现
type eventService struct {
	client client.Client
}

// NewService 创建 Event 服务
func NewService(client client.Client) Service {
	return &eventService{
		client: client,
	}
}

// EventFilters 事件查询过滤器
type EventFilters struct {
	Vault     *types.Address
	EventName *string // Deposit / Withdraw / BeneficiaryChanged
	FromSeq   uint64
	Limit     int
}

func (f *EventFilters) toFilter() *event.Filter {
	if f == nil {
		return nil
	}
	out := &event.Filter{Vault: f.Vault, FromSeq: f.FromSeq, Limit: f.Limit}
	if f.EventName != nil {
		out.Names = []string{*f.EventName}
	}
	return out
}

// EventInfo 事件信息
type EventInfo struct {
	Seq       uint64
	Vault     types.Address
	EventName string
	Timestamp uint64
	// Payload 为 event.Deposit / event.Withdraw / event.BeneficiaryChanged 之一
	Payload event.Payload
}

// GetEvents 获取事件列表
func (s *eventService) GetEvents(ctx context.Context, filters *EventFilters) ([]*EventInfo, error) {
	params := []interface{}{}
	if f := filters.toFilter(); f != nil {
		params = append(params, f)
	}

	var logs []*event.Log
	if err := client.CallInto(ctx, s.client, types.MethodGetEvents, params, &logs); err != nil {
		return nil, fmt.Errorf("get events failed: %w", err)
	}

	out := make([]*EventInfo, 0, len(logs))
	for _, log := range logs {
		info, err := decodeLog(log)
		if err != nil {
			return nil, fmt.Errorf("decode event %d failed: %w", log.Seq, err)
		}
		out = append(out, info)
	}
	return out, nil
}

// SubscribeEvents 订阅事件；无法解码的推送被跳过
func (s *eventService) SubscribeEvents(ctx context.Context, filters *EventFilters) (<-chan *EventInfo, error) {
	logs, err := s.client.Subscribe(ctx, filters.toFilter())
	if err != nil {
		return nil, fmt.Errorf("subscribe events failed: %w", err)
	}

	out := make(chan *EventInfo, 16)
	go func() {
		defer close(out)
		for log := range logs {
			info, err := decodeLog(log)
			if err != nil {
				continue
			}
			select {
			case out <- info:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func decodeLog(log *event.Log) (*EventInfo, error) {
	payload, err := event.Decode(log)
	if err != nil {
		return nil, err
	}
	return &EventInfo{
		Seq:       log.Seq,
		Vault:     log.Vault,
		EventName: log.Name,
		Timestamp: log.Timestamp,
		Payload:   payload,
	}, nil
}
