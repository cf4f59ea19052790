package event

import (
	"context"
	"sync"
	"time"

	"github.com/weisyn/libretto-go/types"
)

// DefaultHistoryLimit 默认保留的历史日志条数
const DefaultHistoryLimit = 10000

// subscriptionBuffer 订阅通道缓冲区大小
const subscriptionBuffer = 64

// Sink 事件输出接口（金库只依赖该接口）
type Sink interface {
	Publish(vault types.Address, p Payload) (*Log, error)
}

// Filter 事件查询 / 订阅过滤器
type Filter struct {
	Vault   *types.Address `json:"vault,omitempty"`
	Names   []string       `json:"names,omitempty"`
	FromSeq uint64         `json:"fromSeq,omitempty"`
	Limit   int            `json:"limit,omitempty"`
}

// Match 日志是否满足过滤条件（不考虑 Limit）
func (f *Filter) Match(log *Log) bool {
	if f == nil {
		return true
	}
	if f.Vault != nil && *f.Vault != log.Vault {
		return false
	}
	if log.Seq < f.FromSeq {
		return false
	}
	if len(f.Names) == 0 {
		return true
	}
	for _, name := range f.Names {
		if name == log.Name {
			return true
		}
	}
	return false
}

type subscription struct {
	filter *Filter
	ch     chan *Log
}

// Bus 进程内事件总线
//
// 保存有限历史并向订阅者广播。订阅者消费过慢（缓冲区满）时其通道被关闭，
// 调用方可以通过 Events(FromSeq) 补齐后重新订阅。
type Bus struct {
	mu           sync.Mutex
	now          func() time.Time
	historyLimit int
	logs         []*Log
	nextSeq      uint64
	nextSub      uint64
	subs         map[uint64]*subscription
}

// BusOption 总线选项
type BusOption func(*Bus)

// WithClock 使用指定时间源作为日志时间戳
func WithClock(clock interface{ Now() time.Time }) BusOption {
	return func(b *Bus) {
		if clock != nil {
			b.now = clock.Now
		}
	}
}

// WithHistoryLimit 设置历史日志上限
func WithHistoryLimit(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.historyLimit = n
		}
	}
}

// NewBus 创建事件总线
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
		nextSeq:      1,
		subs:         make(map[uint64]*subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish 编码事件、写入历史并广播
func (b *Bus) Publish(vault types.Address, p Payload) (*Log, error) {
	log, err := Encode(vault, p)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	log.Seq = b.nextSeq
	b.nextSeq++
	log.Timestamp = uint64(b.now().Unix())

	b.logs = append(b.logs, log)
	if len(b.logs) > b.historyLimit {
		b.logs = b.logs[len(b.logs)-b.historyLimit:]
	}

	for id, sub := range b.subs {
		if !sub.filter.Match(log) {
			continue
		}
		select {
		case sub.ch <- log:
		default:
			close(sub.ch)
			delete(b.subs, id)
		}
	}
	return log, nil
}

// Events 按过滤条件查询历史日志
func (b *Bus) Events(filter *Filter) []*Log {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*Log, 0)
	for _, log := range b.logs {
		if !filter.Match(log) {
			continue
		}
		out = append(out, log)
		if filter != nil && filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Subscribe 订阅新事件，ctx 结束时通道关闭
func (b *Bus) Subscribe(ctx context.Context, filter *Filter) (<-chan *Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	sub := &subscription{filter: filter, ch: make(chan *Log, subscriptionBuffer)}
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			close(sub.ch)
			delete(b.subs, id)
		}
	}()

	return sub.ch, nil
}
