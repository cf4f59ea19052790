package vault

import (
	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/ledger"
	"github.com/weisyn/libretto-go/logger"
)

// Runtime 金库运行的宿主环境
//
// 账本负责原子转账，时钟决定锁定状态，事件由 Events 投递。
// 字段为空时使用默认实现（内存账本 / 系统时钟 / 进程内总线 / 空日志）。
type Runtime struct {
	Ledger ledger.Ledger
	Clock  ledger.Clock
	Events event.Sink
	Logger logger.Logger
}

// withDefaults 返回补齐默认值后的副本
func (rt *Runtime) withDefaults() Runtime {
	var out Runtime
	if rt != nil {
		out = *rt
	}
	if out.Ledger == nil {
		out.Ledger = ledger.NewMemoryLedger()
	}
	if out.Clock == nil {
		out.Clock = ledger.SystemClock{}
	}
	if out.Events == nil {
		out.Events = event.NewBus(event.WithClock(out.Clock))
	}
	out.Logger = logger.OrNop(out.Logger)
	return out
}
