package ledger

import (
	"sync"
	"time"
)

// Clock 宿主时间源
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时钟
type SystemClock struct{}

// Now 返回当前系统时间
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock 可手动推进的时钟（开发节点与测试使用）
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock 以指定时间创建时钟，精度截断到秒
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start.Truncate(time.Second)}
}

// Now 返回当前时间
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance 推进时间，d 为负时忽略
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return c.now
}

// Set 设置时间，不允许回拨
func (c *ManualClock) Set(t time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
	return c.now
}
