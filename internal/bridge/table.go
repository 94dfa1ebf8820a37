// Package bridge 以太网学习交换机：MAC地址表和交换转发引擎
package bridge

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"vnet/internal/logging"
	"vnet/internal/metrics"
)

const (
	// DefaultEntryTimeout MAC表条目老化时间
	DefaultEntryTimeout = 15 * time.Second

	// DefaultSweepInterval 老化扫描周期
	DefaultSweepInterval = time.Second
)

// macKey MAC地址作为map键
type macKey [6]byte

func keyOf(mac net.HardwareAddr) (macKey, bool) {
	var k macKey
	if len(mac) != len(k) {
		return k, false
	}
	copy(k[:], mac)
	return k, true
}

// Entry MAC表条目
type Entry struct {
	MAC       net.HardwareAddr
	Interface string
	LastSeen  time.Time
}

type entry struct {
	iface    string
	lastSeen time.Time
}

// Table 学习交换机的MAC地址表
// 学习、查询和老化共用一把表级互斥锁，任意时刻表中没有超过老化时间仍被查询到的
// 条目（最多滞后一个扫描周期）。
type Table struct {
	mu      sync.Mutex
	entries map[macKey]*entry
	timeout time.Duration

	metrics *metrics.Metrics
	log     *logging.Logger
}

// NewTable 创建MAC表，timeout<=0 时使用 DefaultEntryTimeout
func NewTable(timeout time.Duration, log *logging.Logger, m *metrics.Metrics) *Table {
	if timeout <= 0 {
		timeout = DefaultEntryTimeout
	}
	if log == nil {
		log = logging.GetLogger()
	}
	return &Table{
		entries: make(map[macKey]*entry),
		timeout: timeout,
		metrics: m,
		log:     log.Named("mac-table"),
	}
}

// Timeout 返回老化时间
func (t *Table) Timeout() time.Duration {
	return t.timeout
}

// Observe 记录从 iface 收到源地址为 mac 的帧
// 未知地址插入新条目；已知地址只刷新时间戳，绑定的接口保持不变。
func (t *Table) Observe(mac net.HardwareAddr, iface string, now time.Time) {
	k, ok := keyOf(mac)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[k]; ok {
		e.lastSeen = now
		return
	}
	t.entries[k] = &entry{iface: iface, lastSeen: now}
}

// Lookup 查询 mac 绑定的接口，不修改表
func (t *Table) Lookup(mac net.HardwareAddr) (string, bool) {
	k, ok := keyOf(mac)
	if !ok {
		return "", false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[k]
	if !ok {
		return "", false
	}
	return e.iface, true
}

// Sweep 删除 now-lastSeen 超过老化时间的条目，返回删除数量
// 恰好等于老化时间的条目保留
func (t *Table) Sweep(now time.Time) int {
	t.mu.Lock()
	removed := 0
	for k, e := range t.entries {
		if now.Sub(e.lastSeen) > t.timeout {
			delete(t.entries, k)
			removed++
		}
	}
	size := len(t.entries)
	t.mu.Unlock()

	t.metrics.MACTable(size, removed)
	if removed > 0 {
		t.log.Debug("MAC表老化 %d 条，剩余 %d 条", removed, size)
	}
	return removed
}

// Size 当前条目数
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Entries 按接口名、MAC排序返回所有条目的副本
func (t *Table) Entries() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.entries))
	for k, e := range t.entries {
		mac := make(net.HardwareAddr, len(k))
		copy(mac, k[:])
		out = append(out, Entry{MAC: mac, Interface: e.iface, LastSeen: e.lastSeen})
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Interface != out[j].Interface {
			return out[i].Interface < out[j].Interface
		}
		return out[i].MAC.String() < out[j].MAC.String()
	})
	return out
}

// Run 每隔 interval 执行一次老化扫描，直到 ctx 取消
// now 为 nil 时使用 time.Now
func (t *Table) Run(ctx context.Context, interval time.Duration, now func() time.Time) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if now == nil {
		now = time.Now
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.log.Info("MAC表老化任务启动，周期 %v，老化时间 %v", interval, t.timeout)
	for {
		select {
		case <-ctx.Done():
			t.log.Info("MAC表老化任务停止")
			return
		case <-ticker.C:
			t.Sweep(now())
		}
	}
}
