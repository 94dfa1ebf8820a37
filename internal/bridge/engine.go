package bridge

import (
	"net"
	"sync/atomic"
	"time"

	"vnet/internal/interfaces"
	"vnet/internal/logging"
	"vnet/internal/metrics"
	"vnet/internal/packet"
)

// Action 交换机对一帧的处理方式
type Action int

const (
	// ActionDrop 帧不足以太网头部长度
	ActionDrop Action = iota
	// ActionUnicast 目的地址已学习，单播到对应接口
	ActionUnicast
	// ActionFlood 目的地址未知或与入接口相同，泛洪
	ActionFlood
)

func (a Action) String() string {
	switch a {
	case ActionUnicast:
		return "unicast"
	case ActionFlood:
		return "flood"
	default:
		return "drop"
	}
}

// SwitchStats 交换统计
type SwitchStats struct {
	Unicast uint64
	Flooded uint64
	Dropped uint64
}

// Engine 学习交换机转发引擎
type Engine struct {
	table *Table
	ports interfaces.Sender
	now   func() time.Time

	metrics *metrics.Metrics
	log     *logging.Logger

	unicast atomic.Uint64
	flooded atomic.Uint64
	dropped atomic.Uint64
}

var _ interfaces.FrameHandler = (*Engine)(nil)

// NewSwitchEngine 创建交换引擎
func NewSwitchEngine(table *Table, ports interfaces.Sender, log *logging.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = logging.GetLogger()
	}
	return &Engine{
		table:   table,
		ports:   ports,
		now:     time.Now,
		metrics: m,
		log:     log.Named("switch"),
	}
}

// Table 返回MAC表
func (e *Engine) Table() *Table {
	return e.table
}

// HandleFrame 学习源地址，然后单播或泛洪
// 帧原样发送，不做任何修改
func (e *Engine) HandleFrame(frame []byte, in *interfaces.Interface) {
	action, out := e.Decide(frame, in)
	switch action {
	case ActionDrop:
		if e.log.Enabled(logging.LogLevelDebug) {
			e.log.Debugw("丢弃过短的帧", "in", in.Name, "len", len(frame))
		}
	case ActionUnicast:
		e.ports.Transmit(frame, out[0])
	case ActionFlood:
		for _, name := range out {
			e.ports.Transmit(frame, name)
		}
	}
}

// Decide 学习源地址并返回处理方式和出接口列表，不发送
func (e *Engine) Decide(frame []byte, in *interfaces.Interface) (Action, []string) {
	if len(frame) < packet.EthernetHeaderLen {
		e.dropped.Add(1)
		e.metrics.SwitchFrame(ActionDrop.String())
		return ActionDrop, nil
	}

	dst := net.HardwareAddr(frame[0:6])
	src := net.HardwareAddr(frame[6:12])

	e.table.Observe(src, in.Name, e.now())

	if out, ok := e.table.Lookup(dst); ok && out != in.Name {
		e.unicast.Add(1)
		e.metrics.SwitchFrame(ActionUnicast.String())
		return ActionUnicast, []string{out}
	}

	all := e.ports.Interfaces()
	out := make([]string, 0, len(all))
	for _, iface := range all {
		if iface.Name != in.Name {
			out = append(out, iface.Name)
		}
	}
	e.flooded.Add(1)
	e.metrics.SwitchFrame(ActionFlood.String())
	return ActionFlood, out
}

// Stats 返回统计信息快照
func (e *Engine) Stats() SwitchStats {
	return SwitchStats{
		Unicast: e.unicast.Load(),
		Flooded: e.flooded.Load(),
		Dropped: e.dropped.Load(),
	}
}
