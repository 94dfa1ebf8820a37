package interfaces

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"vnet/internal/logging"
	"vnet/internal/metrics"
)

// PortStats 单个接口的收发计数
type PortStats struct {
	Name     string
	RxFrames uint64
	TxFrames uint64
	TxErrors uint64
}

type portCounters struct {
	rx, tx, txErr atomic.Uint64
}

type member struct {
	iface    *Interface
	port     Port
	counters portCounters
}

// Manager 接口管理器
// 持有按配置顺序排列的接口及其端口，负责启动收包循环和发送帧。
// 接口只能在 Run 之前添加。
type Manager struct {
	mu      sync.RWMutex
	members []*member
	byName  map[string]*member
	running bool

	metrics *metrics.Metrics
	log     *logging.Logger
}

var _ Sender = (*Manager)(nil)

// NewManager 创建接口管理器，m 可以为nil
func NewManager(log *logging.Logger, m *metrics.Metrics) *Manager {
	if log == nil {
		log = logging.GetLogger()
	}
	return &Manager{
		byName:  make(map[string]*member),
		metrics: m,
		log:     log.Named("interfaces"),
	}
}

// AddInterface 添加接口及其端口
func (m *Manager) AddInterface(iface Interface, port Port) error {
	if iface.Name == "" {
		return fmt.Errorf("接口名称不能为空")
	}
	if port == nil {
		return fmt.Errorf("接口 %s 没有端口", iface.Name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("接口管理器运行中，不能添加接口 %s", iface.Name)
	}
	if _, exists := m.byName[iface.Name]; exists {
		return fmt.Errorf("接口 %s 已存在", iface.Name)
	}

	mac := make([]byte, len(iface.MAC))
	copy(mac, iface.MAC)
	iface.MAC = mac

	mb := &member{iface: &iface, port: port}
	m.members = append(m.members, mb)
	m.byName[iface.Name] = mb
	return nil
}

// Interfaces 按添加顺序返回所有接口
func (m *Manager) Interfaces() []*Interface {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Interface, len(m.members))
	for i, mb := range m.members {
		out[i] = mb.iface
	}
	return out
}

// Interface 按名称查找接口
func (m *Manager) Interface(name string) (*Interface, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mb, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return mb.iface, true
}

// Known 判断接口名称是否已配置
func (m *Manager) Known(name string) bool {
	_, ok := m.Interface(name)
	return ok
}

// Port 返回接口的端口
func (m *Manager) Port(name string) (Port, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mb, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return mb.port, true
}

// Transmit 向指定接口发送一帧
// 发送是尽力而为的：失败只计数并记录调试日志
func (m *Manager) Transmit(frame []byte, name string) {
	m.mu.RLock()
	mb, ok := m.byName[name]
	m.mu.RUnlock()
	if !ok {
		m.log.Debug("发送失败: 未知接口 %s", name)
		return
	}

	err := mb.port.WriteFrame(frame)
	m.metrics.FrameTransmitted(name, err)
	if err != nil {
		mb.counters.txErr.Add(1)
		m.log.Debug("接口 %s 发送失败: %v", name, err)
		return
	}
	mb.counters.tx.Add(1)
}

// Run 为每个接口启动一个收包循环，把收到的帧交给 h 处理
// ctx 取消后关闭所有端口并等待收包循环退出；任一端口出现非关闭类错误时返回该错误。
func (m *Manager) Run(ctx context.Context, h FrameHandler) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("接口管理器已在运行")
	}
	m.running = true
	members := append([]*member(nil), m.members...)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, mb := range members {
		mb := mb
		g.Go(func() error {
			return m.receiveLoop(gctx, mb, h)
		})
	}

	// 关闭端口以解除阻塞中的读操作，Wait 返回时 gctx 一定已取消
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		<-gctx.Done()
		if err := m.Close(); err != nil {
			m.log.Warn("关闭接口失败: %v", err)
		}
	}()

	err := g.Wait()
	<-closed
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (m *Manager) receiveLoop(ctx context.Context, mb *member, h FrameHandler) error {
	name := mb.iface.Name
	m.log.Debug("接口 %s 开始收包", name)

	for {
		frame, err := mb.port.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrPortClosed) {
				m.log.Debug("接口 %s 停止收包", name)
				return nil
			}
			return fmt.Errorf("接口 %s 读取失败: %w", name, err)
		}

		mb.counters.rx.Add(1)
		m.metrics.FrameReceived(name)
		h.HandleFrame(frame, mb.iface)
	}
}

// Stats 返回各接口的收发计数
func (m *Manager) Stats() []PortStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PortStats, len(m.members))
	for i, mb := range m.members {
		out[i] = PortStats{
			Name:     mb.iface.Name,
			RxFrames: mb.counters.rx.Load(),
			TxFrames: mb.counters.tx.Load(),
			TxErrors: mb.counters.txErr.Load(),
		}
	}
	return out
}

// Close 关闭所有端口
func (m *Manager) Close() error {
	m.mu.RLock()
	members := append([]*member(nil), m.members...)
	m.mu.RUnlock()

	var errs error
	for _, mb := range members {
		if err := mb.port.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("关闭接口 %s 失败: %w", mb.iface.Name, err))
		}
	}
	return errs
}
