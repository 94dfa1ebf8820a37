// Package tables 路由表和静态ARP表的发布与重新加载
package tables

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"vnet/internal/arp"
	"vnet/internal/logging"
	"vnet/internal/metrics"
	"vnet/internal/routing"
)

// Snapshot 一次加载得到的完整表快照，发布后只读
type Snapshot struct {
	Routes *routing.Table
	ARP    *arp.Cache

	// Generation 每次成功加载递增，初始空表为0
	Generation uint64
	LoadedAt   time.Time
	// Source 加载来源描述
	Source string
}

// Source 表数据来源
type Source interface {
	Load(ctx context.Context) ([]routing.Route, []arp.Entry, error)
	String() string
}

// AddressTables 路由表和ARP表
// 查询通过原子指针读取当前快照，不加锁；加载在新快照上完成后整体替换，
// 失败时保留原快照，并发读者不会看到部分更新的表。
type AddressTables struct {
	current atomic.Pointer[Snapshot]

	// loadMu 串行化加载
	loadMu sync.Mutex
	known  func(string) bool

	subsMu sync.Mutex
	subs   []func(*Snapshot)

	metrics *metrics.Metrics
	log     *logging.Logger
}

// New 创建空表
// known 用于校验路由出接口，为nil时不校验
func New(known func(string) bool, log *logging.Logger, m *metrics.Metrics) *AddressTables {
	if log == nil {
		log = logging.GetLogger()
	}
	t := &AddressTables{
		known:   known,
		metrics: m,
		log:     log.Named("tables"),
	}
	t.current.Store(&Snapshot{
		Routes: routing.NewTable(),
		ARP:    arp.NewCache(),
	})
	return t
}

// Snapshot 返回当前生效的快照
func (t *AddressTables) Snapshot() *Snapshot {
	return t.current.Load()
}

// LookupRoute 最长前缀匹配查找路由
func (t *AddressTables) LookupRoute(dst netip.Addr) (routing.Route, bool) {
	return t.current.Load().Routes.Lookup(dst)
}

// LookupARP 查找下一跳MAC地址
func (t *AddressTables) LookupARP(ip netip.Addr) (net.HardwareAddr, bool) {
	return t.current.Load().ARP.Lookup(ip)
}

// OnSwap 注册快照替换回调，回调在加载goroutine中同步执行
func (t *AddressTables) OnSwap(fn func(*Snapshot)) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	t.subs = append(t.subs, fn)
}

// Load 从 src 加载完整的新快照
// 任一条目错误都会使本次加载失败，已发布的快照保持不变。
func (t *AddressTables) Load(ctx context.Context, src Source) error {
	t.loadMu.Lock()
	defer t.loadMu.Unlock()

	snap, err := t.build(ctx, src)
	if err != nil {
		t.metrics.TableLoaded(0, err)
		t.log.Error("加载表失败 (%s): %v", src, err)
		return fmt.Errorf("加载 %s 失败: %w", src, err)
	}

	t.current.Store(snap)
	t.metrics.TableLoaded(snap.Generation, nil)
	t.log.Info("表已加载 (%s): 路由 %d 条, ARP %d 条, 版本 %d",
		src, snap.Routes.Size(), snap.ARP.Size(), snap.Generation)

	t.subsMu.Lock()
	subs := slices.Clone(t.subs)
	t.subsMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

func (t *AddressTables) build(ctx context.Context, src Source) (*Snapshot, error) {
	routes, entries, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	if t.known != nil {
		var errs error
		for _, r := range routes {
			if !t.known(r.Interface) {
				errs = multierr.Append(errs, fmt.Errorf("%w: 路由 %s 使用未知接口 %s",
					routing.ErrMalformedRoute, r.Destination, r.Interface))
			}
		}
		if errs != nil {
			return nil, errs
		}
	}

	return &Snapshot{
		Routes:     routing.NewTable(routes...),
		ARP:        arp.NewCache(entries...),
		Generation: t.current.Load().Generation + 1,
		LoadedAt:   time.Now(),
		Source:     src.String(),
	}, nil
}
