// Package forwarding IPv4路由转发引擎
package forwarding

import (
	"errors"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"vnet/internal/interfaces"
	"vnet/internal/logging"
	"vnet/internal/metrics"
	"vnet/internal/packet"
	"vnet/internal/routing"
	"vnet/internal/tables"
)

// DropReason 丢包原因
type DropReason int

const (
	// DropNone 未丢弃
	DropNone DropReason = iota
	// DropNotIPv4 以太网类型不是IPv4
	DropNotIPv4
	// DropMalformed 帧或IPv4头部无法解析
	DropMalformed
	// DropBadChecksum 头部校验和错误
	DropBadChecksum
	// DropTTLExpired TTL递减后为0
	DropTTLExpired
	// DropLocalDestination 目的地址是本机接口地址
	DropLocalDestination
	// DropNoRoute 没有匹配的路由
	DropNoRoute
	// DropNoARP 下一跳没有静态ARP条目
	DropNoARP
	// DropUnknownEgress 路由的出接口不存在
	DropUnknownEgress

	numDropReasons
)

// String 返回丢包原因的字符串表示，同时用作指标标签
func (r DropReason) String() string {
	switch r {
	case DropNone:
		return "none"
	case DropNotIPv4:
		return "not-ipv4"
	case DropMalformed:
		return "malformed"
	case DropBadChecksum:
		return "bad-checksum"
	case DropTTLExpired:
		return "ttl-expired"
	case DropLocalDestination:
		return "local-destination"
	case DropNoRoute:
		return "no-route"
	case DropNoARP:
		return "no-arp"
	case DropUnknownEgress:
		return "unknown-egress"
	default:
		return "unknown"
	}
}

// Decision 对一帧的转发决策
type Decision struct {
	// Reason 为 DropNone 时表示转发
	Reason DropReason

	// 以下字段仅在转发时有效
	Route   routing.Route
	NextHop netip.Addr
	Egress  *interfaces.Interface
	// Frame 改写后的新帧，与入站帧不共享内存
	Frame []byte
}

// Forward 是否转发
func (d Decision) Forward() bool {
	return d.Reason == DropNone
}

// Stats 转发统计信息
type Stats struct {
	// PacketsReceived 接收的帧总数
	PacketsReceived uint64

	// PacketsForwarded 成功转发的数据包数
	PacketsForwarded uint64

	// PacketsDropped 丢弃的帧数
	PacketsDropped uint64

	// Drops 按原因统计的丢包数
	Drops map[DropReason]uint64

	// CacheHits / CacheMisses 下一跳缓存命中情况
	CacheHits   uint64
	CacheMisses uint64
}

// Config 转发引擎配置
type Config struct {
	// RecomputeChecksum TTL递减后是否重新计算头部校验和
	// 关闭时保留原校验和，下游会看到校验和不匹配的头部
	RecomputeChecksum bool

	// CacheTTL 下一跳缓存有效期，<=0 时不启用缓存
	CacheTTL time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		RecomputeChecksum: true,
		CacheTTL:          30 * time.Second,
	}
}

// Tables 转发引擎读取的表快照来源
type Tables interface {
	Snapshot() *tables.Snapshot
}

// Engine IPv4转发引擎
// 每帧的处理是同步、无阻塞的纯计算，可被多个接口的收包goroutine并发调用。
// 入站帧不会被修改，转发时总是先复制再改写。
type Engine struct {
	config Config
	tables Tables
	ports  interfaces.Sender
	cache  *ForwardingCache

	received  atomic.Uint64
	forwarded atomic.Uint64
	drops     [numDropReasons]atomic.Uint64
	hits      atomic.Uint64
	misses    atomic.Uint64

	metrics *metrics.Metrics
	log     *logging.Logger
}

var _ interfaces.FrameHandler = (*Engine)(nil)

// NewForwardingEngine 创建转发引擎
func NewForwardingEngine(config Config, t Tables, ports interfaces.Sender, log *logging.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = logging.GetLogger()
	}
	return &Engine{
		config:  config,
		tables:  t,
		ports:   ports,
		cache:   NewForwardingCache(config.CacheTTL),
		metrics: m,
		log:     log.Named("router"),
	}
}

// HandleFrame 处理一个入站帧：转发或静默丢弃
func (fe *Engine) HandleFrame(frame []byte, in *interfaces.Interface) {
	d := fe.Decide(frame)
	if !d.Forward() {
		if fe.log.Enabled(logging.LogLevelDebug) {
			fe.log.Debugw("丢弃数据包", "in", in.Name, "reason", d.Reason.String())
		}
		return
	}
	fe.ports.Transmit(d.Frame, d.Egress.Name)
}

// Decide 按转发流水线计算一帧的决策，不发送
//
// 处理顺序：
//  1. 以太网类型必须是IPv4
//  2. 校验头部校验和（恰好 IHL*4 字节）
//  3. TTL减1，为0则丢弃
//  4. 目的地址是本机接口地址则丢弃
//  5. 最长前缀匹配查找路由
//  6. 下一跳为网关，直连路由则为目的地址本身
//  7. 查静态ARP得到下一跳MAC
//  8. 复制帧并改写：目的MAC=下一跳MAC，源MAC=出接口MAC
func (fe *Engine) Decide(frame []byte) Decision {
	fe.received.Add(1)

	var f packet.IPv4Frame
	if err := packet.DecodeIPv4(frame, &f); err != nil {
		if errors.Is(err, packet.ErrNotIPv4) {
			return fe.drop(DropNotIPv4)
		}
		return fe.drop(DropMalformed)
	}

	if !packet.VerifyHeaderChecksum(f.Header(frame)) {
		return fe.drop(DropBadChecksum)
	}

	if f.TTL <= 1 {
		return fe.drop(DropTTLExpired)
	}
	ttl := f.TTL - 1

	dst := f.Destination()
	if fe.isLocalDestination(dst) {
		return fe.drop(DropLocalDestination)
	}

	entry, reason := fe.resolve(dst)
	if reason != DropNone {
		return fe.drop(reason)
	}

	out := packet.Clone(frame)
	f.SetTTL(out, ttl)
	if fe.config.RecomputeChecksum {
		f.UpdateChecksum(out)
	}
	packet.SetEthernetAddrs(out, entry.MAC, entry.Egress.MAC)

	fe.forwarded.Add(1)
	fe.metrics.Forwarded()

	return Decision{
		Reason:  DropNone,
		Route:   entry.Route,
		NextHop: entry.NextHop,
		Egress:  entry.Egress,
		Frame:   out,
	}
}

// resolve 查找路由、下一跳和下一跳MAC，结果按表版本缓存
func (fe *Engine) resolve(dst netip.Addr) (*CacheEntry, DropReason) {
	snap := fe.tables.Snapshot()

	if entry, ok := fe.cache.Get(dst, snap.Generation); ok {
		fe.hits.Add(1)
		fe.metrics.CacheLookup(true)
		return entry, DropNone
	}
	if fe.cache != nil {
		fe.misses.Add(1)
		fe.metrics.CacheLookup(false)
	}

	route, ok := snap.Routes.Lookup(dst)
	if !ok {
		return nil, DropNoRoute
	}

	nextHop := route.NextHop(dst)
	mac, ok := snap.ARP.Lookup(nextHop)
	if !ok {
		return nil, DropNoARP
	}

	egress, ok := fe.ports.Interface(route.Interface)
	if !ok {
		return nil, DropUnknownEgress
	}

	entry := &CacheEntry{
		Generation: snap.Generation,
		Route:      route,
		NextHop:    nextHop,
		MAC:        mac,
		Egress:     egress,
	}
	fe.cache.Put(dst, entry)
	return entry, DropNone
}

// isLocalDestination 检查目的地址是否为本机某个接口的地址
func (fe *Engine) isLocalDestination(dst netip.Addr) bool {
	for _, iface := range fe.ports.Interfaces() {
		if iface.IP.IsValid() && iface.IP == dst {
			return true
		}
	}
	return false
}

func (fe *Engine) drop(reason DropReason) Decision {
	fe.drops[reason].Add(1)
	fe.metrics.Dropped(reason.String())
	return Decision{Reason: reason}
}

// FlushCache 清空下一跳缓存，表替换时调用
func (fe *Engine) FlushCache() {
	fe.cache.Flush()
}

// Stats 返回统计信息快照
func (fe *Engine) Stats() Stats {
	s := Stats{
		PacketsReceived:  fe.received.Load(),
		PacketsForwarded: fe.forwarded.Load(),
		Drops:            make(map[DropReason]uint64),
		CacheHits:        fe.hits.Load(),
		CacheMisses:      fe.misses.Load(),
	}
	for r := DropNotIPv4; r < numDropReasons; r++ {
		if n := fe.drops[r].Load(); n > 0 {
			s.Drops[r] = n
			s.PacketsDropped += n
		}
	}
	return s
}

// Config 返回引擎配置
func (fe *Engine) Config() Config {
	return fe.config
}

// LookupNextHop 查询发往 dst 的出接口、下一跳和下一跳MAC，供控制台诊断使用
// 与转发路径使用同一套表，但不经过缓存也不计数
func (fe *Engine) LookupNextHop(dst netip.Addr) (routing.Route, netip.Addr, net.HardwareAddr, DropReason) {
	snap := fe.tables.Snapshot()
	if fe.isLocalDestination(dst) {
		return routing.Route{}, netip.Addr{}, nil, DropLocalDestination
	}
	route, ok := snap.Routes.Lookup(dst)
	if !ok {
		return routing.Route{}, netip.Addr{}, nil, DropNoRoute
	}
	nextHop := route.NextHop(dst)
	mac, ok := snap.ARP.Lookup(nextHop)
	if !ok {
		return route, nextHop, nil, DropNoARP
	}
	if _, ok := fe.ports.Interface(route.Interface); !ok {
		return route, nextHop, mac, DropUnknownEgress
	}
	return route, nextHop, mac, DropNone
}
