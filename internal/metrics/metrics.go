// Package metrics 数据平面的Prometheus指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vnet"

// Metrics 数据平面指标集合
// 所有指标注册在独立的Registry上，便于测试和多实例共存。
// 方法对nil接收者安全，未启用指标时可以直接传nil。
type Metrics struct {
	registry *prometheus.Registry

	// FramesReceived 各接口收到的帧数
	FramesReceived *prometheus.CounterVec
	// FramesTransmitted 各接口发出的帧数
	FramesTransmitted *prometheus.CounterVec
	// TransmitErrors 各接口发送失败次数
	TransmitErrors *prometheus.CounterVec

	// RouterForwarded 路由器成功转发的数据包数
	RouterForwarded prometheus.Counter
	// RouterDrops 路由器按原因统计的丢包数
	RouterDrops *prometheus.CounterVec
	// NextHopCache 下一跳缓存命中/未命中
	NextHopCache *prometheus.CounterVec
	// TableGeneration 当前生效的路由/ARP表版本
	TableGeneration prometheus.Gauge
	// TableReloads 表加载结果统计
	TableReloads *prometheus.CounterVec

	// SwitchFrames 交换机单播/泛洪/丢弃的帧数
	SwitchFrames *prometheus.CounterVec
	// MACTableEntries MAC地址表当前条目数
	MACTableEntries prometheus.Gauge
	// MACTableExpired 老化删除的MAC条目总数
	MACTableExpired prometheus.Counter
}

// New 创建指标集合并注册到新的Registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FramesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interface_frames_received_total",
			Help:      "Total number of frames received per interface",
		}, []string{"interface"}),
		FramesTransmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interface_frames_transmitted_total",
			Help:      "Total number of frames transmitted per interface",
		}, []string{"interface"}),
		TransmitErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interface_transmit_errors_total",
			Help:      "Total number of failed frame transmissions per interface",
		}, []string{"interface"}),

		RouterForwarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_forwarded_total",
			Help:      "Total number of IPv4 packets forwarded",
		}),
		RouterDrops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_drops_total",
			Help:      "Total number of frames dropped by the router",
		}, []string{"reason"}),
		NextHopCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_nexthop_cache_total",
			Help:      "Next-hop cache lookups by result",
		}, []string{"result"}),
		TableGeneration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "router_table_generation",
			Help:      "Generation of the active route/ARP snapshot",
		}),
		TableReloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_table_loads_total",
			Help:      "Route/ARP table loads by result",
		}, []string{"result"}),

		SwitchFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "switch_frames_total",
			Help:      "Frames handled by the switch by action",
		}, []string{"action"}),
		MACTableEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "switch_mac_table_entries",
			Help:      "Number of entries in the MAC learning table",
		}),
		MACTableExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "switch_mac_table_expired_total",
			Help:      "Total number of MAC entries removed by aging",
		}),
	}
}

// Registry 返回指标所在的Registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// FrameReceived 记录接口收到一帧
func (m *Metrics) FrameReceived(iface string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(iface).Inc()
}

// FrameTransmitted 记录接口发送结果
func (m *Metrics) FrameTransmitted(iface string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.TransmitErrors.WithLabelValues(iface).Inc()
		return
	}
	m.FramesTransmitted.WithLabelValues(iface).Inc()
}

// Forwarded 记录路由器转发一个数据包
func (m *Metrics) Forwarded() {
	if m == nil {
		return
	}
	m.RouterForwarded.Inc()
}

// Dropped 记录路由器丢包原因
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.RouterDrops.WithLabelValues(reason).Inc()
}

// CacheLookup 记录下一跳缓存查询结果
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.NextHopCache.WithLabelValues("hit").Inc()
	} else {
		m.NextHopCache.WithLabelValues("miss").Inc()
	}
}

// TableLoaded 记录表加载结果
func (m *Metrics) TableLoaded(generation uint64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.TableReloads.WithLabelValues("failure").Inc()
		return
	}
	m.TableReloads.WithLabelValues("success").Inc()
	m.TableGeneration.Set(float64(generation))
}

// SwitchFrame 记录交换机对一帧的处理动作
func (m *Metrics) SwitchFrame(action string) {
	if m == nil {
		return
	}
	m.SwitchFrames.WithLabelValues(action).Inc()
}

// MACTable 更新MAC表大小并累加老化条目数
func (m *Metrics) MACTable(size, expired int) {
	if m == nil {
		return
	}
	m.MACTableEntries.Set(float64(size))
	if expired > 0 {
		m.MACTableExpired.Add(float64(expired))
	}
}
