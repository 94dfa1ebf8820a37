package routing

import "net/netip"

// RouteType 路由类型枚举
// 静态路由表中的条目按目标网络和网关推导出类型，仅用于展示
type RouteType int

const (
	// RouteTypeStatic 经网关转发的静态路由
	RouteTypeStatic RouteType = iota

	// RouteTypeConnected 直连路由
	// 网关为 0.0.0.0，下一跳就是数据包的目的地址本身
	RouteTypeConnected

	// RouteTypeDefault 默认路由（0.0.0.0/0）
	// 当没有更具体的路由时使用的兜底路径
	RouteTypeDefault
)

// String 返回路由类型的字符串表示
func (rt RouteType) String() string {
	switch rt {
	case RouteTypeStatic:
		return "静态"
	case RouteTypeConnected:
		return "直连"
	case RouteTypeDefault:
		return "默认"
	default:
		return "未知"
	}
}

// Route 路由条目
// 加载后不可修改，整表替换时随旧表一起丢弃
type Route struct {
	// Destination 目标网络，前缀已按掩码规范化
	// 例如：10.0.0.0/24
	Destination netip.Prefix

	// Gateway 下一跳网关地址
	// 零值或 0.0.0.0 表示目标网络直连，下一跳为目的地址本身
	Gateway netip.Addr

	// Interface 出接口名称，必须是设备上已配置的接口
	Interface string
}

// DirectlyConnected 判断路由是否为直连路由
func (r Route) DirectlyConnected() bool {
	return !r.Gateway.IsValid() || r.Gateway.IsUnspecified()
}

// NextHop 计算发往 dst 的下一跳地址
// 有网关时返回网关，直连时返回 dst 本身
func (r Route) NextHop(dst netip.Addr) netip.Addr {
	if r.DirectlyConnected() {
		return dst
	}
	return r.Gateway
}

// Type 推导路由类型
func (r Route) Type() RouteType {
	switch {
	case r.Destination.Bits() == 0:
		return RouteTypeDefault
	case r.DirectlyConnected():
		return RouteTypeConnected
	default:
		return RouteTypeStatic
	}
}

// gatewayString 直连路由的网关统一显示为 0.0.0.0
func (r Route) gatewayString() string {
	if r.DirectlyConnected() {
		return netip.IPv4Unspecified().String()
	}
	return r.Gateway.String()
}
