package routing

import (
	"net/netip"
	"sort"
)

// Table 路由表结构体
// 构造完成后只读，可被多个goroutine无锁并发查询。
// 重新加载时整表替换，而不是在原表上增删条目。
type Table struct {
	// routes 路由条目切片
	// 按前缀长度降序排列，前缀长度相同时保持加载顺序
	routes []Route
}

// NewTable 创建路由表实例
// 传入的切片会被复制，调用方后续修改不影响路由表。
// 目标网络会按掩码规范化（去掉主机位）。
//
// 使用示例：
//
//	table := NewTable(
//	    Route{Destination: netip.MustParsePrefix("10.0.0.0/24"), Interface: "eth1"},
//	    Route{Destination: netip.MustParsePrefix("0.0.0.0/0"), Gateway: netip.MustParseAddr("192.168.1.1"), Interface: "eth2"},
//	)
func NewTable(routes ...Route) *Table {
	t := &Table{
		routes: make([]Route, len(routes)),
	}
	for i, r := range routes {
		r.Destination = r.Destination.Masked()
		t.routes[i] = r
	}
	t.sortRoutes()
	return t
}

// Lookup 查找到达指定目标IP的最佳路由
// 最长前缀匹配：在所有包含 dst 的路由中选择前缀最长的一条；
// 前缀长度相同时先加载的条目胜出。没有匹配时返回 false。
//
// 例如目标IP 192.168.1.100：
//   - 192.168.0.0/16 (匹配16位)
//   - 192.168.1.0/24 (匹配24位) ← 选择这个
//   - 0.0.0.0/0      (默认路由，匹配0位)
func (t *Table) Lookup(dst netip.Addr) (Route, bool) {
	if t == nil || !dst.IsValid() {
		return Route{}, false
	}
	dst = dst.Unmap()

	// 已按前缀长度排序，第一个匹配的就是最佳路由
	for _, route := range t.routes {
		if route.Destination.Contains(dst) {
			return route, true
		}
	}
	return Route{}, false
}

// Routes 返回所有路由的副本，顺序与查找顺序一致
func (t *Table) Routes() []Route {
	if t == nil {
		return nil
	}
	routes := make([]Route, len(t.routes))
	copy(routes, t.routes)
	return routes
}

// Size 返回路由表大小
func (t *Table) Size() int {
	if t == nil {
		return 0
	}
	return len(t.routes)
}

// sortRoutes 按照最长前缀匹配原则对路由表进行排序
// 前缀越长越靠前；使用稳定排序，等长前缀保持加载顺序。
func (t *Table) sortRoutes() {
	sort.SliceStable(t.routes, func(i, j int) bool {
		return t.routes[i].Destination.Bits() > t.routes[j].Destination.Bits()
	})
}
