package routing

import (
	"math/rand"
	"net/netip"
	"testing"
)

func mustRoute(dest, gw, iface string) Route {
	r := Route{
		Destination: netip.MustParsePrefix(dest),
		Interface:   iface,
	}
	if gw != "" {
		r.Gateway = netip.MustParseAddr(gw)
	}
	return r
}

func TestNewTable(t *testing.T) {
	table := NewTable()
	if table == nil {
		t.Fatal("NewTable() returned nil")
	}
	if table.Size() != 0 {
		t.Errorf("Expected empty routing table, got %d routes", table.Size())
	}
	if _, ok := table.Lookup(netip.MustParseAddr("10.0.0.1")); ok {
		t.Error("空路由表不应命中任何地址")
	}
}

func TestLookupScenario(t *testing.T) {
	table := NewTable(
		mustRoute("10.0.0.0/24", "0.0.0.0", "eth1"),
		mustRoute("0.0.0.0/0", "192.168.1.1", "eth2"),
	)

	tests := []struct {
		dst     string
		iface   string
		nextHop string
	}{
		{"10.0.0.5", "eth1", "10.0.0.5"},
		{"8.8.8.8", "eth2", "192.168.1.1"},
		{"10.0.1.5", "eth2", "192.168.1.1"},
	}

	for _, tt := range tests {
		dst := netip.MustParseAddr(tt.dst)
		route, ok := table.Lookup(dst)
		if !ok {
			t.Fatalf("%s: 未找到路由", tt.dst)
		}
		if route.Interface != tt.iface {
			t.Errorf("%s: Expected interface %s, got %s", tt.dst, tt.iface, route.Interface)
		}
		if got := route.NextHop(dst).String(); got != tt.nextHop {
			t.Errorf("%s: Expected next hop %s, got %s", tt.dst, tt.nextHop, got)
		}
	}
}

func TestLookupLongestPrefix(t *testing.T) {
	// 加载顺序与前缀长度无关
	table := NewTable(
		mustRoute("0.0.0.0/0", "10.0.0.1", "eth0"),
		mustRoute("192.168.1.0/24", "10.0.0.3", "eth2"),
		mustRoute("192.168.0.0/16", "10.0.0.2", "eth1"),
		mustRoute("192.168.1.100/32", "10.0.0.4", "eth3"),
	)

	tests := map[string]string{
		"192.168.1.100": "eth3",
		"192.168.1.1":   "eth2",
		"192.168.2.1":   "eth1",
		"172.16.0.1":    "eth0",
	}
	for dst, want := range tests {
		route, ok := table.Lookup(netip.MustParseAddr(dst))
		if !ok {
			t.Fatalf("%s: 未找到路由", dst)
		}
		if route.Interface != want {
			t.Errorf("%s: Expected interface %s, got %s", dst, want, route.Interface)
		}
	}
}

func TestLookupNoMatch(t *testing.T) {
	table := NewTable(mustRoute("10.0.0.0/8", "", "eth0"))

	if _, ok := table.Lookup(netip.MustParseAddr("11.0.0.1")); ok {
		t.Error("不应匹配 10.0.0.0/8 之外的地址")
	}
	if _, ok := table.Lookup(netip.Addr{}); ok {
		t.Error("无效地址不应匹配")
	}
}

func TestLookupEqualLengthFirstLoadedWins(t *testing.T) {
	// 两条前缀不同写法但规范化后相同
	table := NewTable(
		mustRoute("10.1.0.0/16", "", "first"),
		mustRoute("10.1.2.3/16", "", "second"),
	)

	route, ok := table.Lookup(netip.MustParseAddr("10.1.9.9"))
	if !ok {
		t.Fatal("未找到路由")
	}
	if route.Interface != "first" {
		t.Errorf("Expected first-loaded route, got %s", route.Interface)
	}
	if route.Destination.String() != "10.1.0.0/16" {
		t.Errorf("目标网络未规范化: %s", route.Destination)
	}
}

func TestNewTableCopiesInput(t *testing.T) {
	routes := []Route{mustRoute("10.0.0.0/24", "", "eth1")}
	table := NewTable(routes...)
	routes[0].Interface = "changed"

	got := table.Routes()
	if got[0].Interface != "eth1" {
		t.Errorf("路由表被外部修改: %s", got[0].Interface)
	}
	got[0].Interface = "changed"
	if table.Routes()[0].Interface != "eth1" {
		t.Error("Routes() 应返回副本")
	}
}

// 随机路由表上与逐条比较的参考实现对照
func TestLookupMatchLengthMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	randAddr := func() netip.Addr {
		// 限制在少量 /8 内以制造重叠
		return netip.AddrFrom4([4]byte{byte(10 + rng.Intn(3)), byte(rng.Intn(4)), byte(rng.Intn(256)), byte(rng.Intn(256))})
	}

	routes := make([]Route, 0, 200)
	for i := 0; i < 200; i++ {
		p := netip.PrefixFrom(randAddr(), rng.Intn(33)).Masked()
		routes = append(routes, Route{Destination: p, Interface: p.String()})
	}
	table := NewTable(routes...)

	for i := 0; i < 2000; i++ {
		dst := randAddr()

		best := -1
		for _, r := range routes {
			if r.Destination.Contains(dst) && r.Destination.Bits() > best {
				best = r.Destination.Bits()
			}
		}

		route, ok := table.Lookup(dst)
		if best < 0 {
			if ok {
				t.Fatalf("%s: 不应匹配，得到 %s", dst, route.Destination)
			}
			continue
		}
		if !ok {
			t.Fatalf("%s: 应匹配 /%d", dst, best)
		}
		if !route.Destination.Contains(dst) {
			t.Fatalf("%s: 返回的路由 %s 不包含目标地址", dst, route.Destination)
		}
		if route.Destination.Bits() != best {
			t.Fatalf("%s: Expected /%d, got %s", dst, best, route.Destination)
		}
	}
}

func TestRouteType(t *testing.T) {
	tests := []struct {
		route Route
		want  RouteType
	}{
		{mustRoute("0.0.0.0/0", "192.168.1.1", "eth2"), RouteTypeDefault},
		{mustRoute("10.0.0.0/24", "0.0.0.0", "eth1"), RouteTypeConnected},
		{mustRoute("10.0.0.0/24", "", "eth1"), RouteTypeConnected},
		{mustRoute("172.16.0.0/12", "10.0.0.1", "eth1"), RouteTypeStatic},
	}
	for _, tt := range tests {
		if got := tt.route.Type(); got != tt.want {
			t.Errorf("%s: Expected %s, got %s", tt.route.Destination, tt.want, got)
		}
	}
}
