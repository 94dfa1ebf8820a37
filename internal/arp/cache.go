package arp

import (
	"fmt"
	"io"
	"net"
	"net/netip"
	"sort"
	"text/tabwriter"
)

// Entry ARP表条目
// 存储IP地址到MAC地址的映射关系，路由器需要知道下一跳的MAC地址才能构造以太网帧
type Entry struct {
	// IPAddress IP地址
	IPAddress netip.Addr

	// MACAddress MAC地址（硬件地址）
	MACAddress net.HardwareAddr
}

// Cache 静态ARP缓存
// 加载后只读，不做动态ARP请求/应答解析，也没有老化。
// 多个goroutine可以无锁并发查询。
type Cache struct {
	entries map[netip.Addr]net.HardwareAddr
}

// NewCache 由条目列表构造ARP缓存
// 同一IP出现多次时以最后一条为准
func NewCache(entries ...Entry) *Cache {
	c := &Cache{
		entries: make(map[netip.Addr]net.HardwareAddr, len(entries)),
	}
	for _, e := range entries {
		mac := make(net.HardwareAddr, len(e.MACAddress))
		copy(mac, e.MACAddress)
		c.entries[e.IPAddress.Unmap()] = mac
	}
	return c
}

// Lookup 精确查找IP对应的MAC地址
// 返回的切片与缓存共享，调用方不得修改
func (c *Cache) Lookup(ip netip.Addr) (net.HardwareAddr, bool) {
	if c == nil {
		return nil, false
	}
	mac, ok := c.entries[ip.Unmap()]
	return mac, ok
}

// Size 返回条目数量
func (c *Cache) Size() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries 按IP排序返回所有条目
func (c *Cache) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, 0, len(c.entries))
	for ip, mac := range c.entries {
		out = append(out, Entry{IPAddress: ip, MACAddress: mac})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IPAddress.Less(out[j].IPAddress)
	})
	return out
}

// FormatEntries 以表格形式输出ARP缓存
func FormatEntries(w io.Writer, c *Cache) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "IP地址\tMAC地址")
	for _, e := range c.Entries() {
		fmt.Fprintf(tw, "%s\t%s\n", e.IPAddress, e.MACAddress)
	}
	return tw.Flush()
}
