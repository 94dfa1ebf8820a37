package dao

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"vnet/internal/arp"
	"vnet/internal/routing"
)

// RouteModel 静态路由表记录
type RouteModel struct {
	ID uint `gorm:"primaryKey"`
	// Position 加载顺序，等长前缀时决定优先级
	Position    int    `gorm:"not null;index"`
	Destination string `gorm:"size:18;not null"`
	Gateway     string `gorm:"size:15;not null"`
	Interface   string `gorm:"size:32;not null"`
	CreatedAt   time.Time
}

// TableName 指定表名
func (RouteModel) TableName() string { return "static_routes" }

// ARPModel 静态ARP记录
type ARPModel struct {
	ID         uint   `gorm:"primaryKey"`
	Position   int    `gorm:"not null;index"`
	IPAddress  string `gorm:"size:15;not null"`
	MACAddress string `gorm:"size:17;not null"`
	CreatedAt  time.Time
}

// TableName 指定表名
func (ARPModel) TableName() string { return "static_arp" }

// NewRouteModel 由路由条目构造记录
func NewRouteModel(pos int, r routing.Route) *RouteModel {
	gw := netip.IPv4Unspecified()
	if !r.DirectlyConnected() {
		gw = r.Gateway
	}
	return &RouteModel{
		Position:    pos,
		Destination: r.Destination.String(),
		Gateway:     gw.String(),
		Interface:   r.Interface,
	}
}

// ToRoute 转换为路由条目
func (m *RouteModel) ToRoute() (routing.Route, error) {
	prefix, err := netip.ParsePrefix(m.Destination)
	if err != nil || !prefix.Addr().Is4() {
		return routing.Route{}, fmt.Errorf("%w: 记录%d 目标网络 %q", routing.ErrMalformedRoute, m.ID, m.Destination)
	}
	gw, err := netip.ParseAddr(m.Gateway)
	if err != nil || !gw.Is4() {
		return routing.Route{}, fmt.Errorf("%w: 记录%d 网关 %q", routing.ErrMalformedRoute, m.ID, m.Gateway)
	}
	return routing.Route{
		Destination: prefix.Masked(),
		Gateway:     gw,
		Interface:   m.Interface,
	}, nil
}

// NewARPModel 由ARP条目构造记录
func NewARPModel(pos int, e arp.Entry) *ARPModel {
	return &ARPModel{
		Position:   pos,
		IPAddress:  e.IPAddress.String(),
		MACAddress: e.MACAddress.String(),
	}
}

// ToEntry 转换为ARP条目
func (m *ARPModel) ToEntry() (arp.Entry, error) {
	ip, err := netip.ParseAddr(m.IPAddress)
	if err != nil || !ip.Is4() {
		return arp.Entry{}, fmt.Errorf("%w: 记录%d IP地址 %q", arp.ErrMalformedEntry, m.ID, m.IPAddress)
	}
	mac, err := net.ParseMAC(m.MACAddress)
	if err != nil {
		return arp.Entry{}, fmt.Errorf("%w: 记录%d MAC地址 %q", arp.ErrMalformedEntry, m.ID, m.MACAddress)
	}
	return arp.Entry{IPAddress: ip, MACAddress: mac}, nil
}
