package interfaces

import (
	"fmt"
	"net"
	"strings"
)

// 驱动类型
const (
	DriverChannel = "channel"
	DriverTap     = "tap"
)

// OpenPort 按驱动类型打开端口
// 返回的MAC地址来自设备本身，内存端口没有设备MAC，返回nil
func OpenPort(driver, name string) (Port, net.HardwareAddr, error) {
	switch strings.ToLower(driver) {
	case "", DriverChannel:
		return NewChannelPort(DefaultQueueSize), nil, nil
	case DriverTap:
		p, mac, err := OpenTap(name)
		if err != nil {
			return nil, nil, err
		}
		return p, mac, nil
	default:
		return nil, nil, fmt.Errorf("不支持的接口驱动: %s", driver)
	}
}
