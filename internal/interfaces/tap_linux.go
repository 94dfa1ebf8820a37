//go:build linux

package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/songgao/water"
	"github.com/vishvananda/netlink"
)

// maxFrameLen 读缓冲大小，覆盖带VLAN标签的以太网帧
const maxFrameLen = 1522

// TapPort Linux TAP设备端口
type TapPort struct {
	ifce *water.Interface
	mtu  int
}

// OpenTap 创建（或打开）TAP设备并将链路设置为UP
// 返回设备的MAC地址
func OpenTap(name string) (*TapPort, net.HardwareAddr, error) {
	ifce, err := water.New(water.Config{
		DeviceType:             water.TAP,
		PlatformSpecificParams: water.PlatformSpecificParams{Name: name},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("创建TAP设备 %s 失败: %w", name, err)
	}

	link, err := netlink.LinkByName(ifce.Name())
	if err != nil {
		_ = ifce.Close()
		return nil, nil, fmt.Errorf("获取链路 %s 失败: %w", ifce.Name(), err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		_ = ifce.Close()
		return nil, nil, fmt.Errorf("启用链路 %s 失败: %w", ifce.Name(), err)
	}

	attrs := link.Attrs()
	mtu := attrs.MTU
	if mtu <= 0 {
		mtu = 1500
	}
	return &TapPort{ifce: ifce, mtu: mtu}, attrs.HardwareAddr, nil
}

// ReadFrame 从TAP设备读取一帧
// 读操作本身不感知 ctx，关闭端口用于解除阻塞
func (p *TapPort) ReadFrame(ctx context.Context) ([]byte, error) {
	buf := make([]byte, max(p.mtu+18, maxFrameLen))
	n, err := p.ifce.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, os.ErrClosed) {
			return nil, ErrPortClosed
		}
		return nil, err
	}
	return buf[:n], nil
}

// WriteFrame 向TAP设备写入一帧
func (p *TapPort) WriteFrame(frame []byte) error {
	_, err := p.ifce.Write(frame)
	if errors.Is(err, os.ErrClosed) {
		return ErrPortClosed
	}
	return err
}

// Close 关闭TAP设备
func (p *TapPort) Close() error {
	err := p.ifce.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
