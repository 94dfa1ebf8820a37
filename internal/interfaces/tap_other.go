//go:build !linux

package interfaces

import (
	"context"
	"errors"
	"net"
)

// ErrTapUnsupported 当前平台不支持TAP驱动
var ErrTapUnsupported = errors.New("TAP驱动仅支持Linux")

// TapPort 非Linux平台占位
type TapPort struct{}

// OpenTap 非Linux平台总是返回 ErrTapUnsupported
func OpenTap(name string) (*TapPort, net.HardwareAddr, error) {
	return nil, nil, ErrTapUnsupported
}

func (p *TapPort) ReadFrame(ctx context.Context) ([]byte, error) { return nil, ErrTapUnsupported }
func (p *TapPort) WriteFrame(frame []byte) error                 { return ErrTapUnsupported }
func (p *TapPort) Close() error                                  { return nil }
