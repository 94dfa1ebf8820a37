// Package interfaces 设备网络接口：接口信息、收发驱动和接口管理器
package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

var (
	// ErrPortClosed 端口已关闭
	ErrPortClosed = errors.New("端口已关闭")
	// ErrTxQueueFull 发送队列已满，帧被丢弃
	ErrTxQueueFull = errors.New("发送队列已满")
)

// Interface 网络接口
// 设备运行期间不变，路由条目和MAC表条目只按名称引用接口
type Interface struct {
	// Name 接口名称，如 "eth0"
	Name string

	// IP 接口IPv4地址，交换机角色下可以为空
	IP netip.Addr

	// MAC 接口MAC地址，路由器改写源MAC时使用出接口的地址
	MAC net.HardwareAddr
}

func (i *Interface) String() string {
	if i.IP.IsValid() {
		return fmt.Sprintf("%s(%s,%s)", i.Name, i.IP, i.MAC)
	}
	return fmt.Sprintf("%s(%s)", i.Name, i.MAC)
}

// Port 接口的收发驱动
type Port interface {
	// ReadFrame 阻塞读取一帧，ctx 取消或端口关闭时返回错误
	// 每次返回新的切片，调用方可以持有
	ReadFrame(ctx context.Context) ([]byte, error)

	// WriteFrame 发送一帧，不保留 frame
	WriteFrame(frame []byte) error

	// Close 关闭端口，解除阻塞中的 ReadFrame
	Close() error
}

// FrameHandler 处理入站帧
// 路由器和交换机引擎各自实现，按设备角色在构造时选择
type FrameHandler interface {
	HandleFrame(frame []byte, in *Interface)
}

// FrameHandlerFunc 函数形式的 FrameHandler
type FrameHandlerFunc func(frame []byte, in *Interface)

// HandleFrame 调用 f
func (f FrameHandlerFunc) HandleFrame(frame []byte, in *Interface) {
	f(frame, in)
}

// Sender 转发引擎依赖的接口集合：查询接口并向指定接口发送帧
type Sender interface {
	// Interfaces 按配置顺序返回所有接口
	Interfaces() []*Interface
	// Interface 按名称查找接口
	Interface(name string) (*Interface, bool)
	// Transmit 向指定接口发送一帧，发送失败只记录不返回
	Transmit(frame []byte, name string)
}
