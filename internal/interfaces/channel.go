package interfaces

import (
	"context"
	"sync"
)

// DefaultQueueSize 内存端口默认队列长度
const DefaultQueueSize = 256

// ChannelPort 基于channel的内存端口
// 用于测试和进程内仿真：Inject 模拟入站帧，Sent/Drain 取出出站帧。
// 出站队列满时丢帧，不阻塞发送方。
type ChannelPort struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}

	closeOnce sync.Once
}

// NewChannelPort 创建内存端口，size<=0 时使用 DefaultQueueSize
func NewChannelPort(size int) *ChannelPort {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &ChannelPort{
		in:   make(chan []byte, size),
		out:  make(chan []byte, size),
		done: make(chan struct{}),
	}
}

// Inject 注入一帧入站数据，阻塞直到入队或端口关闭
func (p *ChannelPort) Inject(ctx context.Context, frame []byte) error {
	select {
	case <-p.done:
		return ErrPortClosed
	default:
	}

	buf := make([]byte, len(frame))
	copy(buf, frame)

	select {
	case p.in <- buf:
		return nil
	case <-p.done:
		return ErrPortClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadFrame 读取一帧入站数据
func (p *ChannelPort) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-p.in:
		return frame, nil
	case <-p.done:
		return nil, ErrPortClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WriteFrame 发送一帧，队列满时返回 ErrTxQueueFull
func (p *ChannelPort) WriteFrame(frame []byte) error {
	select {
	case <-p.done:
		return ErrPortClosed
	default:
	}

	buf := make([]byte, len(frame))
	copy(buf, frame)

	select {
	case p.out <- buf:
		return nil
	default:
		return ErrTxQueueFull
	}
}

// Sent 出站帧通道
func (p *ChannelPort) Sent() <-chan []byte {
	return p.out
}

// Drain 取出当前所有出站帧
func (p *ChannelPort) Drain() [][]byte {
	var frames [][]byte
	for {
		select {
		case f := <-p.out:
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

// Close 关闭端口，可重复调用
func (p *ChannelPort) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	return nil
}
