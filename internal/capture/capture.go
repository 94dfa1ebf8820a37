// Package capture 把设备收到的帧写入pcap文件
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"

	"vnet/internal/interfaces"
	"vnet/internal/logging"
)

// DefaultSnapLen 默认截断长度
const DefaultSnapLen = 65535

// CaptureStats 捕获统计信息
type CaptureStats struct {
	// PacketsCaptured 写入的帧数
	PacketsCaptured uint64

	// BytesCaptured 写入的原始字节数（截断前）
	BytesCaptured uint64

	// ErrorCount 写入失败次数
	ErrorCount uint64

	// StartTime 开始时间
	StartTime time.Time
}

// PacketCapture pcap捕获器
// 所有接口的入站帧写入同一个文件，多个收包goroutine并发调用时串行写入。
type PacketCapture struct {
	mu      sync.Mutex
	file    *os.File
	writer  *pcapgo.Writer
	snapLen int
	closed  bool
	stats   CaptureStats

	log *logging.Logger
}

// Open 创建pcap文件并写入文件头，snapLen<=0 时使用 DefaultSnapLen
func Open(path string, snapLen int, log *logging.Logger) (*PacketCapture, error) {
	if snapLen <= 0 {
		snapLen = DefaultSnapLen
	}
	if log == nil {
		log = logging.GetLogger()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建捕获目录失败: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("创建捕获文件失败: %w", err)
	}

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(uint32(snapLen), layers.LinkTypeEthernet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("写入pcap文件头失败: %w", err)
	}

	pc := &PacketCapture{
		file:    f,
		writer:  w,
		snapLen: snapLen,
		stats:   CaptureStats{StartTime: time.Now()},
		log:     log.Named("capture"),
	}
	pc.log.Info("开始捕获到 %s (snaplen %d)", path, snapLen)
	return pc, nil
}

// Write 写入一帧
func (pc *PacketCapture) Write(frame []byte, ts time.Time) error {
	data := frame
	if len(data) > pc.snapLen {
		data = data[:pc.snapLen]
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(frame),
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.closed {
		return os.ErrClosed
	}
	if err := pc.writer.WritePacket(ci, data); err != nil {
		pc.stats.ErrorCount++
		return err
	}
	pc.stats.PacketsCaptured++
	pc.stats.BytesCaptured += uint64(len(frame))
	return nil
}

// Wrap 返回先记录再交给 h 处理的 FrameHandler
// 写入失败只记录日志，不影响转发。
func (pc *PacketCapture) Wrap(h interfaces.FrameHandler) interfaces.FrameHandler {
	return interfaces.FrameHandlerFunc(func(frame []byte, in *interfaces.Interface) {
		if err := pc.Write(frame, time.Now()); err != nil {
			pc.log.Debug("写入捕获文件失败: %v", err)
		}
		h.HandleFrame(frame, in)
	})
}

// Stats 返回统计信息
func (pc *PacketCapture) Stats() CaptureStats {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.stats
}

// Close 关闭捕获文件，可重复调用
func (pc *PacketCapture) Close() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.closed {
		return nil
	}
	pc.closed = true
	pc.log.Info("捕获结束，共 %d 帧", pc.stats.PacketsCaptured)
	return pc.file.Close()
}
