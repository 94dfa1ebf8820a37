package packet

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

const (
	// EthernetHeaderLen 不带VLAN标签的以太网头部长度
	EthernetHeaderLen = 14
	// IPv4MinHeaderLen IPv4最小头部长度（IHL=5）
	IPv4MinHeaderLen = 20

	ipv4TTLOffset = 8
	ipv4DstOffset = 16
)

var (
	// ErrNotIPv4 以太网帧承载的不是IPv4
	ErrNotIPv4 = errors.New("以太网类型不是IPv4")
	// ErrMalformed 帧或头部无法解析
	ErrMalformed = errors.New("数据帧格式错误")
)

// IPv4Frame 以太网/IPv4帧的解码视图
// 以太网头部由gopacket解码，IPv4头部只取转发需要的字段，
// 选项内容、总长度和版本号都不参与判断。
type IPv4Frame struct {
	Ethernet layers.Ethernet

	// HeaderOffset IPv4头部在帧中的起始偏移
	HeaderOffset int
	// HeaderLen IPv4头部长度，等于 IHL*4
	HeaderLen int

	TTL      uint8
	Checksum uint16
	Dst      netip.Addr
}

// DecodeEthernet 解码以太网头部
func DecodeEthernet(frame []byte, eth *layers.Ethernet) error {
	if err := eth.DecodeFromBytes(frame, gopacket.NilDecodeFeedback); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// DecodeIPv4 解码以太网帧中的IPv4头部
// 非IPv4帧返回 ErrNotIPv4；IHL<5 或帧长度不足 IHL*4 字节时返回 ErrMalformed。
func DecodeIPv4(frame []byte, f *IPv4Frame) error {
	if err := DecodeEthernet(frame, &f.Ethernet); err != nil {
		return err
	}
	if f.Ethernet.EthernetType != layers.EthernetTypeIPv4 {
		return ErrNotIPv4
	}

	ip := f.Ethernet.Payload
	if len(ip) < IPv4MinHeaderLen {
		return fmt.Errorf("%w: IPv4头部不完整，%d 字节", ErrMalformed, len(ip))
	}
	hlen := int(ip[0]&0x0f) * 4
	if hlen < IPv4MinHeaderLen {
		return fmt.Errorf("%w: IHL %d 小于5", ErrMalformed, hlen/4)
	}
	if len(ip) < hlen {
		return fmt.Errorf("%w: 头部长度 %d 超出帧长度 %d", ErrMalformed, hlen, len(ip))
	}

	f.HeaderOffset = len(f.Ethernet.Contents)
	f.HeaderLen = hlen
	f.TTL = ip[ipv4TTLOffset]
	f.Checksum = uint16(ip[ipv4ChecksumOffset])<<8 | uint16(ip[ipv4ChecksumOffset+1])
	f.Dst = netip.AddrFrom4([4]byte(ip[ipv4DstOffset : ipv4DstOffset+4]))
	return nil
}

// Header 返回帧中的IPv4头部字节
func (f *IPv4Frame) Header(frame []byte) []byte {
	return frame[f.HeaderOffset : f.HeaderOffset+f.HeaderLen]
}

// Destination 返回目的IPv4地址
func (f *IPv4Frame) Destination() netip.Addr {
	return f.Dst
}

// SetTTL 改写帧中的TTL字段
func (f *IPv4Frame) SetTTL(frame []byte, ttl uint8) {
	frame[f.HeaderOffset+ipv4TTLOffset] = ttl
}

// UpdateChecksum 按当前头部内容重新计算并写回校验和
func (f *IPv4Frame) UpdateChecksum(frame []byte) {
	hdr := f.Header(frame)
	csum := HeaderChecksum(hdr)
	hdr[ipv4ChecksumOffset] = byte(csum >> 8)
	hdr[ipv4ChecksumOffset+1] = byte(csum)
}

// SetEthernetAddrs 改写以太网目的/源MAC
func SetEthernetAddrs(frame []byte, dst, src net.HardwareAddr) {
	copy(frame[0:6], dst)
	copy(frame[6:12], src)
}

// Clone 复制一份帧，后续改写不影响原始缓冲区
func Clone(frame []byte) []byte {
	out := make([]byte, len(frame))
	copy(out, frame)
	return out
}
