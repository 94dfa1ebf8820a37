package packet

// ipv4ChecksumOffset IPv4头部中校验和字段的偏移
const ipv4ChecksumOffset = 10

// Checksum 计算反码和校验和
// 按每16位求和得到32位累加值，高16位不断回卷到低16位，最后取反。
// 奇数长度时最后一个字节按高位补零处理。
func Checksum(buf []byte) uint16 {
	return ^fold(sum(buf, -1))
}

// HeaderChecksum 计算IPv4头部校验和
// 计算时把校验和字段视为0，不修改传入的头部字节。
// 调用方需保证 hdr 恰好是 IHL*4 字节的头部，而不是整个数据包。
func HeaderChecksum(hdr []byte) uint16 {
	return ^fold(sum(hdr, ipv4ChecksumOffset))
}

// VerifyHeaderChecksum 校验IPv4头部中携带的校验和
func VerifyHeaderChecksum(hdr []byte) bool {
	if len(hdr) < IPv4MinHeaderLen {
		return false
	}
	carried := uint16(hdr[ipv4ChecksumOffset])<<8 | uint16(hdr[ipv4ChecksumOffset+1])
	return HeaderChecksum(hdr) == carried
}

// sum 按16位字累加，skip 指定需要视为0的字偏移（-1 表示不跳过）
func sum(buf []byte, skip int) uint32 {
	var v uint32
	l := len(buf)
	if l&1 != 0 {
		l--
		v += uint32(buf[l]) << 8
	}
	for i := 0; i < l; i += 2 {
		if i == skip {
			continue
		}
		v += uint32(buf[i])<<8 | uint32(buf[i+1])
	}
	return v
}

func fold(v uint32) uint16 {
	for v>>16 != 0 {
		v = (v & 0xffff) + (v >> 16)
	}
	return uint16(v)
}
