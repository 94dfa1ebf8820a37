// Package packettest builds Ethernet/IPv4 frames for tests.
package packettest

import (
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/require"
)

// IPv4 describes a test frame. Zero TTL defaults to 64.
type IPv4 struct {
	SrcMAC  string
	DstMAC  string
	SrcIP   string
	DstIP   string
	TTL     uint8
	Options []layers.IPv4Option
	Payload []byte
}

// MAC parses a MAC address or fails the test.
func MAC(t testing.TB, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	require.NoError(t, err)
	return mac
}

// IPv4Frame serializes an Ethernet+IPv4 frame with a correct header checksum.
func IPv4Frame(t testing.TB, p IPv4) []byte {
	t.Helper()

	ttl := p.TTL
	if ttl == 0 {
		ttl = 64
	}
	eth := &layers.Ethernet{
		SrcMAC:       MAC(t, p.SrcMAC),
		DstMAC:       MAC(t, p.DstMAC),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		Id:       1,
		TTL:      ttl,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(p.SrcIP).To4(),
		DstIP:    net.ParseIP(p.DstIP).To4(),
		Options:  p.Options,
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 9}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	payload := p.Payload
	if payload == nil {
		payload = []byte("vnet test payload")
	}

	return serialize(t, eth, ip, udp, gopacket.Payload(payload))
}

// EthernetFrame serializes a bare Ethernet frame with an arbitrary payload.
func EthernetFrame(t testing.TB, src, dst string, etherType layers.EthernetType, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       MAC(t, src),
		DstMAC:       MAC(t, dst),
		EthernetType: etherType,
	}
	return serialize(t, eth, gopacket.Payload(payload))
}

func serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return append([]byte(nil), buf.Bytes()...)
}

// Decode parses a frame back into layers for assertions.
func Decode(t testing.TB, frame []byte) (*layers.Ethernet, *layers.IPv4) {
	t.Helper()
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	require.Nil(t, pkt.ErrorLayer())

	eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	require.True(t, ok)
	ip, _ := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	return eth, ip
}
