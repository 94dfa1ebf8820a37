package interfaces

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"vnet/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestManager(t *testing.T, names ...string) (*Manager, map[string]*ChannelPort) {
	t.Helper()

	m := NewManager(logging.NewNop(), nil)
	ports := make(map[string]*ChannelPort, len(names))
	for i, name := range names {
		p := NewChannelPort(8)
		mac := net.HardwareAddr{0x02, 0, 0, 0, 0, byte(i + 1)}
		require.NoError(t, m.AddInterface(Interface{
			Name: name,
			IP:   netip.AddrFrom4([4]byte{10, 0, byte(i), 1}),
			MAC:  mac,
		}, p))
		ports[name] = p
	}
	return m, ports
}

func TestManagerAddInterface(t *testing.T) {
	m, _ := newTestManager(t, "eth0", "eth1")

	err := m.AddInterface(Interface{Name: "eth0"}, NewChannelPort(1))
	assert.Error(t, err)
	assert.Error(t, m.AddInterface(Interface{}, NewChannelPort(1)))
	assert.Error(t, m.AddInterface(Interface{Name: "eth9"}, nil))

	ifaces := m.Interfaces()
	require.Len(t, ifaces, 2)
	assert.Equal(t, "eth0", ifaces[0].Name)
	assert.Equal(t, "eth1", ifaces[1].Name)

	iface, ok := m.Interface("eth1")
	require.True(t, ok)
	assert.Equal(t, "02:00:00:00:00:02", iface.MAC.String())
	assert.True(t, m.Known("eth0"))
	assert.False(t, m.Known("eth2"))
}

func TestManagerTransmit(t *testing.T) {
	m, ports := newTestManager(t, "eth0", "eth1")

	frame := []byte{1, 2, 3}
	m.Transmit(frame, "eth1")
	m.Transmit(frame, "missing")
	frame[0] = 9

	sent := ports["eth1"].Drain()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{1, 2, 3}, sent[0])
	assert.Empty(t, ports["eth0"].Drain())

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats[1].TxFrames)
}

func TestManagerTransmitQueueFull(t *testing.T) {
	m := NewManager(logging.NewNop(), nil)
	p := NewChannelPort(1)
	require.NoError(t, m.AddInterface(Interface{Name: "eth0"}, p))

	m.Transmit([]byte{1}, "eth0")
	m.Transmit([]byte{2}, "eth0")

	assert.Len(t, p.Drain(), 1)
	stats := m.Stats()
	assert.Equal(t, uint64(1), stats[0].TxFrames)
	assert.Equal(t, uint64(1), stats[0].TxErrors)
}

func TestManagerRun(t *testing.T) {
	m, ports := newTestManager(t, "eth0", "eth1")

	// 把 eth0 收到的帧原样转发到 eth1
	h := FrameHandlerFunc(func(frame []byte, in *Interface) {
		if in.Name == "eth0" {
			m.Transmit(frame, "eth1")
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx, h) }()

	require.NoError(t, ports["eth0"].Inject(ctx, []byte{0xaa, 0xbb}))

	select {
	case got := <-ports["eth1"].Sent():
		assert.Equal(t, []byte{0xaa, 0xbb}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("等待转发超时")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run 未退出")
	}

	// 端口已关闭
	assert.ErrorIs(t, ports["eth0"].WriteFrame([]byte{1}), ErrPortClosed)
	assert.Equal(t, uint64(1), m.Stats()[0].RxFrames)
}

func TestManagerRunStopsWhenPortsClosed(t *testing.T) {
	m, _ := newTestManager(t, "eth0")

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Run(context.Background(), FrameHandlerFunc(func([]byte, *Interface) {}))
	}()

	// 等待收包循环启动后关闭端口
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.Close())

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run 未退出")
	}
}

func TestChannelPort(t *testing.T) {
	p := NewChannelPort(0)
	ctx := context.Background()

	require.NoError(t, p.Inject(ctx, []byte{1}))
	frame, err := p.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, frame)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.ReadFrame(cctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	_, err = p.ReadFrame(ctx)
	assert.ErrorIs(t, err, ErrPortClosed)
	assert.ErrorIs(t, p.Inject(ctx, []byte{2}), ErrPortClosed)
}

func TestOpenPort(t *testing.T) {
	p, mac, err := OpenPort("channel", "eth0")
	require.NoError(t, err)
	assert.Nil(t, mac)
	assert.IsType(t, &ChannelPort{}, p)

	_, _, err = OpenPort("pcap", "eth0")
	assert.Error(t, err)
}
