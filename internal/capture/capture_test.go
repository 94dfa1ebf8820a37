package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vnet/internal/interfaces"
	"vnet/internal/logging"
	"vnet/internal/packet/packettest"
)

func TestWrapRecordsAndDelegates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump", "in.pcap")
	pc, err := Open(path, 0, logging.NewNop())
	require.NoError(t, err)

	frame := packettest.EthernetFrame(t, "02:00:00:00:00:0a", "02:00:00:00:00:0b", layers.EthernetTypeIPv4, []byte("hello"))

	var handled [][]byte
	h := pc.Wrap(interfaces.FrameHandlerFunc(func(f []byte, in *interfaces.Interface) {
		handled = append(handled, f)
	}))
	in := &interfaces.Interface{Name: "eth0"}
	h.HandleFrame(frame, in)
	h.HandleFrame(frame, in)

	require.Len(t, handled, 2)
	stats := pc.Stats()
	assert.Equal(t, uint64(2), stats.PacketsCaptured)
	assert.Equal(t, uint64(2*len(frame)), stats.BytesCaptured)
	require.NoError(t, pc.Close())
	require.NoError(t, pc.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())

	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, frame, data)
	assert.Equal(t, len(frame), ci.Length)
}

func TestSnapLenTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.pcap")
	pc, err := Open(path, 20, logging.NewNop())
	require.NoError(t, err)

	frame := packettest.EthernetFrame(t, "02:00:00:00:00:0a", "02:00:00:00:00:0b", layers.EthernetTypeIPv4, make([]byte, 100))
	require.NoError(t, pc.Write(frame, time.Unix(1700000000, 0)))
	require.NoError(t, pc.Close())

	assert.ErrorIs(t, pc.Write(frame, time.Now()), os.ErrClosed)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)

	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Len(t, data, 20)
	assert.Equal(t, len(frame), ci.Length)
	assert.Equal(t, int64(1700000000), ci.Timestamp.Unix())
}
