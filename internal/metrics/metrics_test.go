package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vnet/internal/logging"
)

func TestCounters(t *testing.T) {
	m := New()

	m.FrameReceived("eth0")
	m.FrameReceived("eth0")
	m.FrameTransmitted("eth1", nil)
	m.FrameTransmitted("eth1", errors.New("boom"))
	m.Forwarded()
	m.Dropped("ttl-expired")
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.TableLoaded(3, nil)
	m.TableLoaded(0, errors.New("bad"))
	m.SwitchFrame("flood")
	m.MACTable(4, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesReceived.WithLabelValues("eth0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesTransmitted.WithLabelValues("eth1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransmitErrors.WithLabelValues("eth1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RouterForwarded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RouterDrops.WithLabelValues("ttl-expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NextHopCache.WithLabelValues("hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TableGeneration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TableReloads.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SwitchFrames.WithLabelValues("flood")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.MACTableEntries))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MACTableExpired))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FrameReceived("eth0")
		m.FrameTransmitted("eth0", nil)
		m.Forwarded()
		m.Dropped("no-route")
		m.CacheLookup(true)
		m.TableLoaded(1, nil)
		m.SwitchFrame("unicast")
		m.MACTable(1, 1)
	})
	assert.Nil(t, m.Registry())
}

func TestServer(t *testing.T) {
	m := New()
	m.Forwarded()

	s := NewServer("127.0.0.1:0", "", m, logging.NewNop())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "vnet_router_forwarded_total 1"))
}
