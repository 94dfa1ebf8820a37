package routing

import (
	"bytes"
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func knownIfaces(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestParseRoutes(t *testing.T) {
	input := `
# 目标网络 网关 掩码 接口
10.0.0.0 0.0.0.0 255.255.255.0 eth1
0.0.0.0  192.168.1.1 0.0.0.0 eth2

172.16.5.9 255.255.0.0 eth1
`
	routes, err := ParseRoutes(strings.NewReader(input), knownIfaces("eth1", "eth2"))
	require.NoError(t, err)
	require.Len(t, routes, 3)

	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/24"), routes[0].Destination)
	assert.True(t, routes[0].DirectlyConnected())
	assert.Equal(t, "eth1", routes[0].Interface)

	assert.Equal(t, netip.MustParsePrefix("0.0.0.0/0"), routes[1].Destination)
	assert.Equal(t, netip.MustParseAddr("192.168.1.1"), routes[1].Gateway)

	// 三列格式，主机位被清除
	assert.Equal(t, netip.MustParsePrefix("172.16.0.0/16"), routes[2].Destination)
	assert.True(t, routes[2].DirectlyConnected())
}

func TestParseRoutesMalformed(t *testing.T) {
	input := strings.Join([]string{
		"10.0.0.0 0.0.0.0 255.255.255.0 eth1",
		"10.0.1.0 0.0.0.0 255.0.255.0 eth1",
		"10.0.2.0 eth1",
		"10.0.3.0 0.0.0.0 255.255.255.0 eth9",
		"bogus 0.0.0.0 255.255.255.0 eth1",
		"10.0.4.0 fe80::1 255.255.255.0 eth1",
	}, "\n")

	routes, err := ParseRoutes(strings.NewReader(input), knownIfaces("eth1"))
	require.Error(t, err)
	assert.Nil(t, routes)
	assert.True(t, errors.Is(err, ErrMalformedRoute))

	errs := multierr.Errors(err)
	require.Len(t, errs, 5)

	var lines []int
	for _, e := range errs {
		var le *LineError
		require.ErrorAs(t, e, &le)
		lines = append(lines, le.Line)
	}
	assert.Equal(t, []int{2, 3, 4, 5, 6}, lines)
}

func TestParseRoutesNilKnownAcceptsAnyInterface(t *testing.T) {
	routes, err := ParseRoutes(strings.NewReader("10.0.0.0 255.0.0.0 anything\n"), nil)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "anything", routes[0].Interface)
}

func TestFormatRoutes(t *testing.T) {
	table := NewTable(
		mustRoute("0.0.0.0/0", "192.168.1.1", "eth2"),
		mustRoute("10.0.0.0/24", "", "eth1"),
	)

	var buf bytes.Buffer
	require.NoError(t, FormatRoutes(&buf, table))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "10.0.0.0/24")
	assert.Contains(t, lines[1], "0.0.0.0")
	assert.Contains(t, lines[2], "192.168.1.1")
	assert.Contains(t, lines[2], "默认")
}
