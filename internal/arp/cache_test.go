package arp

import (
	"bytes"
	"errors"
	"net"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestParseEntriesAndLookup(t *testing.T) {
	input := `
# 静态ARP
10.0.0.5    02:00:00:00:00:05
192.168.1.1 02:00:00:00:01:01
`
	entries, err := ParseEntries(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	cache := NewCache(entries...)
	assert.Equal(t, 2, cache.Size())

	mac, ok := cache.Lookup(netip.MustParseAddr("192.168.1.1"))
	require.True(t, ok)
	assert.Equal(t, "02:00:00:00:01:01", mac.String())

	_, ok = cache.Lookup(netip.MustParseAddr("10.0.0.6"))
	assert.False(t, ok)
}

func TestParseEntriesMalformed(t *testing.T) {
	input := strings.Join([]string{
		"10.0.0.5 02:00:00:00:00:05",
		"10.0.0.6",
		"10.0.0.x 02:00:00:00:00:07",
		"10.0.0.8 not-a-mac",
		"10.0.0.9 02:00:00:00:00:00:00:09",
	}, "\n")

	entries, err := ParseEntries(strings.NewReader(input))
	require.Error(t, err)
	assert.Nil(t, entries)
	assert.True(t, errors.Is(err, ErrMalformedEntry))
	assert.Len(t, multierr.Errors(err), 4)
}

func TestNewCacheLastEntryWins(t *testing.T) {
	ip := netip.MustParseAddr("10.0.0.5")
	first, _ := net.ParseMAC("02:00:00:00:00:01")
	second, _ := net.ParseMAC("02:00:00:00:00:02")

	cache := NewCache(
		Entry{IPAddress: ip, MACAddress: first},
		Entry{IPAddress: ip, MACAddress: second},
	)

	mac, ok := cache.Lookup(ip)
	require.True(t, ok)
	assert.Equal(t, second, mac)
	assert.Equal(t, 1, cache.Size())
}

func TestNewCacheCopiesMAC(t *testing.T) {
	ip := netip.MustParseAddr("10.0.0.5")
	mac, _ := net.ParseMAC("02:00:00:00:00:01")
	cache := NewCache(Entry{IPAddress: ip, MACAddress: mac})
	mac[5] = 0xff

	got, _ := cache.Lookup(ip)
	assert.Equal(t, "02:00:00:00:00:01", got.String())
}

func TestFormatEntriesSorted(t *testing.T) {
	entries, err := ParseEntries(strings.NewReader("10.0.0.9 02:00:00:00:00:09\n10.0.0.1 02:00:00:00:00:01\n"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, FormatEntries(&buf, NewCache(entries...)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "10.0.0.1"))
	assert.True(t, strings.HasPrefix(lines[2], "10.0.0.9"))
}

func TestNilCache(t *testing.T) {
	var c *Cache
	_, ok := c.Lookup(netip.MustParseAddr("10.0.0.1"))
	assert.False(t, ok)
	assert.Zero(t, c.Size())
	assert.Empty(t, c.Entries())
}
