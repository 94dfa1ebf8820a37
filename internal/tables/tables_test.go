package tables

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vnet/internal/arp"
	"vnet/internal/dao"
	"vnet/internal/database"
	"vnet/internal/logging"
	"vnet/internal/metrics"
	"vnet/internal/routing"
)

const testRoutes = `
10.0.0.0 0.0.0.0 255.255.255.0 eth1
0.0.0.0 192.168.1.1 0.0.0.0 eth2
`

const testARP = `
10.0.0.5 02:00:00:00:00:05
192.168.1.1 02:00:00:00:01:01
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func known(names ...string) func(string) bool {
	return func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}
}

func newTables(m *metrics.Metrics) *AddressTables {
	return New(known("eth1", "eth2"), logging.NewNop(), m)
}

func TestInitialSnapshotEmpty(t *testing.T) {
	tbl := newTables(nil)

	snap := tbl.Snapshot()
	assert.Equal(t, uint64(0), snap.Generation)
	_, ok := tbl.LookupRoute(netip.MustParseAddr("10.0.0.1"))
	assert.False(t, ok)
	_, ok = tbl.LookupARP(netip.MustParseAddr("10.0.0.1"))
	assert.False(t, ok)
}

func TestLoadFromFiles(t *testing.T) {
	tbl := newTables(metrics.New())
	src := FileSource{
		RoutePath: writeFile(t, "rtable", testRoutes),
		ARPPath:   writeFile(t, "arp", testARP),
	}

	var swapped []uint64
	tbl.OnSwap(func(s *Snapshot) { swapped = append(swapped, s.Generation) })

	require.NoError(t, tbl.Load(context.Background(), src))
	assert.Equal(t, []uint64{1}, swapped)

	route, ok := tbl.LookupRoute(netip.MustParseAddr("8.8.8.8"))
	require.True(t, ok)
	assert.Equal(t, "eth2", route.Interface)

	mac, ok := tbl.LookupARP(netip.MustParseAddr("192.168.1.1"))
	require.True(t, ok)
	assert.Equal(t, "02:00:00:00:01:01", mac.String())

	snap := tbl.Snapshot()
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, src.String(), snap.Source)
	assert.False(t, snap.LoadedAt.IsZero())
}

func TestFailedLoadKeepsPreviousSnapshot(t *testing.T) {
	tbl := newTables(nil)
	good := FileSource{
		RoutePath: writeFile(t, "rtable", testRoutes),
		ARPPath:   writeFile(t, "arp", testARP),
	}
	require.NoError(t, tbl.Load(context.Background(), good))
	before := tbl.Snapshot()

	swaps := 0
	tbl.OnSwap(func(*Snapshot) { swaps++ })

	tests := []struct {
		name string
		src  FileSource
		is   error
	}{
		{
			name: "malformed route line",
			src: FileSource{
				RoutePath: writeFile(t, "bad-rtable", testRoutes+"10.9.0.0 0.0.0.0 255.0.255.0 eth1\n"),
				ARPPath:   good.ARPPath,
			},
			is: routing.ErrMalformedRoute,
		},
		{
			name: "unknown interface",
			src: FileSource{
				RoutePath: writeFile(t, "iface-rtable", "10.9.0.0 0.0.0.0 255.255.0.0 eth7\n"),
			},
			is: routing.ErrMalformedRoute,
		},
		{
			name: "malformed arp line",
			src: FileSource{
				RoutePath: good.RoutePath,
				ARPPath:   writeFile(t, "bad-arp", testARP+"10.0.0.9 zz:zz\n"),
			},
			is: arp.ErrMalformedEntry,
		},
		{
			name: "missing file",
			src:  FileSource{RoutePath: filepath.Join(t.TempDir(), "missing")},
			is:   os.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tbl.Load(context.Background(), tt.src)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.is), "unexpected error: %v", err)
			assert.Same(t, before, tbl.Snapshot())
		})
	}
	assert.Zero(t, swaps)
}

func TestConcurrentLookupDuringReload(t *testing.T) {
	tbl := newTables(nil)
	srcA := FileSource{RoutePath: writeFile(t, "a", "10.0.0.0 0.0.0.0 255.0.0.0 eth1\n")}
	srcB := FileSource{RoutePath: writeFile(t, "b", "10.0.0.0 0.0.0.0 255.0.0.0 eth2\n")}
	require.NoError(t, tbl.Load(context.Background(), srcA))

	dst := netip.MustParseAddr("10.1.2.3")
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				route, ok := tbl.LookupRoute(dst)
				if !ok || (route.Interface != "eth1" && route.Interface != "eth2") {
					t.Errorf("查询到不一致的路由: %+v %v", route, ok)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		src := srcA
		if i%2 == 0 {
			src = srcB
		}
		require.NoError(t, tbl.Load(context.Background(), src))
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, uint64(51), tbl.Snapshot().Generation)
}

func TestSaveAndLoadFromStore(t *testing.T) {
	ctx := context.Background()

	mgr := database.NewManager(&database.Config{FilePath: filepath.Join(t.TempDir(), "vnet.db")})
	require.NoError(t, mgr.Initialize(ctx))
	t.Cleanup(func() { _ = mgr.Close() })
	d := dao.NewTableDAO(mgr.GetDatabase())
	require.NoError(t, d.Migrate())

	src := newTables(nil)
	require.NoError(t, src.Load(ctx, FileSource{
		RoutePath: writeFile(t, "rtable", testRoutes),
		ARPPath:   writeFile(t, "arp", testARP),
	}))
	require.NoError(t, src.Save(ctx, d))

	dst := newTables(nil)
	require.NoError(t, dst.Load(ctx, StoreSource{DAO: d}))

	assert.Equal(t, src.Snapshot().Routes.Routes(), dst.Snapshot().Routes.Routes())
	assert.Equal(t, src.Snapshot().ARP.Entries(), dst.Snapshot().ARP.Entries())
	assert.Equal(t, "store", dst.Snapshot().Source)
}

func TestOnSwapSubscribersInOrder(t *testing.T) {
	tbl := newTables(nil)
	src := FileSource{
		RoutePath: writeFile(t, "rtable", testRoutes),
		ARPPath:   writeFile(t, "arp", testARP),
	}

	var calls []string
	tbl.OnSwap(func(s *Snapshot) {
		calls = append(calls, fmt.Sprintf("first:%d", s.Generation))
		// 回调中注册的订阅者从下一次替换开始生效
		if s.Generation == 1 {
			tbl.OnSwap(func(s *Snapshot) { calls = append(calls, fmt.Sprintf("late:%d", s.Generation)) })
		}
	})
	tbl.OnSwap(func(s *Snapshot) { calls = append(calls, fmt.Sprintf("second:%d", s.Generation)) })

	require.NoError(t, tbl.Load(context.Background(), src))
	require.NoError(t, tbl.Load(context.Background(), src))

	assert.Equal(t, []string{"first:1", "second:1", "first:2", "second:2", "late:2"}, calls)
}
