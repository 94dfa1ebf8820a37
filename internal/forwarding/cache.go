package forwarding

import (
	"net"
	"net/netip"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"vnet/internal/interfaces"
	"vnet/internal/routing"
)

// CacheEntry 下一跳缓存条目
// Generation 记录条目所依据的表版本，与当前版本不一致的条目视为未命中
type CacheEntry struct {
	Generation uint64
	Route      routing.Route
	NextHop    netip.Addr
	MAC        net.HardwareAddr
	Egress     *interfaces.Interface
}

// maxCacheEntries 超过后写入时先清理过期条目，仍然超过则整体清空
const maxCacheEntries = 65536

// ForwardingCache 按目的地址缓存路由查找和ARP解析的结果
// 只缓存成功的解析结果；表替换时整体清空。
// 不启动后台清理goroutine，过期条目在 Get 时视为未命中，在 Put 超过上限时清理。
type ForwardingCache struct {
	entries *gocache.Cache
}

// NewForwardingCache 创建缓存，ttl<=0 时返回nil表示不启用缓存
func NewForwardingCache(ttl time.Duration) *ForwardingCache {
	if ttl <= 0 {
		return nil
	}
	return &ForwardingCache{
		entries: gocache.New(ttl, 0),
	}
}

func cacheKey(dst netip.Addr) string {
	b := dst.As4()
	return string(b[:])
}

// Get 查找 dst 在表版本 generation 下的缓存结果
func (fc *ForwardingCache) Get(dst netip.Addr, generation uint64) (*CacheEntry, bool) {
	if fc == nil {
		return nil, false
	}
	v, ok := fc.entries.Get(cacheKey(dst))
	if !ok {
		return nil, false
	}
	entry := v.(*CacheEntry)
	if entry.Generation != generation {
		return nil, false
	}
	return entry, true
}

// Put 写入缓存
func (fc *ForwardingCache) Put(dst netip.Addr, entry *CacheEntry) {
	if fc == nil {
		return
	}
	if fc.entries.ItemCount() >= maxCacheEntries {
		fc.entries.DeleteExpired()
		if fc.entries.ItemCount() >= maxCacheEntries {
			fc.entries.Flush()
		}
	}
	fc.entries.SetDefault(cacheKey(dst), entry)
}

// Flush 清空缓存
func (fc *ForwardingCache) Flush() {
	if fc == nil {
		return
	}
	fc.entries.Flush()
}

// Len 返回缓存条目数（可能包含尚未清理的过期条目）
func (fc *ForwardingCache) Len() int {
	if fc == nil {
		return 0
	}
	return fc.entries.ItemCount()
}
