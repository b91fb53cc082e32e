package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
}

func (m memoryItem) expired(now time.Time) bool { return now.After(m.expireAt) }

// MemoryCache is a size-bounded LRU with per-entry expiry.
type MemoryCache struct {
	lru        *lru.Cache[string, memoryItem]
	defaultTTL time.Duration
	mu         sync.Mutex // serializes TryLock
	now        func() time.Time
}

func NewMemoryCache(opts ...MemoryOption) (*MemoryCache, error) {
	cfg := &MemoryConfig{MaxSize: 1000, DefaultTTL: time.Hour}
	for _, opt := range opts {
		opt(cfg)
	}
	c, err := lru.New[string, memoryItem](cfg.MaxSize)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{lru: c, defaultTTL: cfg.DefaultTTL, now: time.Now}, nil
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = mc.defaultTTL
	}
	mc.lru.Add(key, memoryItem{data: data, expireAt: mc.now().Add(expiration)})
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	item, ok := mc.lookup(key)
	if !ok {
		return ErrCacheMiss
	}
	return decode(item.data, dest)
}

func (mc *MemoryCache) lookup(key string) (memoryItem, bool) {
	item, ok := mc.lru.Get(key)
	if !ok {
		return memoryItem{}, false
	}
	if item.expired(mc.now()) {
		mc.lru.Remove(key)
		return memoryItem{}, false
	}
	return item, true
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		mc.lru.Remove(k)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	for _, k := range keys {
		if _, ok := mc.lookup(k); ok {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, ok := mc.lookup(key); ok {
		return false, nil
	}
	if ttl <= 0 {
		ttl = mc.defaultTTL
	}
	mc.lru.Add(key, memoryItem{data: []byte("locked"), expireAt: mc.now().Add(ttl)})
	return true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key string) error {
	mc.lru.Remove(key)
	return nil
}

// Len returns the number of entries, including ones not yet evicted after expiry.
func (mc *MemoryCache) Len() int { return mc.lru.Len() }
