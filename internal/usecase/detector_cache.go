package usecase

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DetectorFactory builds the detector for one symbol/interval pair.
type DetectorFactory func(symbol, interval string) *LevelDetector

// DetectorCache owns a bounded symbol|interval -> detector map with LRU eviction.
type DetectorCache struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, *LevelDetector]
	factory DetectorFactory
}

func NewDetectorCache(size int, factory DetectorFactory) (*DetectorCache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("detector cache size must be positive, got %d", size)
	}
	cache, err := lru.New[string, *LevelDetector](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector cache: %w", err)
	}
	return &DetectorCache{cache: cache, factory: factory}, nil
}

func (c *DetectorCache) Get(symbol, interval string) *LevelDetector {
	key := symbol + "|" + interval

	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.cache.Get(key); ok {
		return d
	}
	d := c.factory(symbol, interval)
	c.cache.Add(key, d)
	return d
}

// ForEach visits cached detectors without touching recency.
func (c *DetectorCache) ForEach(fn func(*LevelDetector)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.cache.Keys() {
		if d, ok := c.cache.Peek(key); ok {
			fn(d)
		}
	}
}

func (c *DetectorCache) Len() int {
	return c.cache.Len()
}
