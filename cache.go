package hbase

import (
	"container/list"
	"sync"
)

// cacheKey identifies a cached block by file and offset.
type cacheKey struct {
	FileID      uint32
	BlockOffset uint64
}

type cacheEntry struct {
	key   cacheKey
	block *Block
	size  int64
}

// blockCache is a thread-safe LRU cache of decoded blocks, shared by
// every StoreFileScanner of a Store.
type blockCache struct {
	capacity  int64
	size      int64
	items     map[cacheKey]*list.Element
	evictList *list.List
	mu        sync.RWMutex

	hits   uint64
	misses uint64
}

// newBlockCache builds a cache with the given byte capacity; capacity 0
// disables caching (every Get misses, every Put is a no-op).
func newBlockCache(capacity int64) *blockCache {
	return &blockCache{
		capacity:  capacity,
		items:     make(map[cacheKey]*list.Element),
		evictList: list.New(),
	}
}

func (c *blockCache) Get(key cacheKey) (*Block, bool) {
	if c.capacity == 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.evictList.MoveToFront(elem)
		c.hits++
		return elem.Value.(*cacheEntry).block, true
	}
	c.misses++
	return nil, false
}

func (c *blockCache) Put(key cacheKey, block *Block) {
	if c.capacity == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	blockSize := int64(0)
	for _, e := range block.Entries {
		blockSize += int64(len(e.Key) + len(e.Value))
	}

	if elem, ok := c.items[key]; ok {
		c.evictList.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		c.size -= entry.size
		entry.block = block
		entry.size = blockSize
		c.size += blockSize
		return
	}

	for c.size+blockSize > c.capacity && c.evictList.Len() > 0 {
		c.evict()
	}

	entry := &cacheEntry{key: key, block: block, size: blockSize}
	elem := c.evictList.PushFront(entry)
	c.items[key] = elem
	c.size += blockSize
}

func (c *blockCache) evict() {
	elem := c.evictList.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.key)
	c.evictList.Remove(elem)
	c.size -= entry.size
	if entry.block != nil {
		entry.block.Release()
	}
}

func (c *blockCache) RemoveByFileID(fileID uint32) {
	if c.capacity == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, elem := range c.items {
		if key.FileID == fileID {
			entry := elem.Value.(*cacheEntry)
			delete(c.items, key)
			c.evictList.Remove(elem)
			c.size -= entry.size
			if entry.block != nil {
				entry.block.Release()
			}
		}
	}
}

func (c *blockCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, elem := range c.items {
		entry := elem.Value.(*cacheEntry)
		if entry.block != nil {
			entry.block.Release()
		}
	}
	c.items = make(map[cacheKey]*list.Element)
	c.evictList.Init()
	c.size = 0
}

func (c *blockCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: c.size, Capacity: c.capacity, Entries: c.evictList.Len()}
}

type CacheStats struct {
	Hits     uint64
	Misses   uint64
	Size     int64
	Capacity int64
	Entries  int
}

func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}
