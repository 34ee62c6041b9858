// Package resultcache implements the sharded, out-of-order result buffer
// that holds Results drained from the OutputQueue until their submitter
// collects them.
package resultcache

import (
	"container/list"
	"crypto/md5"
	"encoding/binary"
	"sync"

	"github.com/hollowcore/taskengine/internal/task"
)

// Cache is an N-shard associative store mapping task id to Result. Each
// shard is independently locked and LRU-bounded, so lookups for
// different task ids rarely contend.
type Cache struct {
	shards      []*shard
	shardCount  uint32
	maxPerShard int
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

type entry struct {
	taskID string
	result *task.Result
}

// New creates a cache with shardCount shards, each bounded at
// maxPerShard entries.
func New(shardCount, maxPerShard int) *Cache {
	if shardCount <= 0 {
		shardCount = 16
	}
	if maxPerShard <= 0 {
		maxPerShard = 100
	}

	c := &Cache{
		shards:      make([]*shard, shardCount),
		shardCount:  uint32(shardCount),
		maxPerShard: maxPerShard,
	}
	for i := range c.shards {
		c.shards[i] = &shard{
			entries: make(map[string]*list.Element),
			order:   list.New(),
		}
	}
	return c
}

// shardIndex computes hash(task_id) mod shard_count using the low 4
// bytes of the MD5 digest, read little-endian, as a uniform hash.
func (c *Cache) shardIndex(taskID string) uint32 {
	sum := md5.Sum([]byte(taskID))
	h := binary.LittleEndian.Uint32(sum[:4])
	return h % c.shardCount
}

// Put inserts result as the most-recently-used entry for its task id,
// evicting the shard's least-recently-used entry if it now exceeds
// maxPerShard. It reports whether an eviction occurred, for callers that
// report cache metrics.
func (c *Cache) Put(result *task.Result) bool {
	idx := c.shardIndex(result.TaskID)
	s := c.shards[idx]

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[result.TaskID]; ok {
		el.Value.(*entry).result = result
		s.order.MoveToFront(el)
		return false
	}

	el := s.order.PushFront(&entry{taskID: result.TaskID, result: result})
	s.entries[result.TaskID] = el

	if s.order.Len() > c.maxPerShard {
		oldest := s.order.Back()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.entries, oldest.Value.(*entry).taskID)
			return true
		}
	}
	return false
}

// Get removes and returns the Result for taskID if present. Get is
// consuming: the caller is treated as the final recipient, so a second
// Get for the same id returns ok=false.
func (c *Cache) Get(taskID string) (*task.Result, bool) {
	idx := c.shardIndex(taskID)
	s := c.shards[idx]

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[taskID]
	if !ok {
		return nil, false
	}

	s.order.Remove(el)
	delete(s.entries, taskID)
	return el.Value.(*entry).result, true
}

// Size returns the total number of entries held across all shards.
func (c *Cache) Size() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += s.order.Len()
		s.mu.Unlock()
	}
	return total
}

// Clear empties every shard.
func (c *Cache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.entries = make(map[string]*list.Element)
		s.order.Init()
		s.mu.Unlock()
	}
}

// ShardSizes returns the current entry count of each shard, in shard
// index order, for metrics reporting.
func (c *Cache) ShardSizes() []int {
	sizes := make([]int, len(c.shards))
	for i, s := range c.shards {
		s.mu.Lock()
		sizes[i] = s.order.Len()
		s.mu.Unlock()
	}
	return sizes
}
