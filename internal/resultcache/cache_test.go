package resultcache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowcore/taskengine/internal/task"
)

func TestCachePutGetConsumes(t *testing.T) {
	c := New(4, 10)

	c.Put(&task.Result{TaskID: "t-1", Status: task.StatusSuccess})

	result, ok := c.Get("t-1")
	require.True(t, ok)
	assert.Equal(t, "t-1", result.TaskID)

	_, ok = c.Get("t-1")
	assert.False(t, ok, "a second Get for the same id must return none")
}

func TestCacheGetMiss(t *testing.T) {
	c := New(4, 10)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestCacheEvictsLeastRecentlyUsedPerShard(t *testing.T) {
	// A single shard makes eviction order fully deterministic.
	c := New(1, 2)

	assert.False(t, c.Put(&task.Result{TaskID: "a"}))
	assert.False(t, c.Put(&task.Result{TaskID: "b"}))
	assert.True(t, c.Put(&task.Result{TaskID: "c"}), "third entry over a 2-capacity shard must evict")

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.Get("b")
	assert.True(t, ok)

	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCacheSizeAndClear(t *testing.T) {
	c := New(4, 100)

	for i := 0; i < 10; i++ {
		c.Put(&task.Result{TaskID: fmt.Sprintf("task-%d", i)})
	}
	assert.Equal(t, 10, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCacheDefaultsAppliedForInvalidSizes(t *testing.T) {
	c := New(0, 0)
	assert.Len(t, c.shards, 16)
	assert.Equal(t, 100, c.maxPerShard)
}
