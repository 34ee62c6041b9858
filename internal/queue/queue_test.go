package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTryEnqueueDequeue(t *testing.T) {
	q := New(2)

	assert.True(t, q.TryEnqueue([]byte("a")))
	assert.True(t, q.TryEnqueue([]byte("b")))
	assert.False(t, q.TryEnqueue([]byte("c")), "queue bounded at 2 must reject a third item")

	data, ok := q.TryDequeue()
	assert.True(t, ok)
	assert.Equal(t, "a", string(data))

	stats := q.Stats()
	assert.Equal(t, int64(2), stats.Enqueued)
	assert.Equal(t, int64(1), stats.Dequeued)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestDequeueBlocksUntilTimeout(t *testing.T) {
	q := New(1)

	start := time.Now()
	_, ok := q.Dequeue(context.Background(), 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestEnqueueUnblocksOnRoomAvailable(t *testing.T) {
	q := New(1)
	require := q.TryEnqueue([]byte("x"))
	if !require {
		t.Fatal("setup enqueue failed")
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.TryDequeue()
	}()

	ok := q.Enqueue(context.Background(), []byte("y"), 500*time.Millisecond)
	assert.True(t, ok)
}

func TestLenReflectsDepth(t *testing.T) {
	q := New(4)
	q.TryEnqueue([]byte("a"))
	q.TryEnqueue([]byte("b"))
	assert.Equal(t, 2, q.Len())
}
