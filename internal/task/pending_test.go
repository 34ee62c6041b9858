package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPendingSetLifecycle(t *testing.T) {
	p := NewPendingSet()
	tk := &Task{ID: "t-1"}

	assert.False(t, p.Contains("t-1"))

	p.Add(tk)
	assert.True(t, p.Contains("t-1"))
	assert.Equal(t, 1, p.Len())

	p.Remove("t-1")
	assert.False(t, p.Contains("t-1"))
	assert.Equal(t, 0, p.Len())
}

func TestPendingSetRemoveUnknownIsNoop(t *testing.T) {
	p := NewPendingSet()
	p.Remove("never-added")
	assert.Equal(t, 0, p.Len())
}
