package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskEnvelopeRoundTrip(t *testing.T) {
	original := &Task{
		ID:         "t-1",
		ScriptPath: "demo/double",
		Params:     map[string]interface{}{"v": 42.0},
		Class:      ClassCPU,
		MaxRetries: 3,
	}

	data, err := original.ToEnvelope().Marshal()
	require.NoError(t, err)

	env, err := UnmarshalEnvelope(data)
	require.NoError(t, err)

	restored := FromEnvelope(env)
	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.ScriptPath, restored.ScriptPath)
	assert.Equal(t, original.Class, restored.Class)
	assert.Equal(t, original.MaxRetries, restored.MaxRetries)
	assert.Equal(t, original.Params["v"], restored.Params["v"])
}

func TestResultEnvelopeRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	original := &Result{
		TaskID:      "t-1",
		Status:      StatusSuccess,
		Data:        map[string]interface{}{"result": 84.0},
		StartedAt:   now,
		CompletedAt: now.Add(5 * time.Millisecond),
	}

	data, err := original.ToEnvelope().Marshal()
	require.NoError(t, err)

	env, err := UnmarshalResultEnvelope(data)
	require.NoError(t, err)

	restored := env.ToResult()
	assert.Equal(t, original.TaskID, restored.TaskID)
	assert.Equal(t, original.Status, restored.Status)
	assert.Equal(t, original.Data["result"], restored.Data["result"])
	assert.WithinDuration(t, original.CompletedAt, restored.CompletedAt, time.Millisecond)
}

func TestNewFailedResult(t *testing.T) {
	started := time.Now()
	result := NewFailedResult("t-2", started, "boom", map[string]interface{}{"kind": "panic"})

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "boom", result.Error)
	assert.Equal(t, "panic", result.ErrorDetails["kind"])
	assert.True(t, result.Matches("t-2"))
	assert.False(t, result.Matches("other"))
}
