package taskengine

import (
	"encoding/json"

	"github.com/hollowcore/taskengine/internal/queue"
	"github.com/hollowcore/taskengine/internal/task"
)

// outputSink adapts the OutputQueue to the threadpool.ResultSink
// contract, marshaling each Result to its wire envelope before pushing.
type outputSink struct {
	output *queue.Queue
}

func (s *outputSink) Publish(result *task.Result) bool {
	data, err := json.Marshal(result.ToEnvelope())
	if err != nil {
		return false
	}
	return s.output.TryEnqueue(data)
}
