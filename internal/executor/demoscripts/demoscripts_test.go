package demoscripts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowcore/taskengine/internal/executor"
	"github.com/hollowcore/taskengine/internal/task"
)

func TestDoubleScript(t *testing.T) {
	reg := executor.NewRegistry()
	Register(reg)

	e := executor.New(reg)
	result := e.Execute(
		&task.Task{ID: "t-1", ScriptPath: PathDouble, Params: map[string]interface{}{"v": 42.0}},
		&task.ExecutionContext{TaskID: "t-1"},
	)

	require.Equal(t, task.StatusSuccess, result.Status)
	assert.Equal(t, 84.0, result.Data["result"])
}

func TestCrashScriptYieldsFailedResult(t *testing.T) {
	reg := executor.NewRegistry()
	Register(reg)

	e := executor.New(reg)
	result := e.Execute(
		&task.Task{ID: "t-2", ScriptPath: PathCrash},
		&task.ExecutionContext{TaskID: "t-2"},
	)

	assert.Equal(t, task.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "simulated worker crash")
}
