// Package demoscripts registers a handful of illustrative scripts used
// by the cmd/taskengine demo entrypoint and by scenario tests.
package demoscripts

import (
	"fmt"
	"time"

	"github.com/hollowcore/taskengine/internal/executor"
	"github.com/hollowcore/taskengine/internal/task"
)

const (
	// PathDouble doubles the numeric "v" param.
	PathDouble = "demo/double"
	// PathSleepEcho sleeps for params["delay_ms"] then echoes params.
	PathSleepEcho = "demo/sleep_echo"
	// PathCrash panics unconditionally. Under the goroutine-isolated
	// worker realization, a panic is the analogue of a crashing worker
	// process: it must be contained to the one task (see Executor's
	// recover) rather than bringing down the whole engine the way a
	// real os.Exit in a genuine child process would only take that
	// child down.
	PathCrash = "demo/crash"
)

// Register installs the demo scripts into reg.
func Register(reg *executor.Registry) {
	reg.RegisterMain(PathDouble, double)
	reg.RegisterMain(PathSleepEcho, sleepEcho)
	reg.RegisterModule(PathCrash, func() executor.Module { return crashModule{} })
}

func double(params map[string]interface{}, _ *task.ExecutionContext) (map[string]interface{}, error) {
	v, ok := params["v"].(float64)
	if !ok {
		return nil, fmt.Errorf("param %q must be a number", "v")
	}
	return map[string]interface{}{"result": v * 2}, nil
}

func sleepEcho(params map[string]interface{}, _ *task.ExecutionContext) (map[string]interface{}, error) {
	delayMs, _ := params["delay_ms"].(float64)
	time.Sleep(time.Duration(delayMs) * time.Millisecond)
	return params, nil
}

type crashModule struct{}

func (crashModule) Run(map[string]interface{}) (map[string]interface{}, error) {
	panic("simulated worker crash")
}
