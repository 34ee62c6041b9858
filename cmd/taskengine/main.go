package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hollowcore/taskengine/internal/executor"
	"github.com/hollowcore/taskengine/internal/executor/demoscripts"
	"github.com/hollowcore/taskengine/internal/platform/config"
	"github.com/hollowcore/taskengine/internal/platform/logger"
	"github.com/hollowcore/taskengine/internal/platform/metrics"
	"github.com/hollowcore/taskengine/internal/task"
	"github.com/hollowcore/taskengine/internal/taskengine"
)

func main() {
	cfg, err := config.Load("taskengine")
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg.Logger)
	log.Info("starting taskengine",
		"version", cfg.Version,
		"cpu_bound_count", cfg.Pools.CPUBoundCount,
		"io_bound_count", cfg.Pools.IOBoundCount,
	)

	m := metrics.NewMetrics(cfg.Service.Name)

	registry := executor.NewRegistry()
	demoscripts.Register(registry)

	eng := taskengine.New(cfg, log, m, registry)
	if err := eng.Start(); err != nil {
		log.Fatal("failed to start engine", "error", err)
	}

	if err := runDemo(eng, log); err != nil {
		log.Error("demo submission failed", "error", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig)

	if err := eng.Shutdown(true); err != nil {
		log.Error("shutdown error", "error", err)
	}

	log.Info("taskengine stopped gracefully")
}

// runDemo submits a single demo task (the double script) and logs its
// result so the binary has something observable to do on startup.
func runDemo(eng *taskengine.Engine, log logger.Logger) error {
	taskID, err := eng.SubmitTask(&task.Task{
		ScriptPath: demoscripts.PathDouble,
		Params:     map[string]interface{}{"v": 42.0},
		Class:      task.ClassCPU,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := eng.GetResult(ctx, taskID, 5*time.Second)
	if err != nil {
		return err
	}
	if result == nil {
		log.Warn("demo task timed out", "task_id", taskID)
		return nil
	}

	log.Info("demo task completed", "task_id", taskID, "status", result.Status, "data", result.Data)
	return nil
}
