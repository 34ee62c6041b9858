// Package executor implements the external collaborator that loads and
// runs user scripts on behalf of a ThreadPool worker thread. Script
// bodies are not dynamically interpreted; they are registered ahead of
// time under a path, and the registry entry is treated as the
// "compiled" form of the script at that path — mirroring the contract
// of a cached, mtime-invalidated script loader without requiring an
// embedded interpreter.
package executor

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hollowcore/taskengine/internal/task"
	"github.com/hollowcore/taskengine/internal/taskengine/errs"
)

// MainFunc is the free-function entry point contract: main(params, context).
type MainFunc func(params map[string]interface{}, ctx *task.ExecutionContext) (map[string]interface{}, error)

// Module is the factory-returned-object entry point contract.
type Module interface {
	Run(params map[string]interface{}) (map[string]interface{}, error)
}

// ModuleFactory builds a fresh Module instance for a script invocation.
type ModuleFactory func() Module

type scriptEntry struct {
	main    MainFunc
	factory ModuleFactory
}

type cachedScript struct {
	mtime time.Time
	entry scriptEntry
}

// Registry holds the known entry points for each script path. A real
// deployment populates it at startup from the scripts the engine is
// configured to serve; the Executor itself only caches and invokes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]scriptEntry
}

// NewRegistry creates an empty script registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]scriptEntry)}
}

// RegisterMain registers a free-function entry point under path.
func (r *Registry) RegisterMain(path string, fn MainFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[path] = scriptEntry{main: fn}
}

// RegisterModule registers a factory-based entry point under path.
func (r *Registry) RegisterModule(path string, factory ModuleFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[path] = scriptEntry{factory: factory}
}

func (r *Registry) lookup(path string) (scriptEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[path]
	return e, ok
}

// Executor loads and caches scripts keyed by path, invalidating the
// cached entry when the file's modification time has advanced, then
// invokes the script's entry point and captures its result.
type Executor struct {
	registry *Registry
	statFunc func(path string) (time.Time, error)

	mu    sync.Mutex
	cache map[string]*cachedScript
}

// New creates an Executor backed by registry. Scripts are looked up on
// disk for mtime tracking; paths that do not exist on disk are treated
// as always-fresh (suited to in-memory/testdata registrations).
func New(registry *Registry) *Executor {
	return &Executor{
		registry: registry,
		statFunc: statMTime,
		cache:    make(map[string]*cachedScript),
	}
}

func statMTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// load returns the cached entry for path, refreshing it from the
// registry if the file's mtime has advanced since the entry was cached.
func (e *Executor) load(path string) (scriptEntry, error) {
	mtime, statErr := e.statFunc(path)

	e.mu.Lock()
	defer e.mu.Unlock()

	if cached, ok := e.cache[path]; ok {
		if statErr != nil || !mtime.After(cached.mtime) {
			return cached.entry, nil
		}
	}

	entry, ok := e.registry.lookup(path)
	if !ok {
		return scriptEntry{}, fmt.Errorf("no script registered at path %q", path)
	}

	e.cache[path] = &cachedScript{mtime: mtime, entry: entry}
	return entry, nil
}

// Execute runs t against its registered script, returning a Result. It
// never returns an error itself: any failure to load or run the script
// is reified into a FAILED Result, per the engine's never-crash-the-
// worker contract.
func (e *Executor) Execute(t *task.Task, ctx *task.ExecutionContext) (result *task.Result) {
	startedAt := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = task.NewFailedResult(t.ID, startedAt, fmt.Sprintf("%s: panic: %v", errs.ErrTaskExecutionFailed, r), map[string]interface{}{
				"kind":      "panic",
				"traceback": string(debug.Stack()),
			})
		}
	}()

	entry, err := e.load(t.ScriptPath)
	if err != nil {
		return task.NewFailedResult(t.ID, startedAt, err.Error(), map[string]interface{}{
			"kind": "script_load_error",
		})
	}

	var data map[string]interface{}
	switch {
	case entry.main != nil:
		data, err = entry.main(t.Params, ctx)
	case entry.factory != nil:
		data, err = entry.factory().Run(t.Params)
	default:
		err = fmt.Errorf("script at %q has no entry point", t.ScriptPath)
	}

	if err != nil {
		return task.NewFailedResult(t.ID, startedAt, fmt.Sprintf("%s: %s", errs.ErrTaskExecutionFailed, err), map[string]interface{}{
			"kind": "execution_error",
		})
	}

	return &task.Result{
		TaskID:      t.ID,
		Status:      task.StatusSuccess,
		Data:        data,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
	}
}
