package task

import "sync"

// PendingSet tracks task ids that have been submitted and whose Result
// has not yet been delivered to a caller. It is guarded by a dedicated
// mutex that is never acquired while holding a cache-shard lock or a
// worker's command-channel lock.
type PendingSet struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

// NewPendingSet creates an empty pending task set.
func NewPendingSet() *PendingSet {
	return &PendingSet{tasks: make(map[string]*Task)}
}

// Add registers t as pending.
func (p *PendingSet) Add(t *Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks[t.ID] = t
}

// Contains reports whether taskID is still pending.
func (p *PendingSet) Contains(taskID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tasks[taskID]
	return ok
}

// Peek returns the pending Task for taskID without removing it, for
// callers that need to read its attributes (e.g. Class for metrics
// labeling) before its Result is actually delivered.
func (p *PendingSet) Peek(taskID string) (*Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tasks[taskID]
	return t, ok
}

// Remove marks taskID as delivered, removing it from the pending set.
func (p *PendingSet) Remove(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tasks, taskID)
}

// Len returns the number of currently pending tasks.
func (p *PendingSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}
