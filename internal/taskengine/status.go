package taskengine

import "github.com/hollowcore/taskengine/internal/queue"

// RunState is the Engine's own lifecycle state.
type RunState string

const (
	RunStateStopped RunState = "stopped"
	RunStateRunning RunState = "running"
)

// ComponentStatus is a point-in-time snapshot of one named component.
type ComponentStatus struct {
	Name    string                 `json:"name"`
	Healthy bool                   `json:"healthy"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
}

// SystemStatus aggregates status across every engine component.
type SystemStatus struct {
	State         RunState          `json:"state"`
	PendingCount  int               `json:"pending_count"`
	InputQueue    queue.Stats       `json:"input_queue"`
	OutputQueue   queue.Stats       `json:"output_queue"`
	CacheSize     int               `json:"cache_size"`
	Dispatched    int64             `json:"dispatched_total"`
	CPUWorkers    int               `json:"cpu_workers"`
	IOWorkers     int               `json:"io_workers"`
	Components    []ComponentStatus `json:"components"`
}

// HealthState is the coarse-grained health verdict for the whole engine.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// SystemHealth is the Engine's get_health() response.
type SystemHealth struct {
	State  HealthState       `json:"state"`
	Checks map[string]string `json:"checks"`
}
