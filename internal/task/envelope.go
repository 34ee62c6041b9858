package task

import (
	"encoding/json"
	"time"
)

// Envelope is the wire form of a Task as it crosses the InputQueue and
// the worker command channel. Marshaling to JSON at this boundary keeps
// the wire format stable even though the in-process transport is a Go
// channel rather than an OS pipe.
type Envelope struct {
	TaskID     string                 `json:"task_id"`
	ScriptPath string                 `json:"script_path"`
	Params     map[string]interface{} `json:"params"`
	TaskType   string                 `json:"task_type"`
	MaxRetries int                    `json:"max_retries"`
}

// ToEnvelope serializes a Task into its wire envelope.
func (t *Task) ToEnvelope() *Envelope {
	return &Envelope{
		TaskID:     t.ID,
		ScriptPath: t.ScriptPath,
		Params:     t.Params,
		TaskType:   string(t.Class),
		MaxRetries: t.MaxRetries,
	}
}

// FromEnvelope deserializes a wire envelope back into a Task.
func FromEnvelope(e *Envelope) *Task {
	return &Task{
		ID:         e.TaskID,
		ScriptPath: e.ScriptPath,
		Params:     e.Params,
		Class:      Class(e.TaskType),
		MaxRetries: e.MaxRetries,
	}
}

// Marshal encodes the task envelope as JSON, per the engine's
// serialize-deserialize boundary.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope decodes a JSON-encoded task envelope.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ResultEnvelope is the wire form of a Result as it crosses the OutputQueue.
type ResultEnvelope struct {
	TaskID       string                 `json:"task_id"`
	Status       string                 `json:"status"`
	Data         map[string]interface{} `json:"data"`
	Error        string                 `json:"error"`
	ErrorDetails map[string]interface{} `json:"error_details"`
	StartedAt    string                 `json:"started_at"`
	CompletedAt  string                 `json:"completed_at"`
}

// ToEnvelope serializes a Result into its wire envelope.
func (r *Result) ToEnvelope() *ResultEnvelope {
	env := &ResultEnvelope{
		TaskID:       r.TaskID,
		Status:       string(r.Status),
		Data:         r.Data,
		Error:        r.Error,
		ErrorDetails: r.ErrorDetails,
		CompletedAt:  r.CompletedAt.Format(timeFormat),
	}
	if !r.StartedAt.IsZero() {
		env.StartedAt = r.StartedAt.Format(timeFormat)
	}
	return env
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Marshal encodes the result envelope as JSON.
func (e *ResultEnvelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalResultEnvelope decodes a JSON-encoded result envelope.
func UnmarshalResultEnvelope(data []byte) (*ResultEnvelope, error) {
	var e ResultEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ToResult deserializes a wire envelope back into a Result.
func (e *ResultEnvelope) ToResult() *Result {
	r := &Result{
		TaskID:       e.TaskID,
		Status:       Status(e.Status),
		Data:         e.Data,
		Error:        e.Error,
		ErrorDetails: e.ErrorDetails,
	}
	if e.StartedAt != "" {
		if t, err := time.Parse(timeFormat, e.StartedAt); err == nil {
			r.StartedAt = t
		}
	}
	if e.CompletedAt != "" {
		if t, err := time.Parse(timeFormat, e.CompletedAt); err == nil {
			r.CompletedAt = t
		}
	}
	return r
}
