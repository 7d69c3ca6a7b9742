// internal/task/registry.go
package task

import (
	"fmt"
	"sync"
	"time"

	apperrors "github.com/kuaigrab/kuaigrab/internal/errors"
)

// Status is the lifecycle state of a background download task.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"

	// StatusNotFound is synthetic: returned for lookups against unknown
	// identifiers, never stored.
	StatusNotFound Status = "not_found"
)

// Task is one tracked download operation. Terminal states are completed and
// failed; a terminal record never mutates again.
type Task struct {
	TaskID     string    `json:"task_id"`
	Status     Status    `json:"status"`
	Message    string    `json:"message"`
	ResultPath string    `json:"result_path,omitempty"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

// Registry tracks task state in process memory; state does not survive a
// restart. All methods are safe for concurrent use from in-flight downloads
// and status polls.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRegistry creates an empty registry. One instance is constructed at
// process start and injected wherever task state is needed.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Create inserts a task in the queued state. An existing task_id is an
// invariant violation surfaced as DuplicateTaskError.
func (r *Registry) Create(taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[taskID]; exists {
		return &apperrors.DuplicateTaskError{TaskID: taskID}
	}
	now := time.Now()
	r.tasks[taskID] = &Task{
		TaskID:    taskID,
		Status:    StatusQueued,
		Message:   "download task queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// Transition moves a task to a new status, overwriting message and result
// path. Only queued→processing and processing→{completed,failed} are legal.
func (r *Registry) Transition(taskID string, status Status, message, resultPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.tasks[taskID]
	if !exists {
		return fmt.Errorf("cannot transition unknown task %s", taskID)
	}
	if !validTransition(t.Status, status) {
		return fmt.Errorf("illegal task transition %s -> %s for %s", t.Status, status, taskID)
	}

	t.Status = status
	t.Message = message
	t.ResultPath = resultPath
	t.UpdatedAt = time.Now()
	return nil
}

// Lookup returns a copy of the task record. Unknown identifiers yield a
// synthetic not_found record rather than an error.
func (r *Registry) Lookup(taskID string) Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, exists := r.tasks[taskID]; exists {
		return *t
	}
	return Task{
		TaskID:  taskID,
		Status:  StatusNotFound,
		Message: "task not found",
	}
}

func validTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}
