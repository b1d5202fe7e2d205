package tasks

import (
	"sync"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further updates may follow.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is an ephemeral progress record for one pipeline run. It lives only
// in process memory; the dialog row in the database is the durable source
// of truth after a restart.
type Task struct {
	ID        string      `json:"task_id"`
	DialogID  string      `json:"dialog_id,omitempty"`
	FileID    string      `json:"file_id,omitempty"`
	Status    Status      `json:"status"`
	Progress  int         `json:"progress"`
	Message   string      `json:"message,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Store tracks pipeline progress for client polling. Implementations must
// be safe for concurrent use: pipelines write while handlers read.
type Store interface {
	Create(task Task)
	// Update advances a task's stage. Progress never decreases and terminal
	// tasks are left untouched.
	Update(id string, status Status, progress int, message string)
	Complete(id string, result interface{}, message string)
	Fail(id string, message string)
	Get(id string) (Task, bool)
	Delete(id string)
}

// MemoryStore is the in-process Store implementation. A single mutex guards
// the map: per-key writes come from pipeline goroutines while polling
// handlers read concurrently.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]Task),
	}
}

func (s *MemoryStore) Create(task Task) {
	if task.Status == "" {
		task.Status = StatusPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

func (s *MemoryStore) Update(id string, status Status, progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status.IsTerminal() {
		return
	}

	task.Status = status
	if progress > task.Progress {
		task.Progress = progress
	}
	if message != "" {
		task.Message = message
	}
	s.tasks[id] = task
}

func (s *MemoryStore) Complete(id string, result interface{}, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status.IsTerminal() {
		return
	}

	task.Status = StatusCompleted
	task.Progress = 100
	task.Message = message
	task.Result = result
	s.tasks[id] = task
}

func (s *MemoryStore) Fail(id string, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status.IsTerminal() {
		return
	}

	task.Status = StatusFailed
	task.Message = message
	s.tasks[id] = task
}

func (s *MemoryStore) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	return task, ok
}

func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}
