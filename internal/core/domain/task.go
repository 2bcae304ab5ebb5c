package domain

import "time"

// TaskStatus is the progress state of a task.
type TaskStatus string

// Task states.
const (
	TaskOpen       TaskStatus = "open"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// IsValid returns true if the status is recognised.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskOpen, TaskInProgress, TaskDone:
		return true
	default:
		return false
	}
}

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskOpen:       {TaskInProgress, TaskDone},
	TaskInProgress: {TaskOpen, TaskDone},
	TaskDone:       {TaskOpen},
}

// CanTransition reports whether a task may move from s to next.
// Staying in the same state is always allowed.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s == next {
		return next.IsValid()
	}
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TaskSource records how a task was created.
type TaskSource string

// Task sources.
const (
	TaskSourceManual  TaskSource = "manual"
	TaskSourceDerived TaskSource = "derived"
)

// Task is an actionable item, entered by a user or extracted from an answer's
// recommendation section.
type Task struct {
	ID          string
	OwnerID     string
	Description string
	Status      TaskStatus
	Source      TaskSource
	DocumentID  string // optional
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskFilter narrows a task listing. Zero values match everything.
type TaskFilter struct {
	Status     TaskStatus
	DocumentID string
}
