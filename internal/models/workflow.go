package models

import "time"

// TaskStatus is a workflow task's column on the board.
type TaskStatus string

const (
	// TaskStatusTodo is a task not yet started.
	TaskStatusTodo TaskStatus = "todo"
	// TaskStatusInProgress is a task being worked on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusDone is a completed task.
	TaskStatusDone TaskStatus = "done"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// Comment is a note attached to a task.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is a unit of work on a workflow board.
type Task struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Status   TaskStatus `json:"status"`
	Assignee string     `json:"assignee,omitempty"`
	Comments []Comment  `json:"comments,omitempty"`
}

// Workflow is a shared task board reconciled between server pushes and
// optimistic client edits.
type Workflow struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Participants []string  `json:"participants"`
	Tasks        []Task    `json:"tasks"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Task returns the task with the given id, or nil.
func (w *Workflow) Task(id string) *Task {
	for i := range w.Tasks {
		if w.Tasks[i].ID == id {
			return &w.Tasks[i]
		}
	}
	return nil
}

// TaskSnapshot is a task as carried by a workflow change event. Status
// is a pointer so a partial event that omits it can be told apart from
// an explicit status.
type TaskSnapshot struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Status   *TaskStatus `json:"status,omitempty"`
	Assignee string      `json:"assignee,omitempty"`
	Comments []Comment   `json:"comments,omitempty"`
}

// WorkflowSnapshot is a workflow as carried by a change event. For
// task_updated events Tasks holds only the tasks that changed.
type WorkflowSnapshot struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Participants []string       `json:"participants"`
	Tasks        []TaskSnapshot `json:"tasks"`
}
