// Package reconcile merges workflow change events streamed from the
// server into a locally held board state that the user may be mutating
// optimistically at the same time.
package reconcile

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/scholarsync/collab-plane/internal/models"
)

// Change types understood by the engine.
const (
	ChangeAdded       = "added"
	ChangeModified    = "modified"
	ChangeTaskAdded   = "task_added"
	ChangeTaskUpdated = "task_updated"
)

// TaskSnapshot and WorkflowSnapshot are the event-carried forms, shared
// with the server's push payload. A task's omitted status never
// overwrites the local one.
type (
	TaskSnapshot     = models.TaskSnapshot
	WorkflowSnapshot = models.WorkflowSnapshot
)

// Event is a single workflow change received from the server.
type Event struct {
	ChangeType string           `json:"change_type"`
	Workflow   WorkflowSnapshot `json:"workflow"`
}

// FromPayload converts a pushed workflow notification payload into the
// event form Apply consumes.
func FromPayload(p models.WorkflowUpdatedPayload) Event {
	return Event{ChangeType: p.ChangeType, Workflow: p.Workflow}
}

// Engine holds the local board state and merges incoming events into
// it. Safe for concurrent use; events typically arrive on a websocket
// read goroutine while the view reads from another.
type Engine struct {
	mu        sync.Mutex
	workflows map[string]*models.Workflow

	// lastReconciled is the id of the workflow most recently merged by a
	// whole-workflow change. Fine-grained task_updated events never
	// touch it: gating them on it would drop racing task edits.
	lastReconciled string

	logger *slog.Logger
}

// NewEngine creates an empty reconciliation engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		workflows: make(map[string]*models.Workflow),
		logger:    logger.With("component", "reconcile"),
	}
}

// Apply merges one event into local state. Unknown change types are
// discarded with a diagnostic; they are not an error.
func (e *Engine) Apply(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch event.ChangeType {
	case ChangeAdded:
		if _, known := e.workflows[event.Workflow.ID]; known {
			return
		}
		e.workflows[event.Workflow.ID] = materialize(event.Workflow)
	case ChangeModified, ChangeTaskAdded:
		e.mergeSnapshot(event.Workflow)
		e.lastReconciled = event.Workflow.ID
	case ChangeTaskUpdated:
		// Always applied, never gated. An old whole-workflow snapshot
		// must not cause a newer task edit to be skipped.
		e.mergeTasks(event.Workflow)
	default:
		e.logger.Debug("discarding event with unknown change type",
			"change_type", event.ChangeType, "workflow_id", event.Workflow.ID)
	}
}

// mergeSnapshot replaces the workflow with the incoming snapshot. The
// snapshot's task set is authoritative, but for tasks present on both
// sides the local status survives unless the incoming task explicitly
// carries one.
func (e *Engine) mergeSnapshot(snap WorkflowSnapshot) {
	local, known := e.workflows[snap.ID]
	if !known {
		e.workflows[snap.ID] = materialize(snap)
		return
	}

	merged := &models.Workflow{
		ID:           snap.ID,
		Name:         snap.Name,
		Participants: append([]string(nil), snap.Participants...),
		Tasks:        make([]models.Task, 0, len(snap.Tasks)),
		UpdatedAt:    local.UpdatedAt,
	}
	for _, in := range snap.Tasks {
		merged.Tasks = append(merged.Tasks, e.mergeTask(local, in))
	}
	e.workflows[snap.ID] = merged
}

// mergeTasks upserts only the tasks the event carries. Tasks absent
// from the event are untouched.
func (e *Engine) mergeTasks(snap WorkflowSnapshot) {
	local, known := e.workflows[snap.ID]
	if !known {
		e.workflows[snap.ID] = materialize(snap)
		return
	}

	for _, in := range snap.Tasks {
		task := e.mergeTask(local, in)
		replaced := false
		for i := range local.Tasks {
			if local.Tasks[i].ID == task.ID {
				local.Tasks[i] = task
				replaced = true
				break
			}
		}
		if !replaced {
			local.Tasks = append(local.Tasks, task)
		}
	}
}

// mergeTask builds the merged form of one incoming task against the
// local copy, applying the status preservation rule.
func (e *Engine) mergeTask(local *models.Workflow, in TaskSnapshot) models.Task {
	task := models.Task{
		ID:       in.ID,
		Title:    in.Title,
		Status:   models.TaskStatusTodo,
		Assignee: in.Assignee,
		Comments: in.Comments,
	}
	existing := local.Task(in.ID)
	switch {
	case in.Status != nil:
		task.Status = *in.Status
	case existing != nil:
		task.Status = existing.Status
	}
	return task
}

// SetLocalStatus records an optimistic local move of a task between
// board columns.
func (e *Engine) SetLocalStatus(workflowID, taskID string, status models.TaskStatus) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.workflows[workflowID]
	if !ok {
		return false
	}
	task := w.Task(taskID)
	if task == nil {
		return false
	}
	task.Status = status
	return true
}

// Workflow returns a copy of the locally known workflow, or nil.
func (e *Engine) Workflow(id string) *models.Workflow {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.workflows[id]
	if !ok {
		return nil
	}
	return copyWorkflow(w)
}

// Workflows returns copies of all locally known workflows, ordered by
// id for deterministic iteration.
func (e *Engine) Workflows() []*models.Workflow {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*models.Workflow, 0, len(e.workflows))
	for _, w := range e.workflows {
		out = append(out, copyWorkflow(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LastReconciledWorkflowID returns the id of the workflow most recently
// merged by a whole-workflow change, or "".
func (e *Engine) LastReconciledWorkflowID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastReconciled
}

// materialize converts a snapshot into local state. Tasks without an
// explicit status start in todo.
func materialize(snap WorkflowSnapshot) *models.Workflow {
	w := &models.Workflow{
		ID:           snap.ID,
		Name:         snap.Name,
		Participants: append([]string(nil), snap.Participants...),
		Tasks:        make([]models.Task, 0, len(snap.Tasks)),
	}
	for _, in := range snap.Tasks {
		status := models.TaskStatusTodo
		if in.Status != nil {
			status = *in.Status
		}
		w.Tasks = append(w.Tasks, models.Task{
			ID:       in.ID,
			Title:    in.Title,
			Status:   status,
			Assignee: in.Assignee,
			Comments: in.Comments,
		})
	}
	return w
}

func copyWorkflow(w *models.Workflow) *models.Workflow {
	clone := *w
	clone.Participants = append([]string(nil), w.Participants...)
	clone.Tasks = append([]models.Task(nil), w.Tasks...)
	return &clone
}
