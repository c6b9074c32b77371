// Package workflows manages shared task boards and emits the change
// events the client reconciliation engine consumes.
package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/scholarsync/collab-plane/internal/apperr"
	"github.com/scholarsync/collab-plane/internal/models"
	"github.com/scholarsync/collab-plane/internal/store"
)

// Change types carried by workflow events.
const (
	ChangeAdded       = "added"
	ChangeModified    = "modified"
	ChangeTaskAdded   = "task_added"
	ChangeTaskUpdated = "task_updated"
)

// Notifier records a notification and pushes it to connected sessions.
type Notifier interface {
	NotifyBestEffort(ctx context.Context, recipientID string, typ models.NotificationType, payload any)
}

// Service manages workflow boards.
type Service struct {
	st     store.Store
	notify Notifier
	logger *slog.Logger
}

// NewService creates a workflow service.
func NewService(st store.Store, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		st:     st,
		notify: notifier,
		logger: logger.With("component", "workflows"),
	}
}

// Create persists a new workflow board. The creator is always a
// participant.
func (s *Service) Create(ctx context.Context, name, creatorID string, participants []string) (*models.Workflow, error) {
	if name == "" {
		return nil, apperr.Validation(apperr.CodeMissingName, "workflows require a name")
	}
	all := []string{creatorID}
	seen := map[string]bool{creatorID: true}
	for _, p := range participants {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		all = append(all, p)
	}

	missing, err := s.st.Profiles().Missing(ctx, all)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("verifying participants: %w", err))
	}
	if len(missing) > 0 {
		return nil, apperr.Validation(apperr.CodeInvalidParticipant,
			fmt.Sprintf("unknown participants: %v", missing))
	}

	w := &models.Workflow{
		ID:           uuid.New().String(),
		Name:         name,
		Participants: all,
		Tasks:        []models.Task{},
	}
	if err := s.st.Workflows().Create(ctx, w); err != nil {
		return nil, apperr.Internal(fmt.Errorf("creating workflow: %w", err))
	}

	s.fanOut(ctx, w, creatorID, "", ChangeAdded)
	return w, nil
}

// Get returns a workflow visible to userID.
func (s *Service) Get(ctx context.Context, workflowID, userID string) (*models.Workflow, error) {
	w, err := s.st.Workflows().Get(ctx, workflowID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("workflow lookup: %w", err))
	}
	if w == nil {
		return nil, apperr.NotFound(apperr.CodeNotFound, "workflow not found")
	}
	if !participates(w, userID) {
		return nil, apperr.Authorization("not a workflow participant")
	}
	return w, nil
}

// List returns the workflows userID participates in.
func (s *Service) List(ctx context.Context, userID string) ([]*models.Workflow, error) {
	ws, err := s.st.Workflows().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("listing workflows: %w", err))
	}
	return ws, nil
}

// UpdateTask upserts a single task and fans out a task_updated event to
// the other participants. This is the server-side origin of the
// fine-grained events the reconciliation engine merges.
func (s *Service) UpdateTask(ctx context.Context, workflowID, userID string, task models.Task) (*models.Workflow, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if !task.Status.Valid() {
		return nil, apperr.Validation(apperr.CodeInvalidTaskStatus,
			fmt.Sprintf("unknown task status %q", task.Status))
	}

	w, err := s.st.Workflows().Get(ctx, workflowID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("workflow lookup: %w", err))
	}
	if w == nil {
		return nil, apperr.NotFound(apperr.CodeNotFound, "workflow not found")
	}
	if !participates(w, userID) {
		return nil, apperr.Authorization("not a workflow participant")
	}

	change := ChangeTaskUpdated
	if w.Task(task.ID) == nil {
		change = ChangeTaskAdded
	}

	// The upsert must run inside a transaction: the store's
	// read-modify-write of the tasks document only takes a row lock when
	// transactional, and two pool-level upserts would lose one edit.
	var updated *models.Workflow
	err = s.st.WithTx(ctx, func(tx store.Store) error {
		var txErr error
		updated, txErr = tx.Workflows().UpdateTask(ctx, workflowID, task)
		return txErr
	})
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("updating task: %w", err))
	}

	s.fanOut(ctx, updated, userID, task.ID, change)
	return updated, nil
}

// fanOut notifies every participant except the actor. The payload
// carries the post-change state so receivers can merge it locally
// without a follow-up fetch.
func (s *Service) fanOut(ctx context.Context, w *models.Workflow, actorID, taskID, change string) {
	payload := models.WorkflowUpdatedPayload{
		WorkflowID: w.ID,
		TaskID:     taskID,
		ChangedBy:  actorID,
		ChangeType: change,
		Workflow:   snapshotOf(w, taskID, change),
	}
	for _, p := range w.Participants {
		if p == actorID {
			continue
		}
		s.notify.NotifyBestEffort(ctx, p, models.NotificationWorkflowUpdated, payload)
	}
}

// snapshotOf builds the event snapshot. task_updated carries only the
// changed task; every other change carries the full task set, because
// receivers treat those snapshots as authoritative. Statuses are
// always explicit because the server state is authoritative for the
// tasks it includes.
func snapshotOf(w *models.Workflow, taskID, change string) models.WorkflowSnapshot {
	snap := models.WorkflowSnapshot{
		ID:           w.ID,
		Name:         w.Name,
		Participants: append([]string(nil), w.Participants...),
		Tasks:        []models.TaskSnapshot{},
	}
	partial := change == ChangeTaskUpdated
	for _, t := range w.Tasks {
		if partial && t.ID != taskID {
			continue
		}
		status := t.Status
		snap.Tasks = append(snap.Tasks, models.TaskSnapshot{
			ID:       t.ID,
			Title:    t.Title,
			Status:   &status,
			Assignee: t.Assignee,
			Comments: t.Comments,
		})
	}
	return snap
}

func participates(w *models.Workflow, userID string) bool {
	for _, p := range w.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
