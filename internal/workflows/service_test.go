package workflows

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/scholarsync/collab-plane/internal/apperr"
	"github.com/scholarsync/collab-plane/internal/models"
	"github.com/scholarsync/collab-plane/internal/reconcile"
	"github.com/scholarsync/collab-plane/internal/store"
	"github.com/scholarsync/collab-plane/internal/store/memory"
)

// txObservingStore counts task upserts that reach the store outside
// WithTx. The postgres store only takes its row lock on the
// transactional path, so a bare upsert can lose a concurrent edit.
type txObservingStore struct {
	store.Store
	mu        sync.Mutex
	inTx      bool
	bareCalls int
}

func (s *txObservingStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	s.mu.Lock()
	s.inTx = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inTx = false
		s.mu.Unlock()
	}()
	return fn(s)
}

func (s *txObservingStore) Workflows() store.WorkflowStore {
	return &txObservingWorkflows{WorkflowStore: s.Store.Workflows(), parent: s}
}

type txObservingWorkflows struct {
	store.WorkflowStore
	parent *txObservingStore
}

func (w *txObservingWorkflows) UpdateTask(ctx context.Context, workflowID string, task models.Task) (*models.Workflow, error) {
	w.parent.mu.Lock()
	if !w.parent.inTx {
		w.parent.bareCalls++
	}
	w.parent.mu.Unlock()
	return w.WorkflowStore.UpdateTask(ctx, workflowID, task)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []struct {
		Recipient string
		Payload   models.WorkflowUpdatedPayload
	}
}

func (n *recordingNotifier) NotifyBestEffort(ctx context.Context, recipientID string, typ models.NotificationType, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, _ := payload.(models.WorkflowUpdatedPayload)
	n.calls = append(n.calls, struct {
		Recipient string
		Payload   models.WorkflowUpdatedPayload
	}{recipientID, p})
}

func newService(t *testing.T, userIDs ...string) (*Service, *memory.Store, *recordingNotifier) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	for _, id := range userIDs {
		p := &models.Profile{ID: id, Email: id + "@example.com", DisplayName: id}
		if err := st.Profiles().Create(ctx, p, "password123"); err != nil {
			t.Fatalf("seeding profile %s: %v", id, err)
		}
	}
	notifier := &recordingNotifier{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(st, notifier, log), st, notifier
}

func TestCreateWorkflow(t *testing.T) {
	svc, _, notifier := newService(t, "alice", "bob")
	ctx := context.Background()

	w, err := svc.Create(ctx, "Paper Draft", "alice", []string{"bob", "alice"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(w.Participants) != 2 || w.Participants[0] != "alice" {
		t.Errorf("participants = %v, want [alice bob]", w.Participants)
	}
	if len(notifier.calls) != 1 || notifier.calls[0].Recipient != "bob" {
		t.Fatalf("fan-out = %+v, want one call to bob", notifier.calls)
	}
	if notifier.calls[0].Payload.ChangeType != ChangeAdded {
		t.Errorf("change = %s, want added", notifier.calls[0].Payload.ChangeType)
	}

	if _, err := svc.Create(ctx, "", "alice", nil); apperr.CodeOf(err) != apperr.CodeMissingName {
		t.Errorf("unnamed workflow code = %v", apperr.CodeOf(err))
	}
	if _, err := svc.Create(ctx, "Ghosts", "alice", []string{"nobody"}); apperr.CodeOf(err) != apperr.CodeInvalidParticipant {
		t.Errorf("unknown participant code = %v", apperr.CodeOf(err))
	}
}

func TestUpdateTaskChangeKinds(t *testing.T) {
	svc, _, notifier := newService(t, "alice", "bob")
	ctx := context.Background()

	w, err := svc.Create(ctx, "Paper Draft", "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// First write of a task id is task_added.
	updated, err := svc.UpdateTask(ctx, w.ID, "alice", models.Task{Title: "outline"})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if len(updated.Tasks) != 1 || updated.Tasks[0].Status != models.TaskStatusTodo {
		t.Fatalf("tasks = %+v, want one todo task", updated.Tasks)
	}
	taskID := updated.Tasks[0].ID
	last := notifier.calls[len(notifier.calls)-1]
	if last.Payload.ChangeType != ChangeTaskAdded || last.Payload.TaskID != taskID {
		t.Errorf("payload = %+v, want task_added for %s", last.Payload, taskID)
	}

	// Rewriting the same id is task_updated.
	if _, err := svc.UpdateTask(ctx, w.ID, "bob", models.Task{
		ID: taskID, Title: "outline", Status: models.TaskStatusInProgress,
	}); err != nil {
		t.Fatalf("UpdateTask second: %v", err)
	}
	last = notifier.calls[len(notifier.calls)-1]
	if last.Payload.ChangeType != ChangeTaskUpdated || last.Recipient != "alice" {
		t.Errorf("second fan-out = %+v, want task_updated to alice", last)
	}
}

func TestFanOutFeedsReconciliation(t *testing.T) {
	svc, _, notifier := newService(t, "alice", "bob")
	ctx := context.Background()
	engine := reconcile.NewEngine(nil)

	lastPayload := func() models.WorkflowUpdatedPayload {
		t.Helper()
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		if len(notifier.calls) == 0 {
			t.Fatal("no fan-out recorded")
		}
		return notifier.calls[len(notifier.calls)-1].Payload
	}

	w, err := svc.Create(ctx, "Paper Draft", "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	engine.Apply(reconcile.FromPayload(lastPayload()))

	if local := engine.Workflow(w.ID); local == nil || local.Name != "Paper Draft" {
		t.Fatalf("engine state after create = %+v", engine.Workflow(w.ID))
	}

	updated, err := svc.UpdateTask(ctx, w.ID, "alice", models.Task{
		Title: "outline", Status: models.TaskStatusInProgress,
	})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	taskID := updated.Tasks[0].ID

	payload := lastPayload()
	if len(payload.Workflow.Tasks) != 1 || payload.Workflow.Tasks[0].ID != taskID {
		t.Fatalf("payload snapshot = %+v, want the changed task", payload.Workflow)
	}
	if payload.Workflow.Tasks[0].Status == nil {
		t.Fatal("payload task carries no status")
	}
	engine.Apply(reconcile.FromPayload(payload))

	local := engine.Workflow(w.ID)
	if local == nil || len(local.Tasks) != 1 {
		t.Fatalf("engine state after task update = %+v", local)
	}
	if local.Tasks[0].Status != models.TaskStatusInProgress || local.Tasks[0].Title != "outline" {
		t.Errorf("merged task = %+v", local.Tasks[0])
	}

	// A second task arrives, then the first moves to done. The
	// task_updated payload carries only the moved task, and merging it
	// must not drop the sibling.
	if _, err := svc.UpdateTask(ctx, w.ID, "alice", models.Task{Title: "citations"}); err != nil {
		t.Fatalf("UpdateTask second: %v", err)
	}
	engine.Apply(reconcile.FromPayload(lastPayload()))

	if _, err := svc.UpdateTask(ctx, w.ID, "alice", models.Task{
		ID: taskID, Title: "outline", Status: models.TaskStatusDone,
	}); err != nil {
		t.Fatalf("UpdateTask third: %v", err)
	}
	payload = lastPayload()
	if len(payload.Workflow.Tasks) != 1 {
		t.Fatalf("task_updated snapshot carries %d tasks, want just the moved one", len(payload.Workflow.Tasks))
	}
	engine.Apply(reconcile.FromPayload(payload))

	local = engine.Workflow(w.ID)
	if local == nil || len(local.Tasks) != 2 {
		t.Fatalf("engine dropped a task: %+v", local)
	}
	if moved := local.Task(taskID); moved == nil || moved.Status != models.TaskStatusDone {
		t.Errorf("moved task = %+v, want done", moved)
	}
}

func TestUpdateTaskRunsInTransaction(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	for _, id := range []string{"alice", "bob"} {
		p := &models.Profile{ID: id, Email: id + "@example.com", DisplayName: id}
		if err := mem.Profiles().Create(ctx, p, "password123"); err != nil {
			t.Fatalf("seeding profile %s: %v", id, err)
		}
	}
	obs := &txObservingStore{Store: mem}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(obs, &recordingNotifier{}, log)

	w, err := svc.Create(ctx, "Paper Draft", "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.UpdateTask(ctx, w.ID, "alice", models.Task{Title: "outline"}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.bareCalls != 0 {
		t.Fatalf("task upsert reached the store outside a transaction %d times", obs.bareCalls)
	}
}

func TestUpdateTaskGuards(t *testing.T) {
	svc, _, _ := newService(t, "alice", "bob", "mallory")
	ctx := context.Background()

	w, err := svc.Create(ctx, "Paper Draft", "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.UpdateTask(ctx, w.ID, "mallory", models.Task{Title: "sneak"}); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Errorf("outsider update kind = %v, want authorization", apperr.KindOf(err))
	}
	if _, err := svc.UpdateTask(ctx, w.ID, "alice", models.Task{Title: "bad", Status: "archived"}); apperr.CodeOf(err) != apperr.CodeInvalidTaskStatus {
		t.Errorf("bad status code = %v, want invalid_task_status", apperr.CodeOf(err))
	}
	if _, err := svc.UpdateTask(ctx, "no-such-board", "alice", models.Task{Title: "x"}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("missing workflow kind = %v, want not found", apperr.KindOf(err))
	}
	if _, err := svc.Get(ctx, w.ID, "mallory"); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Errorf("outsider get kind = %v, want authorization", apperr.KindOf(err))
	}
}
