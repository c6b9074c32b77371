package reconcile

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/scholarsync/collab-plane/internal/models"
)

func statusPtr(s models.TaskStatus) *models.TaskStatus { return &s }

func newEngine() *Engine {
	return NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func board(id string, tasks ...TaskSnapshot) WorkflowSnapshot {
	return WorkflowSnapshot{
		ID:           id,
		Name:         "board " + id,
		Participants: []string{"alice", "bob"},
		Tasks:        tasks,
	}
}

func TestAddedInsertsUnknownOnly(t *testing.T) {
	e := newEngine()

	e.Apply(Event{ChangeType: ChangeAdded, Workflow: board("w1",
		TaskSnapshot{ID: "t1", Title: "first", Status: statusPtr(models.TaskStatusInProgress)},
	)})
	w := e.Workflow("w1")
	if w == nil || len(w.Tasks) != 1 || w.Tasks[0].Status != models.TaskStatusInProgress {
		t.Fatalf("workflow after added = %+v", w)
	}

	// A second added for a known id is ignored wholesale.
	e.Apply(Event{ChangeType: ChangeAdded, Workflow: board("w1")})
	w = e.Workflow("w1")
	if len(w.Tasks) != 1 {
		t.Errorf("re-added workflow clobbered local state: %+v", w)
	}
	if e.LastReconciledWorkflowID() != "" {
		t.Errorf("added must not touch lastReconciled, got %q", e.LastReconciledWorkflowID())
	}
}

func TestModifiedPreservesLocalStatusOnPartialPayload(t *testing.T) {
	e := newEngine()
	e.Apply(Event{ChangeType: ChangeAdded, Workflow: board("w1",
		TaskSnapshot{ID: "t1", Title: "draft", Status: statusPtr(models.TaskStatusTodo)},
	)})

	// The user optimistically moves the task.
	if !e.SetLocalStatus("w1", "t1", models.TaskStatusInProgress) {
		t.Fatal("SetLocalStatus failed")
	}

	// A snapshot without a status for t1 must not clobber the move.
	e.Apply(Event{ChangeType: ChangeModified, Workflow: board("w1",
		TaskSnapshot{ID: "t1", Title: "draft v2"},
	)})
	w := e.Workflow("w1")
	if w.Tasks[0].Status != models.TaskStatusInProgress {
		t.Errorf("status = %s, want locally moved in_progress", w.Tasks[0].Status)
	}
	if w.Tasks[0].Title != "draft v2" {
		t.Errorf("title = %q, want incoming title applied", w.Tasks[0].Title)
	}
	if e.LastReconciledWorkflowID() != "w1" {
		t.Errorf("lastReconciled = %q, want w1", e.LastReconciledWorkflowID())
	}

	// An explicit status does win.
	e.Apply(Event{ChangeType: ChangeModified, Workflow: board("w1",
		TaskSnapshot{ID: "t1", Title: "draft v3", Status: statusPtr(models.TaskStatusDone)},
	)})
	if got := e.Workflow("w1").Tasks[0].Status; got != models.TaskStatusDone {
		t.Errorf("status = %s, want explicit done", got)
	}
}

func TestModifiedSnapshotIsAuthoritativeForTaskSet(t *testing.T) {
	e := newEngine()
	e.Apply(Event{ChangeType: ChangeAdded, Workflow: board("w1",
		TaskSnapshot{ID: "t1", Title: "keep"},
		TaskSnapshot{ID: "t2", Title: "drop"},
	)})

	e.Apply(Event{ChangeType: ChangeModified, Workflow: board("w1",
		TaskSnapshot{ID: "t1", Title: "keep"},
		TaskSnapshot{ID: "t3", Title: "new"},
	)})
	w := e.Workflow("w1")
	if len(w.Tasks) != 2 || w.Task("t2") != nil || w.Task("t3") == nil {
		t.Errorf("task set after modified = %+v, want {t1, t3}", w.Tasks)
	}
}

func TestTaskUpdatedIsNeverGated(t *testing.T) {
	e := newEngine()
	e.Apply(Event{ChangeType: ChangeAdded, Workflow: board("w1",
		TaskSnapshot{ID: "t1", Title: "a"},
	)})
	e.Apply(Event{ChangeType: ChangeAdded, Workflow: board("w2",
		TaskSnapshot{ID: "t9", Title: "other"},
	)})

	// Reconcile w2 wholesale, then receive a fine-grained update for w1.
	e.Apply(Event{ChangeType: ChangeModified, Workflow: board("w2",
		TaskSnapshot{ID: "t9", Title: "other"},
	)})
	e.Apply(Event{ChangeType: ChangeTaskUpdated, Workflow: board("w1",
		TaskSnapshot{ID: "t1", Title: "a", Status: statusPtr(models.TaskStatusDone)},
	)})

	if got := e.Workflow("w1").Tasks[0].Status; got != models.TaskStatusDone {
		t.Errorf("task update was dropped: status = %s", got)
	}
	if e.LastReconciledWorkflowID() != "w2" {
		t.Errorf("task_updated moved lastReconciled to %q", e.LastReconciledWorkflowID())
	}
}

func TestTaskUpdatedTouchesOnlyCarriedTasks(t *testing.T) {
	e := newEngine()
	e.Apply(Event{ChangeType: ChangeAdded, Workflow: board("w1",
		TaskSnapshot{ID: "t1", Title: "a", Status: statusPtr(models.TaskStatusInProgress)},
		TaskSnapshot{ID: "t2", Title: "b"},
	)})

	e.Apply(Event{ChangeType: ChangeTaskUpdated, Workflow: board("w1",
		TaskSnapshot{ID: "t2", Title: "b", Status: statusPtr(models.TaskStatusDone)},
		TaskSnapshot{ID: "t3", Title: "c"},
	)})

	w := e.Workflow("w1")
	if len(w.Tasks) != 3 {
		t.Fatalf("tasks = %+v, want 3 (upsert, no removal)", w.Tasks)
	}
	if w.Task("t1").Status != models.TaskStatusInProgress {
		t.Errorf("uncarried task mutated: %+v", w.Task("t1"))
	}
	if w.Task("t2").Status != models.TaskStatusDone {
		t.Errorf("carried task not applied: %+v", w.Task("t2"))
	}
}

func TestUnknownChangeTypeDiscarded(t *testing.T) {
	e := newEngine()
	e.Apply(Event{ChangeType: ChangeAdded, Workflow: board("w1",
		TaskSnapshot{ID: "t1", Title: "a"},
	)})

	e.Apply(Event{ChangeType: "reindexed", Workflow: board("w1")})
	w := e.Workflow("w1")
	if len(w.Tasks) != 1 {
		t.Errorf("unknown change type mutated state: %+v", w)
	}
}

func TestReconciliationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	statuses := []models.TaskStatus{
		models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusDone,
	}
	genStatus := gen.IntRange(0, len(statuses)-1).Map(func(i int) models.TaskStatus {
		return statuses[i]
	})
	genChange := gen.OneConstOf(ChangeModified, ChangeTaskAdded, ChangeTaskUpdated)

	properties.Property("omitted status never overwrites the local one", prop.ForAll(
		func(local models.TaskStatus, change string) bool {
			e := newEngine()
			e.Apply(Event{ChangeType: ChangeAdded, Workflow: board("w",
				TaskSnapshot{ID: "t", Title: "x", Status: statusPtr(local)},
			)})
			e.Apply(Event{ChangeType: change, Workflow: board("w",
				TaskSnapshot{ID: "t", Title: "renamed"},
			)})
			return e.Workflow("w").Task("t").Status == local
		},
		genStatus,
		genChange,
	))

	properties.Property("explicit status always wins", prop.ForAll(
		func(local, incoming models.TaskStatus, change string) bool {
			e := newEngine()
			e.Apply(Event{ChangeType: ChangeAdded, Workflow: board("w",
				TaskSnapshot{ID: "t", Title: "x", Status: statusPtr(local)},
			)})
			e.Apply(Event{ChangeType: change, Workflow: board("w",
				TaskSnapshot{ID: "t", Title: "x", Status: statusPtr(incoming)},
			)})
			return e.Workflow("w").Task("t").Status == incoming
		},
		genStatus,
		genStatus,
		genChange,
	))

	properties.Property("task_updated applies regardless of reconciliation history", prop.ForAll(
		func(n int, status models.TaskStatus) bool {
			e := newEngine()
			e.Apply(Event{ChangeType: ChangeAdded, Workflow: board("target",
				TaskSnapshot{ID: "t", Title: "x"},
			)})
			// Reconcile n unrelated boards in between.
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("other-%d", i)
				e.Apply(Event{ChangeType: ChangeModified, Workflow: board(id)})
			}
			e.Apply(Event{ChangeType: ChangeTaskUpdated, Workflow: board("target",
				TaskSnapshot{ID: "t", Title: "x", Status: statusPtr(status)},
			)})
			return e.Workflow("target").Task("t").Status == status
		},
		gen.IntRange(0, 5),
		genStatus,
	))

	properties.TestingRun(t)
}
