package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/scholarsync/collab-plane/internal/models"
)

// WorkflowStore implements store.WorkflowStore using PostgreSQL.
//
// Tasks are stored as a JSONB document rather than normalized rows:
// change events carry whole-workflow snapshots, so the read and write
// unit is the full task list.
type WorkflowStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *WorkflowStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create persists a workflow.
func (s *WorkflowStore) Create(ctx context.Context, w *models.Workflow) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = time.Now().UTC()
	}
	if w.Tasks == nil {
		w.Tasks = []models.Task{}
	}

	tasks, err := json.Marshal(w.Tasks)
	if err != nil {
		return fmt.Errorf("encoding tasks: %w", err)
	}

	query := `
		INSERT INTO workflows (id, name, participants, tasks, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = s.conn().ExecContext(ctx, query,
		w.ID, w.Name, pq.Array(w.Participants), tasks, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting workflow: %w", err)
	}
	return nil
}

// Get retrieves a workflow by ID.
func (s *WorkflowStore) Get(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT id, name, participants, tasks, updated_at FROM workflows WHERE id = $1`

	w, err := scanWorkflow(s.conn().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying workflow: %w", err)
	}
	return w, nil
}

// ListByUser retrieves workflows the user participates in.
func (s *WorkflowStore) ListByUser(ctx context.Context, userID string) ([]*models.Workflow, error) {
	query := `
		SELECT id, name, participants, tasks, updated_at
		FROM workflows
		WHERE $1 = ANY(participants)
		ORDER BY updated_at DESC`

	rows, err := s.conn().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workflow: %w", err)
		}
		workflows = append(workflows, w)
	}
	return workflows, rows.Err()
}

// UpdateTask upserts a single task and returns the updated workflow.
// Callers must run it inside WithTx: the SELECT FOR UPDATE that
// serializes concurrent edits per workflow is only issued on the
// transactional path.
func (s *WorkflowStore) UpdateTask(ctx context.Context, workflowID string, task models.Task) (*models.Workflow, error) {
	query := `SELECT id, name, participants, tasks, updated_at FROM workflows WHERE id = $1`
	if s.tx != nil {
		query += ` FOR UPDATE`
	}

	w, err := scanWorkflow(s.conn().QueryRowContext(ctx, query, workflowID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying workflow: %w", err)
	}

	replaced := false
	for i := range w.Tasks {
		if w.Tasks[i].ID == task.ID {
			w.Tasks[i] = task
			replaced = true
			break
		}
	}
	if !replaced {
		w.Tasks = append(w.Tasks, task)
	}
	w.UpdatedAt = time.Now().UTC()

	tasks, err := json.Marshal(w.Tasks)
	if err != nil {
		return nil, fmt.Errorf("encoding tasks: %w", err)
	}

	_, err = s.conn().ExecContext(ctx,
		`UPDATE workflows SET tasks = $2, updated_at = $3 WHERE id = $1`,
		workflowID, tasks, w.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("updating workflow tasks: %w", err)
	}
	return w, nil
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var w models.Workflow
	var tasks []byte

	err := row.Scan(&w.ID, &w.Name, pq.Array(&w.Participants), &tasks, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tasks, &w.Tasks); err != nil {
		return nil, fmt.Errorf("decoding tasks: %w", err)
	}
	return &w, nil
}
