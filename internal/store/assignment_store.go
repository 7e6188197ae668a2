package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// TaskAssignment records an assignee suggested for a task. Assignments from
// the content analyzer are kept separate from the task row so a human can
// confirm or discard them.
type TaskAssignment struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	AssigneeID string    `json:"assignee_id"`
	AssignedBy string    `json:"assigned_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// AssignmentStore provides access to task assignments.
type AssignmentStore struct {
	db *sql.DB
}

// NewAssignmentStore creates a new AssignmentStore.
func NewAssignmentStore(db *sql.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

// Create records an assignment. Duplicate (task, assignee) pairs are ignored
// so analyzer redeliveries stay idempotent.
func (s *AssignmentStore) Create(ctx context.Context, taskID, assigneeID, assignedBy string) (*TaskAssignment, error) {
	taskID = strings.TrimSpace(taskID)
	assigneeID = strings.TrimSpace(assigneeID)
	if taskID == "" || assigneeID == "" {
		return nil, fmt.Errorf("task_id and assignee_id are required")
	}
	if strings.TrimSpace(assignedBy) == "" {
		assignedBy = "analyzer"
	}

	query := `INSERT INTO task_assignments (task_id, assignee_id, assigned_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (task_id, assignee_id) DO NOTHING
		RETURNING id, task_id, assignee_id, assigned_by, created_at`

	var assignment TaskAssignment
	err := s.db.QueryRowContext(ctx, query, taskID, assigneeID, assignedBy).Scan(
		&assignment.ID,
		&assignment.TaskID,
		&assignment.AssigneeID,
		&assignment.AssignedBy,
		&assignment.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// Already assigned; fetch the existing row.
			return s.get(ctx, taskID, assigneeID)
		}
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	return &assignment, nil
}

func (s *AssignmentStore) get(ctx context.Context, taskID, assigneeID string) (*TaskAssignment, error) {
	var assignment TaskAssignment
	err := s.db.QueryRowContext(
		ctx,
		"SELECT id, task_id, assignee_id, assigned_by, created_at FROM task_assignments WHERE task_id = $1 AND assignee_id = $2",
		taskID,
		assigneeID,
	).Scan(
		&assignment.ID,
		&assignment.TaskID,
		&assignment.AssigneeID,
		&assignment.AssignedBy,
		&assignment.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	return &assignment, nil
}
