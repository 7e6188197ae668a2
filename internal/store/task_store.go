package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Task represents a task entity. Tasks mirrored from an external provider
// carry a unique external id of the form "<provider>-<remoteId>".
type Task struct {
	ID                string     `json:"id"`
	ProjectID         *string    `json:"project_id,omitempty"`
	Title             string     `json:"title"`
	Description       *string    `json:"description,omitempty"`
	Status            string     `json:"status"`
	Priority          string     `json:"priority"`
	Provider          *string    `json:"provider,omitempty"`
	ExternalID        *string    `json:"external_id,omitempty"`
	ExternalURL       *string    `json:"external_url,omitempty"`
	RemoteIssueNumber *int64     `json:"remote_issue_number,omitempty"`
	RemotePRURL       *string    `json:"remote_pr_url,omitempty"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	EstimatedHours    *float64   `json:"estimated_hours,omitempty"`
	Tags              []string   `json:"tags"`
	CreatedBy         *string    `json:"created_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TaskStore provides access to tasks.
type TaskStore struct {
	db *sql.DB
}

// NewTaskStore creates a new TaskStore with the given database connection.
func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskSelectColumns = "id, project_id, title, description, status, priority, provider, external_id, external_url, remote_issue_number, remote_pr_url, due_date, estimated_hours, tags, created_by, created_at, updated_at"

// UpsertExternalTaskInput defines the input for reconciling an external task.
// Nil pointer fields are treated as "not carried by the event": on insert they
// fall back to defaults, on update they leave the existing value untouched.
type UpsertExternalTaskInput struct {
	ExternalID        string
	Provider          string
	ProjectID         *string
	Title             *string
	Description       *string
	Status            *string
	Priority          *string
	ExternalURL       *string
	RemoteIssueNumber *int64
	RemotePRURL       *string
	DueDate           *time.Time
	EstimatedHours    *float64
	Tags              []string
	CreatedBy         *string
}

// UpsertExternal reconciles an external entity into the tasks table as a
// single atomic statement. Redelivery of the same event updates the existing
// row instead of inserting a duplicate. The boolean result reports whether a
// new row was created. A conflicting row owned by a different provider
// returns ErrConflict rather than being overwritten.
func (s *TaskStore) UpsertExternal(ctx context.Context, input UpsertExternalTaskInput) (*Task, bool, error) {
	externalID := strings.TrimSpace(input.ExternalID)
	if externalID == "" {
		return nil, false, fmt.Errorf("external_id is required")
	}
	if strings.TrimSpace(input.Provider) == "" {
		return nil, false, fmt.Errorf("provider is required")
	}

	query := `INSERT INTO tasks (
			project_id, title, description, status, priority, provider, external_id,
			external_url, remote_issue_number, remote_pr_url, due_date, estimated_hours, tags, created_by
		) VALUES (
			$1,
			COALESCE($2, 'Untitled Task'),
			$3,
			COALESCE($4, 'To Do'),
			COALESCE($5, 'Medium'),
			$6, $7, $8, $9, $10,
			$11::date,
			$12::numeric,
			COALESCE($13::text[], '{}'::text[]),
			$14
		)
		ON CONFLICT (external_id) DO UPDATE SET
			title = COALESCE($2, tasks.title),
			description = COALESCE($3, tasks.description),
			status = COALESCE($4, tasks.status),
			priority = COALESCE($5, tasks.priority),
			external_url = COALESCE($8, tasks.external_url),
			remote_issue_number = COALESCE($9, tasks.remote_issue_number),
			remote_pr_url = COALESCE($10, tasks.remote_pr_url),
			due_date = COALESCE($11::date, tasks.due_date),
			estimated_hours = COALESCE($12::numeric, tasks.estimated_hours),
			tags = COALESCE($13::text[], tasks.tags),
			updated_at = NOW()
		WHERE tasks.provider = $6
		RETURNING ` + taskSelectColumns + ", (xmax = 0) AS created"

	var tagsArg interface{}
	if input.Tags != nil {
		tagsArg = pq.Array(input.Tags)
	}

	var dueDateArg interface{}
	if input.DueDate != nil {
		dueDateArg = *input.DueDate
	}

	var estimatedHoursArg interface{}
	if input.EstimatedHours != nil {
		estimatedHoursArg = *input.EstimatedHours
	}

	args := []interface{}{
		nullableString(input.ProjectID),
		nullableString(input.Title),
		nullableString(input.Description),
		nullableString(input.Status),
		nullableString(input.Priority),
		input.Provider,
		externalID,
		nullableString(input.ExternalURL),
		nullableInt64(input.RemoteIssueNumber),
		nullableString(input.RemotePRURL),
		dueDateArg,
		estimatedHoursArg,
		tagsArg,
		nullableString(input.CreatedBy),
	}

	task, created, err := scanTaskWithCreated(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The conflict target exists but belongs to another provider.
			return nil, false, ErrConflict
		}
		return nil, false, fmt.Errorf("failed to upsert task: %w", err)
	}

	return &task, created, nil
}

// TaskExternalPatch defines the fields an update-only event may carry.
type TaskExternalPatch struct {
	Title             *string
	Description       *string
	Status            *string
	Priority          *string
	ExternalURL       *string
	RemoteIssueNumber *int64
	RemotePRURL       *string
}

// ApplyExternalPatch updates only the carried fields of the task identified by
// externalID, returning ErrNotFound when no such task exists. Unlike
// UpsertExternal this never creates a row, so terminal actions on entities the
// system has never seen stay no-ops.
func (s *TaskStore) ApplyExternalPatch(ctx context.Context, externalID string, patch TaskExternalPatch) (*Task, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("external_id is required")
	}

	assignments := []string{}
	args := []interface{}{}

	appendSet := func(column string, value interface{}) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		appendSet("title", strings.TrimSpace(*patch.Title))
	}
	if patch.Description != nil {
		appendSet("description", nullableString(patch.Description))
	}
	if patch.Status != nil {
		appendSet("status", *patch.Status)
	}
	if patch.Priority != nil {
		appendSet("priority", *patch.Priority)
	}
	if patch.ExternalURL != nil {
		appendSet("external_url", nullableString(patch.ExternalURL))
	}
	if patch.RemoteIssueNumber != nil {
		appendSet("remote_issue_number", *patch.RemoteIssueNumber)
	}
	if patch.RemotePRURL != nil {
		appendSet("remote_pr_url", nullableString(patch.RemotePRURL))
	}

	if len(assignments) == 0 {
		return s.GetByExternalID(ctx, externalID)
	}

	assignments = append(assignments, "updated_at = NOW()")
	args = append(args, externalID)

	query := "UPDATE tasks SET " + strings.Join(assignments, ", ") +
		fmt.Sprintf(" WHERE external_id = $%d RETURNING ", len(args)) + taskSelectColumns

	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to patch task: %w", err)
	}

	return &task, nil
}

// GetByExternalID retrieves the task mirrored from one remote entity.
func (s *TaskStore) GetByExternalID(ctx context.Context, externalID string) (*Task, error) {
	query := "SELECT " + taskSelectColumns + " FROM tasks WHERE external_id = $1"
	task, err := scanTask(s.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &task, nil
}

func scanTask(scanner interface{ Scan(...any) error }) (Task, error) {
	task, _, err := scanTaskFields(scanner, false)
	return task, err
}

func scanTaskWithCreated(scanner interface{ Scan(...any) error }) (Task, bool, error) {
	return scanTaskFields(scanner, true)
}

func scanTaskFields(scanner interface{ Scan(...any) error }, withCreated bool) (Task, bool, error) {
	var task Task
	var projectID sql.NullString
	var description sql.NullString
	var provider sql.NullString
	var externalID sql.NullString
	var externalURL sql.NullString
	var remoteIssueNumber sql.NullInt64
	var remotePRURL sql.NullString
	var dueDate sql.NullTime
	var estimatedHours sql.NullFloat64
	var tags pq.StringArray
	var createdBy sql.NullString
	var created bool

	dest := []any{
		&task.ID,
		&projectID,
		&task.Title,
		&description,
		&task.Status,
		&task.Priority,
		&provider,
		&externalID,
		&externalURL,
		&remoteIssueNumber,
		&remotePRURL,
		&dueDate,
		&estimatedHours,
		&tags,
		&createdBy,
		&task.CreatedAt,
		&task.UpdatedAt,
	}
	if withCreated {
		dest = append(dest, &created)
	}

	if err := scanner.Scan(dest...); err != nil {
		return task, false, err
	}

	if projectID.Valid {
		task.ProjectID = &projectID.String
	}
	if description.Valid {
		task.Description = &description.String
	}
	if provider.Valid {
		task.Provider = &provider.String
	}
	if externalID.Valid {
		task.ExternalID = &externalID.String
	}
	if externalURL.Valid {
		task.ExternalURL = &externalURL.String
	}
	if remoteIssueNumber.Valid {
		task.RemoteIssueNumber = &remoteIssueNumber.Int64
	}
	if remotePRURL.Valid {
		task.RemotePRURL = &remotePRURL.String
	}
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if estimatedHours.Valid {
		task.EstimatedHours = &estimatedHours.Float64
	}
	if createdBy.Valid {
		task.CreatedBy = &createdBy.String
	}
	task.Tags = []string(tags)
	if task.Tags == nil {
		task.Tags = []string{}
	}

	return task, created, nil
}
