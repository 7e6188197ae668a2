package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Project represents a project entity.
type Project struct {
	ID        string    `json:"id"`
	OwnerID   *string   `json:"owner_id,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectStore provides access to projects.
type ProjectStore struct {
	db *sql.DB
}

// NewProjectStore creates a new ProjectStore.
func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

const projectSelectColumns = "id, owner_id, name, created_at, updated_at"

// GetByID retrieves a project by id.
func (s *ProjectStore) GetByID(ctx context.Context, id string) (*Project, error) {
	query := "SELECT " + projectSelectColumns + " FROM projects WHERE id = $1"
	project, err := scanProject(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// ListByOwner retrieves all projects owned by a user, newest first. The chat
// command path fuzzy-matches the requested project name against this list.
func (s *ProjectStore) ListByOwner(ctx context.Context, ownerID string) ([]Project, error) {
	query := "SELECT " + projectSelectColumns + " FROM projects WHERE owner_id = $1 ORDER BY created_at DESC"
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading projects: %w", err)
	}

	return projects, nil
}

func scanProject(scanner interface{ Scan(...any) error }) (Project, error) {
	var project Project
	var ownerID sql.NullString

	err := scanner.Scan(
		&project.ID,
		&ownerID,
		&project.Name,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return project, err
	}

	if ownerID.Valid {
		project.OwnerID = &ownerID.String
	}

	return project, nil
}
