package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskmirror/taskmirror/internal/models"
)

// Integration represents a connected external provider for one user. At most
// one connected row exists per (user, provider); reconnecting overwrites the
// configuration via upsert.
type Integration struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Provider  string          `json:"provider"`
	Status    string          `json:"status"`
	Config    json.RawMessage `json:"config"`
	ProjectID *string         `json:"project_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ConfigString returns a string field from the provider configuration blob.
// Missing or non-string fields return the empty string.
func (i *Integration) ConfigString(key string) string {
	if len(i.Config) == 0 {
		return ""
	}
	var cfg map[string]interface{}
	if err := json.Unmarshal(i.Config, &cfg); err != nil {
		return ""
	}
	if value, ok := cfg[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// IntegrationStore provides access to provider integrations.
type IntegrationStore struct {
	db *sql.DB
}

// NewIntegrationStore creates a new IntegrationStore.
func NewIntegrationStore(db *sql.DB) *IntegrationStore {
	return &IntegrationStore{db: db}
}

const integrationSelectColumns = "id, user_id, provider, status, config, project_id, created_at, updated_at"

// UpsertConnectionInput defines the input for connecting a provider.
type UpsertConnectionInput struct {
	UserID    string
	Provider  string
	Config    json.RawMessage
	ProjectID *string
}

// UpsertConnection creates or replaces the integration row for
// (user, provider), marking it connected.
func (s *IntegrationStore) UpsertConnection(ctx context.Context, input UpsertConnectionInput) (*Integration, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if !models.IsKnownProvider(input.Provider) {
		return nil, fmt.Errorf("unknown provider %q", input.Provider)
	}

	config := input.Config
	if len(config) == 0 || string(config) == "null" {
		config = json.RawMessage("{}")
	}

	query := `INSERT INTO integrations (user_id, provider, status, config, project_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, provider)
		DO UPDATE SET
			status = EXCLUDED.status,
			config = EXCLUDED.config,
			project_id = EXCLUDED.project_id,
			updated_at = NOW()
		RETURNING ` + integrationSelectColumns

	integration, err := scanIntegration(s.db.QueryRowContext(
		ctx,
		query,
		input.UserID,
		input.Provider,
		models.IntegrationConnected,
		[]byte(config),
		nullableString(input.ProjectID),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert integration: %w", err)
	}

	return &integration, nil
}

// Disconnect marks the integration for (user, provider) disconnected. The row
// is kept so the configuration survives a later reconnect.
func (s *IntegrationStore) Disconnect(ctx context.Context, userID, provider string) error {
	result, err := s.db.ExecContext(
		ctx,
		"UPDATE integrations SET status = $1, updated_at = NOW() WHERE user_id = $2 AND provider = $3",
		models.IntegrationDisconnected,
		userID,
		provider,
	)
	if err != nil {
		return fmt.Errorf("failed to disconnect integration: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check disconnect result: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByUserProvider retrieves the integration for (user, provider).
func (s *IntegrationStore) GetByUserProvider(ctx context.Context, userID, provider string) (*Integration, error) {
	query := "SELECT " + integrationSelectColumns + " FROM integrations WHERE user_id = $1 AND provider = $2"
	integration, err := scanIntegration(s.db.QueryRowContext(ctx, query, userID, provider))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	return &integration, nil
}

// FindConnectedByConfigField locates the connected integration for provider
// whose configuration blob carries value under key. This is how non-signed
// providers (Notion, Google Calendar) are matched to deliveries: a matching
// configured resource identifier, which is a weaker guarantee than a
// cryptographic signature.
func (s *IntegrationStore) FindConnectedByConfigField(ctx context.Context, provider, key, value string) (*Integration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrNotFound
	}

	query := "SELECT " + integrationSelectColumns + ` FROM integrations
		WHERE provider = $1 AND status = $2 AND config->>$3 = $4
		ORDER BY updated_at DESC
		LIMIT 1`

	integration, err := scanIntegration(s.db.QueryRowContext(ctx, query, provider, models.IntegrationConnected, key, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find integration: %w", err)
	}

	return &integration, nil
}

// FindByRepository locates the connected GitHub integration for a repository
// full name ("owner/repo").
func (s *IntegrationStore) FindByRepository(ctx context.Context, fullName string) (*Integration, error) {
	return s.FindConnectedByConfigField(ctx, models.ProviderGitHub, "repository", fullName)
}

// FindByTeamID locates the connected Slack integration for a workspace team id.
func (s *IntegrationStore) FindByTeamID(ctx context.Context, teamID string) (*Integration, error) {
	return s.FindConnectedByConfigField(ctx, models.ProviderSlack, "team_id", teamID)
}

// FindByDatabaseID locates the connected Notion integration for a database id.
func (s *IntegrationStore) FindByDatabaseID(ctx context.Context, databaseID string) (*Integration, error) {
	return s.FindConnectedByConfigField(ctx, models.ProviderNotion, "database_id", databaseID)
}

// FindByCalendarID locates the connected Google Calendar integration for a
// calendar id.
func (s *IntegrationStore) FindByCalendarID(ctx context.Context, calendarID string) (*Integration, error) {
	return s.FindConnectedByConfigField(ctx, models.ProviderGoogleCalendar, "calendar_id", calendarID)
}

func scanIntegration(scanner interface{ Scan(...any) error }) (Integration, error) {
	var integration Integration
	var projectID sql.NullString
	var configBytes []byte

	err := scanner.Scan(
		&integration.ID,
		&integration.UserID,
		&integration.Provider,
		&integration.Status,
		&configBytes,
		&projectID,
		&integration.CreatedAt,
		&integration.UpdatedAt,
	)
	if err != nil {
		return integration, err
	}

	if projectID.Valid {
		integration.ProjectID = &projectID.String
	}

	if len(configBytes) == 0 {
		integration.Config = json.RawMessage("{}")
	} else {
		integration.Config = json.RawMessage(configBytes)
	}

	return integration, nil
}
