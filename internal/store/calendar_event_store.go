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

// CalendarEvent represents a calendar entry mirrored from an external
// calendar. The external id invariant matches Task: at most one row per
// remote entity.
type CalendarEvent struct {
	ID              string     `json:"id"`
	ProjectID       *string    `json:"project_id,omitempty"`
	Title           string     `json:"title"`
	Description     *string    `json:"description,omitempty"`
	StartsAt        *time.Time `json:"starts_at,omitempty"`
	EndsAt          *time.Time `json:"ends_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Location        *string    `json:"location,omitempty"`
	EventType       string     `json:"event_type"`
	Attendees       []string   `json:"attendees"`
	Provider        *string    `json:"provider,omitempty"`
	ExternalID      *string    `json:"external_id,omitempty"`
	ExternalURL     *string    `json:"external_url,omitempty"`
	CreatedBy       *string    `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CalendarEventStore provides access to calendar events.
type CalendarEventStore struct {
	db *sql.DB
}

// NewCalendarEventStore creates a new CalendarEventStore.
func NewCalendarEventStore(db *sql.DB) *CalendarEventStore {
	return &CalendarEventStore{db: db}
}

const calendarEventSelectColumns = "id, project_id, title, description, starts_at, ends_at, duration_minutes, location, event_type, attendees, provider, external_id, external_url, created_by, created_at, updated_at"

// UpsertExternalCalendarEventInput defines the input for reconciling an
// external calendar event. Nil pointer fields are not carried by the event.
type UpsertExternalCalendarEventInput struct {
	ExternalID      string
	Provider        string
	ProjectID       *string
	Title           *string
	Description     *string
	StartsAt        *time.Time
	EndsAt          *time.Time
	DurationMinutes *int
	Location        *string
	EventType       *string
	Attendees       []string
	ExternalURL     *string
	CreatedBy       *string
}

// UpsertExternal reconciles an external calendar event in a single atomic
// statement, keyed on external id. Redeliveries update the existing row.
func (s *CalendarEventStore) UpsertExternal(ctx context.Context, input UpsertExternalCalendarEventInput) (*CalendarEvent, bool, error) {
	externalID := strings.TrimSpace(input.ExternalID)
	if externalID == "" {
		return nil, false, fmt.Errorf("external_id is required")
	}
	if strings.TrimSpace(input.Provider) == "" {
		return nil, false, fmt.Errorf("provider is required")
	}

	query := `INSERT INTO calendar_events (
			project_id, title, description, starts_at, ends_at, duration_minutes,
			location, event_type, attendees, provider, external_id, external_url, created_by
		) VALUES (
			$1,
			COALESCE($2, 'Untitled Event'),
			$3,
			$4::timestamptz,
			$5::timestamptz,
			COALESCE($6::int, 60),
			$7,
			COALESCE($8, 'other'),
			COALESCE($9::text[], '{}'::text[]),
			$10, $11, $12, $13
		)
		ON CONFLICT (external_id) DO UPDATE SET
			title = COALESCE($2, calendar_events.title),
			description = COALESCE($3, calendar_events.description),
			starts_at = COALESCE($4::timestamptz, calendar_events.starts_at),
			ends_at = COALESCE($5::timestamptz, calendar_events.ends_at),
			duration_minutes = COALESCE($6::int, calendar_events.duration_minutes),
			location = COALESCE($7, calendar_events.location),
			event_type = COALESCE($8, calendar_events.event_type),
			attendees = COALESCE($9::text[], calendar_events.attendees),
			external_url = COALESCE($12, calendar_events.external_url),
			updated_at = NOW()
		WHERE calendar_events.provider = $10
		RETURNING ` + calendarEventSelectColumns + ", (xmax = 0) AS created"

	var startsAtArg, endsAtArg interface{}
	if input.StartsAt != nil {
		startsAtArg = *input.StartsAt
	}
	if input.EndsAt != nil {
		endsAtArg = *input.EndsAt
	}

	var durationArg interface{}
	if input.DurationMinutes != nil {
		durationArg = *input.DurationMinutes
	}

	var attendeesArg interface{}
	if input.Attendees != nil {
		attendeesArg = pq.Array(input.Attendees)
	}

	args := []interface{}{
		nullableString(input.ProjectID),
		nullableString(input.Title),
		nullableString(input.Description),
		startsAtArg,
		endsAtArg,
		durationArg,
		nullableString(input.Location),
		nullableString(input.EventType),
		attendeesArg,
		input.Provider,
		externalID,
		nullableString(input.ExternalURL),
		nullableString(input.CreatedBy),
	}

	event, created, err := scanCalendarEventWithCreated(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrConflict
		}
		return nil, false, fmt.Errorf("failed to upsert calendar event: %w", err)
	}

	return &event, created, nil
}

// GetByExternalID retrieves the calendar event mirrored from one remote entity.
func (s *CalendarEventStore) GetByExternalID(ctx context.Context, externalID string) (*CalendarEvent, error) {
	query := "SELECT " + calendarEventSelectColumns + " FROM calendar_events WHERE external_id = $1"
	event, err := scanCalendarEvent(s.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get calendar event: %w", err)
	}

	return &event, nil
}

func scanCalendarEvent(scanner interface{ Scan(...any) error }) (CalendarEvent, error) {
	event, _, err := scanCalendarEventFields(scanner, false)
	return event, err
}

func scanCalendarEventWithCreated(scanner interface{ Scan(...any) error }) (CalendarEvent, bool, error) {
	return scanCalendarEventFields(scanner, true)
}

func scanCalendarEventFields(scanner interface{ Scan(...any) error }, withCreated bool) (CalendarEvent, bool, error) {
	var event CalendarEvent
	var projectID sql.NullString
	var description sql.NullString
	var startsAt sql.NullTime
	var endsAt sql.NullTime
	var location sql.NullString
	var attendees pq.StringArray
	var provider sql.NullString
	var externalID sql.NullString
	var externalURL sql.NullString
	var createdBy sql.NullString
	var created bool

	dest := []any{
		&event.ID,
		&projectID,
		&event.Title,
		&description,
		&startsAt,
		&endsAt,
		&event.DurationMinutes,
		&location,
		&event.EventType,
		&attendees,
		&provider,
		&externalID,
		&externalURL,
		&createdBy,
		&event.CreatedAt,
		&event.UpdatedAt,
	}
	if withCreated {
		dest = append(dest, &created)
	}

	if err := scanner.Scan(dest...); err != nil {
		return event, false, err
	}

	if projectID.Valid {
		event.ProjectID = &projectID.String
	}
	if description.Valid {
		event.Description = &description.String
	}
	if startsAt.Valid {
		event.StartsAt = &startsAt.Time
	}
	if endsAt.Valid {
		event.EndsAt = &endsAt.Time
	}
	if location.Valid {
		event.Location = &location.String
	}
	if provider.Valid {
		event.Provider = &provider.String
	}
	if externalID.Valid {
		event.ExternalID = &externalID.String
	}
	if externalURL.Valid {
		event.ExternalURL = &externalURL.String
	}
	if createdBy.Valid {
		event.CreatedBy = &createdBy.String
	}
	event.Attendees = []string(attendees)
	if event.Attendees == nil {
		event.Attendees = []string{}
	}

	return event, created, nil
}
