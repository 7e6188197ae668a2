// Package webhook implements the inbound integration engine: delivery
// authentication, payload normalization, status mapping, and idempotent
// reconciliation of external entities into tasks and calendar events.
package webhook

import (
	"strings"
	"time"
)

// Entity identifies which internal entity an event reconciles against.
type Entity string

const (
	EntityTask     Entity = "task"
	EntityCalendar Entity = "calendar_event"
)

// Canonical actions. Creation-worthy actions reconcile through an atomic
// upsert; the rest patch an existing row and are skipped when no row matches.
const (
	ActionOpened   = "opened"
	ActionClosed   = "closed"
	ActionReopened = "reopened"
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionCommand  = "command"
	ActionReaction = "reaction"
	ActionResolved = "resolved"
)

// ExternalEvent is the canonical, provider-agnostic representation of one
// inbound delivery (or one instruction extracted from it). It is ephemeral:
// produced by a normalizer and consumed immediately by the reconciler.
// Nil pointer fields mean the event does not carry that field.
type ExternalEvent struct {
	Provider  string
	EventType string
	Action    string
	Entity    Entity
	RemoteID  string

	Title       *string
	Description *string
	Status      *string
	Priority    *string
	ExternalURL *string
	RemotePRURL *string

	// IssueNumber is set for events derived from a code-host issue reference
	// (issue payloads, closing keywords in PR bodies and commit messages).
	IssueNumber *int64

	// ProjectHint carries a human-entered project name (chat command path)
	// to be fuzzy-matched against the integration owner's projects.
	ProjectHint string

	// Calendar-only fields.
	Attendees       []string
	StartsAt        *time.Time
	EndsAt          *time.Time
	DurationMinutes *int
	Location        *string
	CalendarType    *string
}

// ExternalID returns the composite key "<provider>-<remoteId>" that uniquely
// identifies the internal entity mirroring this remote one.
func (e ExternalEvent) ExternalID() string {
	return e.Provider + "-" + strings.TrimSpace(e.RemoteID)
}

// CreationWorthy reports whether the event may create an entity on first
// sighting. Terminal or update-only actions never create implicitly.
func (e ExternalEvent) CreationWorthy() bool {
	switch e.Action {
	case ActionOpened, ActionCreated, ActionCommand:
		return true
	default:
		return false
	}
}

func stringRef(value string) *string {
	return &value
}

func intRef(value int) *int {
	return &value
}

func int64Ref(value int64) *int64 {
	return &value
}
