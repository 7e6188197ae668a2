// Package models defines shared vocabulary for TaskMirror.
//
// Note: The entity definitions live in the store package alongside their data
// access methods. This package provides the canonical constants exchanged
// between the webhook engine and the stores.
package models

// Task status constants. Remote provider vocabularies are mapped onto these
// four values by the webhook status mapper; no reverse mapping is pushed back
// to providers.
const (
	TaskStatusTodo       = "To Do"
	TaskStatusInProgress = "In Progress"
	TaskStatusReview     = "Review"
	TaskStatusDone       = "Done"
)

// Task priority constants.
const (
	TaskPriorityHigh   = "High"
	TaskPriorityMedium = "Medium"
	TaskPriorityLow    = "Low"
)

// Provider identifiers for external systems that deliver webhooks.
const (
	ProviderGitHub         = "github"
	ProviderSlack          = "slack"
	ProviderNotion         = "notion"
	ProviderGoogleCalendar = "google_calendar"
	ProviderZapier         = "zapier"
)

// Integration connection states.
const (
	IntegrationConnected    = "connected"
	IntegrationDisconnected = "disconnected"
)

// Calendar event types derived from event titles.
const (
	CalendarTypeMeeting  = "meeting"
	CalendarTypeDeadline = "deadline"
	CalendarTypeReminder = "reminder"
	CalendarTypeOther    = "other"
)

// IsValidTaskStatus reports whether status is one of the canonical values.
func IsValidTaskStatus(status string) bool {
	switch status {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone:
		return true
	default:
		return false
	}
}

// IsValidTaskPriority reports whether priority is one of the canonical values.
func IsValidTaskPriority(priority string) bool {
	switch priority {
	case TaskPriorityHigh, TaskPriorityMedium, TaskPriorityLow:
		return true
	default:
		return false
	}
}

// IsKnownProvider reports whether provider names a supported external system.
func IsKnownProvider(provider string) bool {
	switch provider {
	case ProviderGitHub, ProviderSlack, ProviderNotion, ProviderGoogleCalendar, ProviderZapier:
		return true
	default:
		return false
	}
}
