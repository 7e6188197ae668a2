package webhook

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/taskmirror/taskmirror/internal/models"
)

type googleCalendarBound struct {
	Date     string `json:"date"`
	DateTime string `json:"dateTime"`
}

type googleCalendarPayload struct {
	CalendarID string `json:"calendar_id"`
	Action     string `json:"action"`
	Event      struct {
		ID          string              `json:"id"`
		Summary     string              `json:"summary"`
		Description string              `json:"description"`
		Location    string              `json:"location"`
		HTMLLink    string              `json:"htmlLink"`
		Start       googleCalendarBound `json:"start"`
		End         googleCalendarBound `json:"end"`
		Attendees   []struct {
			Email string `json:"email"`
		} `json:"attendees"`
	} `json:"event"`
}

// parseCalendarBound reads an event bound that is either a date-only value
// (all-day events) or an RFC 3339 timestamp.
func parseCalendarBound(bound googleCalendarBound) *time.Time {
	if bound.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, bound.DateTime); err == nil {
			return &t
		}
		return nil
	}
	if bound.Date != "" {
		if t, err := time.Parse("2006-01-02", bound.Date); err == nil {
			return &t
		}
	}
	return nil
}

// NormalizeGoogleCalendarEvent maps a calendar event delivery to one calendar
// event instruction. Duration is the signed difference between the bounds in
// minutes, defaulting to 60 when either bound is absent. Cancelled events are
// updates with a tagged title; rows are never deleted on cancellation.
func NormalizeGoogleCalendarEvent(body []byte) ([]ExternalEvent, error) {
	var payload googleCalendarPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ValidationError{Provider: models.ProviderGoogleCalendar, Reason: "malformed event payload"}
	}
	if payload.Event.ID == "" {
		return nil, &ValidationError{Provider: models.ProviderGoogleCalendar, Reason: "event payload missing event id"}
	}

	title := strings.TrimSpace(payload.Event.Summary)
	if title == "" {
		title = "Untitled Event"
	}

	action := ActionUpdated
	switch payload.Action {
	case ActionCreated:
		action = ActionCreated
	case "cancelled":
		title = "[Cancelled] " + title
	}

	starts := parseCalendarBound(payload.Event.Start)
	ends := parseCalendarBound(payload.Event.End)
	duration := 60
	if starts != nil && ends != nil {
		duration = int(ends.Sub(*starts).Minutes())
	}

	var attendees []string
	for _, a := range payload.Event.Attendees {
		if a.Email != "" {
			attendees = append(attendees, a.Email)
		}
	}

	event := ExternalEvent{
		Provider:        models.ProviderGoogleCalendar,
		EventType:       "event",
		Action:          action,
		Entity:          EntityCalendar,
		RemoteID:        payload.Event.ID,
		Title:           stringRef(title),
		Description:     stringRef(payload.Event.Description),
		Attendees:       attendees,
		StartsAt:        starts,
		EndsAt:          ends,
		DurationMinutes: intRef(duration),
		CalendarType:    stringRef(ClassifyEventTitle(title)),
	}
	if payload.Event.Location != "" {
		event.Location = stringRef(payload.Event.Location)
	}
	if payload.Event.HTMLLink != "" {
		event.ExternalURL = stringRef(payload.Event.HTMLLink)
	}
	return []ExternalEvent{event}, nil
}
