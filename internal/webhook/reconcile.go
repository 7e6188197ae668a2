package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/taskmirror/taskmirror/internal/analyzer"
	"github.com/taskmirror/taskmirror/internal/models"
	"github.com/taskmirror/taskmirror/internal/store"
	"github.com/taskmirror/taskmirror/internal/ws"
)

// Outcome reports what reconciliation did with an event.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// Result is the reconciliation outcome and the row it touched, when any.
type Result struct {
	Outcome       Outcome
	Task          *store.Task
	CalendarEvent *store.CalendarEvent
}

// TaskReconcileStore is the slice of the task store reconciliation uses.
type TaskReconcileStore interface {
	UpsertExternal(ctx context.Context, input store.UpsertExternalTaskInput) (*store.Task, bool, error)
	ApplyExternalPatch(ctx context.Context, externalID string, patch store.TaskExternalPatch) (*store.Task, error)
}

// CalendarReconcileStore is the slice of the calendar event store
// reconciliation uses.
type CalendarReconcileStore interface {
	UpsertExternal(ctx context.Context, input store.UpsertExternalCalendarEventInput) (*store.CalendarEvent, bool, error)
	GetByExternalID(ctx context.Context, externalID string) (*store.CalendarEvent, error)
}

// ProjectDirectory lists a user's projects for fuzzy name resolution.
type ProjectDirectory interface {
	ListByOwner(ctx context.Context, ownerID string) ([]store.Project, error)
}

// AssignmentRecorder records analyzer-suggested assignments.
type AssignmentRecorder interface {
	Create(ctx context.Context, taskID, assigneeID, assignedBy string) (*store.TaskAssignment, error)
}

// Broadcaster pushes a change notification to clients watching a project.
type Broadcaster interface {
	Broadcast(projectID string, payload []byte)
}

// Reconciler merges canonical events into task and calendar event rows. All
// collaborators are injected; Analyzer and Hub are optional and nil disables
// the corresponding side effect.
type Reconciler struct {
	tasks     TaskReconcileStore
	calendars CalendarReconcileStore
	projects  ProjectDirectory

	Assignments AssignmentRecorder
	Analyzer    analyzer.Client
	Hub         Broadcaster
}

// NewReconciler creates a Reconciler over the required stores.
func NewReconciler(tasks TaskReconcileStore, calendars CalendarReconcileStore, projects ProjectDirectory) *Reconciler {
	return &Reconciler{tasks: tasks, calendars: calendars, projects: projects}
}

// Reconcile applies one canonical event against the integration that owns the
// delivery. Creation-worthy actions go through a single atomic upsert;
// update-only actions patch the existing row and are skipped when no row
// matches the external id.
func (r *Reconciler) Reconcile(ctx context.Context, event ExternalEvent, integration *store.Integration) (*Result, error) {
	if event.RemoteID == "" {
		return nil, &ValidationError{Provider: event.Provider, Reason: "event missing remote id"}
	}

	if event.Entity == EntityCalendar {
		return r.reconcileCalendarEvent(ctx, event, integration)
	}
	return r.reconcileTask(ctx, event, integration)
}

func (r *Reconciler) reconcileTask(ctx context.Context, event ExternalEvent, integration *store.Integration) (*Result, error) {
	externalID := event.ExternalID()

	if !event.CreationWorthy() {
		patch := store.TaskExternalPatch{
			Title:             event.Title,
			Description:       event.Description,
			Status:            event.Status,
			Priority:          event.Priority,
			ExternalURL:       event.ExternalURL,
			RemoteIssueNumber: event.IssueNumber,
			RemotePRURL:       event.RemotePRURL,
		}
		task, err := r.tasks.ApplyExternalPatch(ctx, externalID, patch)
		if errors.Is(err, store.ErrNotFound) {
			// Terminal or update actions never create implicitly.
			return &Result{Outcome: OutcomeSkipped}, nil
		}
		if err != nil {
			return nil, &DependencyError{Provider: event.Provider, Action: event.Action, Err: err}
		}
		r.broadcastTask(ws.MessageTaskUpdated, task)
		return &Result{Outcome: OutcomeUpdated, Task: task}, nil
	}

	projectID, err := r.resolveProject(ctx, event, integration)
	if err != nil {
		return nil, err
	}

	input := store.UpsertExternalTaskInput{
		ExternalID:        externalID,
		Provider:          event.Provider,
		ProjectID:         projectID,
		Title:             event.Title,
		Description:       event.Description,
		Status:            event.Status,
		Priority:          event.Priority,
		ExternalURL:       event.ExternalURL,
		RemoteIssueNumber: event.IssueNumber,
		RemotePRURL:       event.RemotePRURL,
		CreatedBy:         stringRef(integration.UserID),
	}

	suggestedAssignee := r.enrich(ctx, event, &input)

	task, created, err := r.tasks.UpsertExternal(ctx, input)
	if errors.Is(err, store.ErrConflict) {
		return nil, &ValidationError{Provider: event.Provider, Reason: "external id already owned by another provider"}
	}
	if err != nil {
		return nil, &DependencyError{Provider: event.Provider, Action: event.Action, Err: err}
	}

	if created && suggestedAssignee != "" && r.Assignments != nil {
		if _, err := r.Assignments.Create(ctx, task.ID, suggestedAssignee, integration.UserID); err != nil {
			log.Printf("webhook: %s %s: failed to record suggested assignment: %v", event.Provider, event.Action, err)
		}
	}

	if created {
		r.broadcastTask(ws.MessageTaskCreated, task)
		return &Result{Outcome: OutcomeCreated, Task: task}, nil
	}
	r.broadcastTask(ws.MessageTaskUpdated, task)
	return &Result{Outcome: OutcomeUpdated, Task: task}, nil
}

func (r *Reconciler) reconcileCalendarEvent(ctx context.Context, event ExternalEvent, integration *store.Integration) (*Result, error) {
	externalID := event.ExternalID()

	if !event.CreationWorthy() {
		// The calendar store has no partial-patch path; updates re-upsert the
		// full event state the provider sent. The lookup keeps unseen events
		// from being created by an update or cancellation, at the cost of a
		// small read-then-write window.
		if _, err := r.calendars.GetByExternalID(ctx, externalID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return &Result{Outcome: OutcomeSkipped}, nil
			}
			return nil, &DependencyError{Provider: event.Provider, Action: event.Action, Err: err}
		}
	}

	input := store.UpsertExternalCalendarEventInput{
		ExternalID:      externalID,
		Provider:        event.Provider,
		ProjectID:       integration.ProjectID,
		Title:           event.Title,
		Description:     event.Description,
		StartsAt:        event.StartsAt,
		EndsAt:          event.EndsAt,
		DurationMinutes: event.DurationMinutes,
		Location:        event.Location,
		EventType:       event.CalendarType,
		Attendees:       event.Attendees,
		ExternalURL:     event.ExternalURL,
		CreatedBy:       stringRef(integration.UserID),
	}

	calEvent, created, err := r.calendars.UpsertExternal(ctx, input)
	if errors.Is(err, store.ErrConflict) {
		return nil, &ValidationError{Provider: event.Provider, Reason: "external id already owned by another provider"}
	}
	if err != nil {
		return nil, &DependencyError{Provider: event.Provider, Action: event.Action, Err: err}
	}

	r.broadcastCalendarEvent(calEvent)
	if created {
		return &Result{Outcome: OutcomeCreated, CalendarEvent: calEvent}, nil
	}
	return &Result{Outcome: OutcomeUpdated, CalendarEvent: calEvent}, nil
}

// resolveProject picks the owning project for a new task: the chat command
// path fuzzy-matches the hint against the owner's project names, everything
// else uses the integration's project binding.
func (r *Reconciler) resolveProject(ctx context.Context, event ExternalEvent, integration *store.Integration) (*string, error) {
	if event.ProjectHint == "" {
		return integration.ProjectID, nil
	}
	if r.projects == nil {
		return integration.ProjectID, nil
	}

	projects, err := r.projects.ListByOwner(ctx, integration.UserID)
	if err != nil {
		return nil, &DependencyError{Provider: event.Provider, Action: event.Action, Err: err}
	}

	names := make([]string, len(projects))
	for i, p := range projects {
		names[i] = p.Name
	}
	if i := MatchProjectName(event.ProjectHint, names); i >= 0 {
		return stringRef(projects[i].ID), nil
	}
	return integration.ProjectID, nil
}

// enrich asks the analyzer for suggested attributes when a code-host issue
// creates a task, merging them into the insert. Analyzer failures degrade to
// defaults; the task is still created. Returns the suggested assignee id, if
// any.
func (r *Reconciler) enrich(ctx context.Context, event ExternalEvent, input *store.UpsertExternalTaskInput) string {
	if r.Analyzer == nil {
		return ""
	}
	if event.Provider != models.ProviderGitHub || event.EventType != "issues" || event.Action != ActionOpened {
		return ""
	}

	req := analyzer.AnalyzeRequest{Title: derefString(input.Title)}
	if input.Description != nil {
		req.Description = *input.Description
	}
	if input.ProjectID != nil {
		req.ProjectID = *input.ProjectID
	}

	analysis, err := r.Analyzer.Analyze(ctx, req)
	if err != nil {
		log.Printf("webhook: %s %s: analyzer failed, creating with defaults: %v", event.Provider, event.Action, err)
		return ""
	}

	if analysis.Priority != nil && models.IsValidTaskPriority(*analysis.Priority) {
		input.Priority = analysis.Priority
	}
	if len(analysis.Tags) > 0 {
		input.Tags = analysis.Tags
	}
	input.DueDate = analysis.SuggestedDueDate
	input.EstimatedHours = analysis.EstimatedHours

	if analysis.SuggestedAssigneeID != nil {
		return *analysis.SuggestedAssigneeID
	}
	return ""
}

func (r *Reconciler) broadcastTask(messageType ws.MessageType, task *store.Task) {
	if r.Hub == nil || task == nil || task.ProjectID == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type": messageType,
		"task": task,
	})
	if err != nil {
		return
	}
	r.Hub.Broadcast(*task.ProjectID, payload)
}

func (r *Reconciler) broadcastCalendarEvent(event *store.CalendarEvent) {
	if r.Hub == nil || event == nil || event.ProjectID == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":  ws.MessageCalendarEventUpserted,
		"event": event,
	})
	if err != nil {
		return
	}
	r.Hub.Broadcast(*event.ProjectID, payload)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
