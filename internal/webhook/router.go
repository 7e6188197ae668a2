package webhook

import (
	"errors"
	"strings"

	"github.com/taskmirror/taskmirror/internal/models"
)

// ErrNotHandled is returned by Route for (provider, eventType, action)
// combinations the engine intentionally ignores. The HTTP boundary turns it
// into a successful no-op so providers are not retried into backoff loops.
var ErrNotHandled = errors.New("event not handled")

// AnyAction matches deliveries whose event type has no sub-action
// (e.g. GitHub push events).
const AnyAction = "*"

// RouteKey is the dispatch key for one provider event shape.
type RouteKey struct {
	Provider  string
	EventType string
	Action    string
}

// NormalizeFunc maps one raw provider payload to canonical events. A handled
// delivery that yields no instructions returns an empty slice, not an error.
type NormalizeFunc func(body []byte) ([]ExternalEvent, error)

// Registry is the dispatch table from route keys to normalizers.
type Registry struct {
	routes map[RouteKey]NormalizeFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{routes: make(map[RouteKey]NormalizeFunc)}
}

// Register binds a normalizer to a (provider, eventType, action) key.
func (r *Registry) Register(provider, eventType, action string, fn NormalizeFunc) {
	r.routes[RouteKey{Provider: provider, EventType: eventType, Action: action}] = fn
}

// Route resolves the normalizer for a delivery. Exact action matches win over
// AnyAction registrations; unrecognized combinations return ErrNotHandled.
func (r *Registry) Route(provider, eventType, action string) (NormalizeFunc, error) {
	provider = strings.TrimSpace(strings.ToLower(provider))
	eventType = strings.TrimSpace(strings.ToLower(eventType))
	action = strings.TrimSpace(strings.ToLower(action))

	if fn, ok := r.routes[RouteKey{Provider: provider, EventType: eventType, Action: action}]; ok {
		return fn, nil
	}
	if fn, ok := r.routes[RouteKey{Provider: provider, EventType: eventType, Action: AnyAction}]; ok {
		return fn, nil
	}

	return nil, ErrNotHandled
}

// DefaultRegistry returns the dispatch table for every supported provider
// event shape.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	for _, action := range []string{ActionOpened, ActionClosed, ActionReopened} {
		r.Register(models.ProviderGitHub, "issues", action, NormalizeGitHubIssue)
	}
	for _, action := range []string{ActionOpened, ActionReopened, ActionClosed} {
		r.Register(models.ProviderGitHub, "pull_request", action, NormalizeGitHubPullRequest)
	}
	r.Register(models.ProviderGitHub, "push", AnyAction, NormalizeGitHubPush)

	r.Register(models.ProviderSlack, "event_callback", "message", NormalizeSlackMessage)
	r.Register(models.ProviderSlack, "event_callback", "reaction_added", NormalizeSlackReaction)

	r.Register(models.ProviderNotion, "page", ActionCreated, NormalizeNotionPage)
	r.Register(models.ProviderNotion, "page", ActionUpdated, NormalizeNotionPage)

	for _, action := range []string{ActionCreated, ActionUpdated, "cancelled"} {
		r.Register(models.ProviderGoogleCalendar, "event", action, NormalizeGoogleCalendarEvent)
	}

	return r
}
