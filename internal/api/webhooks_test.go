package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskmirror/taskmirror/internal/models"
	"github.com/taskmirror/taskmirror/internal/store"
	"github.com/taskmirror/taskmirror/internal/webhook"
)

type fakeIntegrationFinder struct {
	byRepository map[string]*store.Integration
	byTeamID     map[string]*store.Integration
	byDatabaseID map[string]*store.Integration
	byCalendarID map[string]*store.Integration
}

func lookup(m map[string]*store.Integration, key string) (*store.Integration, error) {
	if integration, ok := m[key]; ok {
		return integration, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeIntegrationFinder) FindByRepository(ctx context.Context, fullName string) (*store.Integration, error) {
	return lookup(f.byRepository, fullName)
}

func (f *fakeIntegrationFinder) FindByTeamID(ctx context.Context, teamID string) (*store.Integration, error) {
	return lookup(f.byTeamID, teamID)
}

func (f *fakeIntegrationFinder) FindByDatabaseID(ctx context.Context, databaseID string) (*store.Integration, error) {
	return lookup(f.byDatabaseID, databaseID)
}

func (f *fakeIntegrationFinder) FindByCalendarID(ctx context.Context, calendarID string) (*store.Integration, error) {
	return lookup(f.byCalendarID, calendarID)
}

type fakeReconciler struct {
	events  []webhook.ExternalEvent
	results map[string]*webhook.Result
	err     error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, event webhook.ExternalEvent, integration *store.Integration) (*webhook.Result, error) {
	f.events = append(f.events, event)
	if f.err != nil {
		return nil, f.err
	}
	if result, ok := f.results[event.ExternalID()]; ok {
		return result, nil
	}
	return &webhook.Result{Outcome: webhook.OutcomeUpdated}, nil
}

type fakeDeliveryRecorder struct {
	recorded []string
}

func (f *fakeDeliveryRecorder) Record(ctx context.Context, provider string, eventType, action *string, payload json.RawMessage) (*store.WebhookDelivery, error) {
	f.recorded = append(f.recorded, provider)
	return &store.WebhookDelivery{ID: "d-1", Provider: provider}, nil
}

func integrationWithConfig(provider string, config string) *store.Integration {
	return &store.Integration{
		ID:       "int-1",
		UserID:   "user-1",
		Provider: provider,
		Status:   models.IntegrationConnected,
		Config:   json.RawMessage(config),
	}
}

func postWebhook(t *testing.T, handler http.HandlerFunc, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/x", bytes.NewReader(body))
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return decoded
}

func TestHandleGitHubProcessesSignedIssueDelivery(t *testing.T) {
	secret := "hush"
	finder := &fakeIntegrationFinder{byRepository: map[string]*store.Integration{
		"acme/site": integrationWithConfig(models.ProviderGitHub, `{"repository":"acme/site","webhook_secret":"hush"}`),
	}}
	reconciler := &fakeReconciler{results: map[string]*webhook.Result{
		"github-42": {Outcome: webhook.OutcomeCreated, Task: &store.Task{ID: "task-1"}},
	}}
	handler := NewWebhookHandler(finder, reconciler)
	deliveries := &fakeDeliveryRecorder{}
	handler.Deliveries = deliveries

	body := []byte(`{"action":"opened","repository":{"full_name":"acme/site"},"issue":{"number":42,"title":"Bug","body":"b","html_url":"https://x/42"}}`)
	rec := postWebhook(t, handler.HandleGitHub, body, map[string]string{
		"X-GitHub-Event":      "issues",
		"X-Hub-Signature-256": webhook.SignGitHub(secret, body),
	})

	require.Equal(t, http.StatusOK, rec.Code)
	decoded := decodeBody(t, rec)
	require.Equal(t, "Webhook processed", decoded["message"])
	require.Equal(t, "task-1", decoded["taskId"])
	require.Len(t, reconciler.events, 1)
	require.Equal(t, []string{models.ProviderGitHub}, deliveries.recorded)
}

func TestHandleGitHubRejectsBadSignature(t *testing.T) {
	finder := &fakeIntegrationFinder{byRepository: map[string]*store.Integration{
		"acme/site": integrationWithConfig(models.ProviderGitHub, `{"webhook_secret":"hush"}`),
	}}
	reconciler := &fakeReconciler{}
	handler := NewWebhookHandler(finder, reconciler)

	body := []byte(`{"action":"opened","repository":{"full_name":"acme/site"},"issue":{"number":42}}`)
	rec := postWebhook(t, handler.HandleGitHub, body, map[string]string{
		"X-GitHub-Event":      "issues",
		"X-Hub-Signature-256": webhook.SignGitHub("wrong-secret", body),
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, reconciler.events)
	require.NotContains(t, rec.Body.String(), "hush")
}

func TestHandleGitHubUnknownRepositoryIs404(t *testing.T) {
	handler := NewWebhookHandler(&fakeIntegrationFinder{}, &fakeReconciler{})

	body := []byte(`{"action":"opened","repository":{"full_name":"nobody/nothing"},"issue":{"number":1}}`)
	rec := postWebhook(t, handler.HandleGitHub, body, map[string]string{"X-GitHub-Event": "issues"})

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGitHubMissingRepositoryIs400(t *testing.T) {
	handler := NewWebhookHandler(&fakeIntegrationFinder{}, &fakeReconciler{})

	rec := postWebhook(t, handler.HandleGitHub, []byte(`{"action":"opened"}`), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postWebhook(t, handler.HandleGitHub, []byte(`not json`), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGitHubIgnoredEventIsOK(t *testing.T) {
	finder := &fakeIntegrationFinder{byRepository: map[string]*store.Integration{
		"acme/site": integrationWithConfig(models.ProviderGitHub, `{}`),
	}}
	reconciler := &fakeReconciler{}
	handler := NewWebhookHandler(finder, reconciler)

	body := []byte(`{"action":"created","repository":{"full_name":"acme/site"}}`)
	rec := postWebhook(t, handler.HandleGitHub, body, map[string]string{"X-GitHub-Event": "deployment_status"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Event ignored", decodeBody(t, rec)["message"])
	require.Empty(t, reconciler.events)
}

func TestHandleSlackURLVerificationChallenge(t *testing.T) {
	handler := NewWebhookHandler(&fakeIntegrationFinder{}, &fakeReconciler{})

	rec := postWebhook(t, handler.HandleSlack, []byte(`{"type":"url_verification","challenge":"challenge-123"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "challenge-123", decodeBody(t, rec)["challenge"])
}

func TestHandleSlackProcessesSignedCommand(t *testing.T) {
	secret := "slack-secret"
	finder := &fakeIntegrationFinder{byTeamID: map[string]*store.Integration{
		"T123": integrationWithConfig(models.ProviderSlack, `{"team_id":"T123","signing_secret":"slack-secret"}`),
	}}
	reconciler := &fakeReconciler{}
	handler := NewWebhookHandler(finder, reconciler)

	now := time.Unix(1_700_000_000, 0)
	handler.Now = func() time.Time { return now }

	body := []byte(`{"type":"event_callback","team_id":"T123","event":{"type":"message","text":"!task web: Fix navbar","ts":"1.100"}}`)
	timestamp := strconv.FormatInt(now.Unix(), 10)
	rec := postWebhook(t, handler.HandleSlack, body, map[string]string{
		"x-slack-request-timestamp": timestamp,
		"x-slack-signature":         webhook.SignSlack(secret, timestamp, body),
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["success"])
	require.Len(t, reconciler.events, 1)
	require.Equal(t, webhook.ActionCommand, reconciler.events[0].Action)
}

func TestHandleSlackRejectsReplayedDelivery(t *testing.T) {
	secret := "slack-secret"
	finder := &fakeIntegrationFinder{byTeamID: map[string]*store.Integration{
		"T123": integrationWithConfig(models.ProviderSlack, `{"signing_secret":"slack-secret"}`),
	}}
	reconciler := &fakeReconciler{}
	handler := NewWebhookHandler(finder, reconciler)

	now := time.Unix(1_700_000_000, 0)
	handler.Now = func() time.Time { return now }

	body := []byte(`{"type":"event_callback","team_id":"T123","event":{"type":"message","text":"!task web: Fix navbar","ts":"1.100"}}`)
	stale := strconv.FormatInt(now.Add(-10*time.Minute).Unix(), 10)
	rec := postWebhook(t, handler.HandleSlack, body, map[string]string{
		"x-slack-request-timestamp": stale,
		"x-slack-signature":         webhook.SignSlack(secret, stale, body),
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, reconciler.events)
}

func TestHandleSlackUnknownTeamIs404(t *testing.T) {
	handler := NewWebhookHandler(&fakeIntegrationFinder{}, &fakeReconciler{})

	rec := postWebhook(t, handler.HandleSlack, []byte(`{"type":"event_callback","team_id":"T999","event":{"type":"message"}}`), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleNotionProcessesPageDelivery(t *testing.T) {
	finder := &fakeIntegrationFinder{byDatabaseID: map[string]*store.Integration{
		"db-1": integrationWithConfig(models.ProviderNotion, `{"database_id":"db-1"}`),
	}}
	reconciler := &fakeReconciler{}
	handler := NewWebhookHandler(finder, reconciler)

	body := []byte(`{"type":"page","action":"created","database_id":"db-1","page":{"id":"p1","properties":{}}}`)
	rec := postWebhook(t, handler.HandleNotion, body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["success"])
	require.Len(t, reconciler.events, 1)
	require.Equal(t, "notion-p1", reconciler.events[0].ExternalID())
}

func TestHandleNotionValidation(t *testing.T) {
	handler := NewWebhookHandler(&fakeIntegrationFinder{}, &fakeReconciler{})

	rec := postWebhook(t, handler.HandleNotion, []byte(`{"action":"created"}`), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postWebhook(t, handler.HandleNotion, []byte(`{"action":"created","database_id":"nope","page":{"id":"p1"}}`), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGoogleCalendarProcessesEventDelivery(t *testing.T) {
	finder := &fakeIntegrationFinder{byCalendarID: map[string]*store.Integration{
		"primary": integrationWithConfig(models.ProviderGoogleCalendar, `{"calendar_id":"primary"}`),
	}}
	reconciler := &fakeReconciler{}
	handler := NewWebhookHandler(finder, reconciler)

	body := []byte(`{"calendar_id":"primary","action":"created","event":{"id":"e1","summary":"Design sync"}}`)
	rec := postWebhook(t, handler.HandleGoogleCalendar, body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["success"])
	require.Len(t, reconciler.events, 1)
	require.Equal(t, webhook.EntityCalendar, reconciler.events[0].Entity)
}

func TestHandleGoogleCalendarUnknownCalendarIs404(t *testing.T) {
	handler := NewWebhookHandler(&fakeIntegrationFinder{}, &fakeReconciler{})

	rec := postWebhook(t, handler.HandleGoogleCalendar, []byte(`{"calendar_id":"ghost","action":"created","event":{"id":"e1"}}`), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleZapierAcceptsAndLogs(t *testing.T) {
	handler := NewWebhookHandler(&fakeIntegrationFinder{}, &fakeReconciler{})
	deliveries := &fakeDeliveryRecorder{}
	handler.Deliveries = deliveries

	rec := postWebhook(t, handler.HandleZapier, []byte(`{"event_type":"new_lead","data":{"email":"a@b.c"}}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["success"])
	require.Equal(t, []string{models.ProviderZapier}, deliveries.recorded)
}

func TestHandleZapierRejectsMalformedJSON(t *testing.T) {
	handler := NewWebhookHandler(&fakeIntegrationFinder{}, &fakeReconciler{})

	rec := postWebhook(t, handler.HandleZapier, []byte(`not json`), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusForError(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, statusForError(&webhook.AuthError{Provider: "github", Reason: "bad signature"}))
	require.Equal(t, http.StatusBadRequest, statusForError(&webhook.ValidationError{Provider: "github", Reason: "missing field"}))
	require.Equal(t, http.StatusNotFound, statusForError(&webhook.NotFoundError{Provider: "github", Resource: "acme/site"}))
	require.Equal(t, http.StatusInternalServerError, statusForError(&webhook.DependencyError{Provider: "github", Action: "opened", Err: context.DeadlineExceeded}))
	require.Equal(t, http.StatusInternalServerError, statusForError(context.DeadlineExceeded))
}

func TestHandleGitHubDependencyFailureIs500(t *testing.T) {
	finder := &fakeIntegrationFinder{byRepository: map[string]*store.Integration{
		"acme/site": integrationWithConfig(models.ProviderGitHub, `{}`),
	}}
	reconciler := &fakeReconciler{err: &webhook.DependencyError{Provider: models.ProviderGitHub, Action: "opened", Err: context.DeadlineExceeded}}
	handler := NewWebhookHandler(finder, reconciler)

	body := []byte(`{"action":"opened","repository":{"full_name":"acme/site"},"issue":{"number":1,"title":"T"}}`)
	rec := postWebhook(t, handler.HandleGitHub, body, map[string]string{"X-GitHub-Event": "issues"})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
