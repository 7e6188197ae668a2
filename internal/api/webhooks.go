package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/taskmirror/taskmirror/internal/models"
	"github.com/taskmirror/taskmirror/internal/store"
	"github.com/taskmirror/taskmirror/internal/webhook"
)

const maxWebhookBodyBytes = 1 << 20

// IntegrationFinder resolves the integration that owns a delivery from the
// remote resource identifier embedded in it.
type IntegrationFinder interface {
	FindByRepository(ctx context.Context, fullName string) (*store.Integration, error)
	FindByTeamID(ctx context.Context, teamID string) (*store.Integration, error)
	FindByDatabaseID(ctx context.Context, databaseID string) (*store.Integration, error)
	FindByCalendarID(ctx context.Context, calendarID string) (*store.Integration, error)
}

// EventReconciler merges canonical events into application state.
type EventReconciler interface {
	Reconcile(ctx context.Context, event webhook.ExternalEvent, integration *store.Integration) (*webhook.Result, error)
}

// DeliveryRecorder keeps an audit trail of inbound deliveries.
type DeliveryRecorder interface {
	Record(ctx context.Context, provider string, eventType, action *string, payload json.RawMessage) (*store.WebhookDelivery, error)
}

// WebhookHandler serves the inbound provider endpoints. Collaborators are
// injected; Deliveries and Now are optional.
type WebhookHandler struct {
	Integrations IntegrationFinder
	Reconciler   EventReconciler
	Registry     *webhook.Registry
	Deliveries   DeliveryRecorder
	Now          func() time.Time
}

// NewWebhookHandler wires a handler over the default event routing table.
func NewWebhookHandler(integrations IntegrationFinder, reconciler EventReconciler) *WebhookHandler {
	return &WebhookHandler{
		Integrations: integrations,
		Reconciler:   reconciler,
		Registry:     webhook.DefaultRegistry(),
		Now:          time.Now,
	}
}

// HandleGitHub processes code-host deliveries: issues, pull requests, pushes.
func (h *WebhookHandler) HandleGitHub(w http.ResponseWriter, r *http.Request) {
	body, err := readWebhookBody(r)
	if err != nil {
		h.respondError(w, models.ProviderGitHub, "", &webhook.ValidationError{Provider: models.ProviderGitHub, Reason: "unreadable body"})
		return
	}

	var envelope struct {
		Action     string `json:"action"`
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.respondError(w, models.ProviderGitHub, "", &webhook.ValidationError{Provider: models.ProviderGitHub, Reason: "malformed JSON body"})
		return
	}
	if envelope.Repository.FullName == "" {
		h.respondError(w, models.ProviderGitHub, envelope.Action, &webhook.ValidationError{Provider: models.ProviderGitHub, Reason: "payload missing repository full_name"})
		return
	}

	integration, err := h.Integrations.FindByRepository(r.Context(), envelope.Repository.FullName)
	if err != nil {
		h.respondError(w, models.ProviderGitHub, envelope.Action, integrationLookupError(models.ProviderGitHub, envelope.Repository.FullName, err))
		return
	}

	secret := integration.ConfigString("webhook_secret")
	if err := webhook.VerifyGitHubSignature(secret, body, r.Header.Get("X-Hub-Signature-256")); err != nil {
		h.respondError(w, models.ProviderGitHub, envelope.Action, &webhook.AuthError{Provider: models.ProviderGitHub, Reason: err.Error()})
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	h.recordDelivery(r.Context(), models.ProviderGitHub, eventType, envelope.Action, body)

	results, err := h.dispatch(r.Context(), models.ProviderGitHub, eventType, envelope.Action, body, integration)
	if err != nil {
		if errors.Is(err, webhook.ErrNotHandled) {
			sendJSON(w, http.StatusOK, map[string]string{"message": "Event ignored"})
			return
		}
		h.respondError(w, models.ProviderGitHub, envelope.Action, err)
		return
	}

	response := map[string]interface{}{"message": "Webhook processed"}
	for _, result := range results {
		if result.Task != nil {
			response["taskId"] = result.Task.ID
			break
		}
	}
	sendJSON(w, http.StatusOK, response)
}

// HandleSlack processes chat deliveries: the URL verification handshake,
// message commands, and reactions.
func (h *WebhookHandler) HandleSlack(w http.ResponseWriter, r *http.Request) {
	body, err := readWebhookBody(r)
	if err != nil {
		h.respondError(w, models.ProviderSlack, "", &webhook.ValidationError{Provider: models.ProviderSlack, Reason: "unreadable body"})
		return
	}

	var envelope struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
		TeamID    string `json:"team_id"`
		Event     struct {
			Type string `json:"type"`
		} `json:"event"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.respondError(w, models.ProviderSlack, "", &webhook.ValidationError{Provider: models.ProviderSlack, Reason: "malformed JSON body"})
		return
	}

	// Slack sends the handshake when the endpoint URL is first configured,
	// before any integration state exists.
	if envelope.Type == "url_verification" {
		sendJSON(w, http.StatusOK, map[string]string{"challenge": envelope.Challenge})
		return
	}

	if envelope.TeamID == "" {
		h.respondError(w, models.ProviderSlack, envelope.Event.Type, &webhook.ValidationError{Provider: models.ProviderSlack, Reason: "payload missing team_id"})
		return
	}

	integration, err := h.Integrations.FindByTeamID(r.Context(), envelope.TeamID)
	if err != nil {
		h.respondError(w, models.ProviderSlack, envelope.Event.Type, integrationLookupError(models.ProviderSlack, envelope.TeamID, err))
		return
	}

	verifier := webhook.NewSlackVerifier(integration.ConfigString("signing_secret"))
	if h.Now != nil {
		verifier = verifier.WithNow(h.Now)
	}
	if err := verifier.Verify(body, r.Header.Get("x-slack-request-timestamp"), r.Header.Get("x-slack-signature")); err != nil {
		h.respondError(w, models.ProviderSlack, envelope.Event.Type, &webhook.AuthError{Provider: models.ProviderSlack, Reason: err.Error()})
		return
	}

	h.recordDelivery(r.Context(), models.ProviderSlack, envelope.Type, envelope.Event.Type, body)

	if _, err := h.dispatch(r.Context(), models.ProviderSlack, envelope.Type, envelope.Event.Type, body, integration); err != nil && !errors.Is(err, webhook.ErrNotHandled) {
		h.respondError(w, models.ProviderSlack, envelope.Event.Type, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleNotion processes docs-workspace page deliveries. Authenticity is a
// database id match against a connected integration, which is weaker than a
// signature; there is no Notion-issued signing secret to check.
func (h *WebhookHandler) HandleNotion(w http.ResponseWriter, r *http.Request) {
	body, err := readWebhookBody(r)
	if err != nil {
		h.respondError(w, models.ProviderNotion, "", &webhook.ValidationError{Provider: models.ProviderNotion, Reason: "unreadable body"})
		return
	}

	var envelope struct {
		Type       string `json:"type"`
		Action     string `json:"action"`
		DatabaseID string `json:"database_id"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.respondError(w, models.ProviderNotion, "", &webhook.ValidationError{Provider: models.ProviderNotion, Reason: "malformed JSON body"})
		return
	}
	if envelope.DatabaseID == "" {
		h.respondError(w, models.ProviderNotion, envelope.Action, &webhook.ValidationError{Provider: models.ProviderNotion, Reason: "payload missing database_id"})
		return
	}

	integration, err := h.Integrations.FindByDatabaseID(r.Context(), envelope.DatabaseID)
	if err != nil {
		h.respondError(w, models.ProviderNotion, envelope.Action, integrationLookupError(models.ProviderNotion, envelope.DatabaseID, err))
		return
	}

	eventType := envelope.Type
	if eventType == "" {
		eventType = "page"
	}
	h.recordDelivery(r.Context(), models.ProviderNotion, eventType, envelope.Action, body)

	if _, err := h.dispatch(r.Context(), models.ProviderNotion, eventType, envelope.Action, body, integration); err != nil && !errors.Is(err, webhook.ErrNotHandled) {
		h.respondError(w, models.ProviderNotion, envelope.Action, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleGoogleCalendar processes calendar deliveries. Same configuration-field
// authenticity model as Notion.
func (h *WebhookHandler) HandleGoogleCalendar(w http.ResponseWriter, r *http.Request) {
	body, err := readWebhookBody(r)
	if err != nil {
		h.respondError(w, models.ProviderGoogleCalendar, "", &webhook.ValidationError{Provider: models.ProviderGoogleCalendar, Reason: "unreadable body"})
		return
	}

	var envelope struct {
		Action     string `json:"action"`
		CalendarID string `json:"calendar_id"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.respondError(w, models.ProviderGoogleCalendar, "", &webhook.ValidationError{Provider: models.ProviderGoogleCalendar, Reason: "malformed JSON body"})
		return
	}
	if envelope.CalendarID == "" {
		h.respondError(w, models.ProviderGoogleCalendar, envelope.Action, &webhook.ValidationError{Provider: models.ProviderGoogleCalendar, Reason: "payload missing calendar_id"})
		return
	}

	integration, err := h.Integrations.FindByCalendarID(r.Context(), envelope.CalendarID)
	if err != nil {
		h.respondError(w, models.ProviderGoogleCalendar, envelope.Action, integrationLookupError(models.ProviderGoogleCalendar, envelope.CalendarID, err))
		return
	}

	h.recordDelivery(r.Context(), models.ProviderGoogleCalendar, "event", envelope.Action, body)

	if _, err := h.dispatch(r.Context(), models.ProviderGoogleCalendar, "event", envelope.Action, body, integration); err != nil && !errors.Is(err, webhook.ErrNotHandled) {
		h.respondError(w, models.ProviderGoogleCalendar, envelope.Action, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleZapier accepts and logs automation-relay deliveries. No validation
// beyond JSON parsing; the relay's contract is accept and log.
func (h *WebhookHandler) HandleZapier(w http.ResponseWriter, r *http.Request) {
	body, err := readWebhookBody(r)
	if err != nil {
		h.respondError(w, models.ProviderZapier, "", &webhook.ValidationError{Provider: models.ProviderZapier, Reason: "unreadable body"})
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		h.respondError(w, models.ProviderZapier, "", &webhook.ValidationError{Provider: models.ProviderZapier, Reason: "malformed JSON body"})
		return
	}

	eventType, _ := payload["event_type"].(string)
	log.Printf("webhook: zapier delivery received: event_type=%q", eventType)
	h.recordDelivery(r.Context(), models.ProviderZapier, eventType, "", body)

	sendJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// dispatch routes a verified delivery and reconciles every resulting event.
// References within one delivery are independent: a failing reconciliation is
// logged and the rest still run. The first error is kept so the boundary can
// report a processing failure when nothing succeeded.
func (h *WebhookHandler) dispatch(ctx context.Context, provider, eventType, action string, body []byte, integration *store.Integration) ([]*webhook.Result, error) {
	normalize, err := h.Registry.Route(provider, eventType, action)
	if err != nil {
		return nil, err
	}

	events, err := normalize(body)
	if err != nil {
		return nil, err
	}

	var results []*webhook.Result
	var firstErr error
	for _, event := range events {
		result, err := h.Reconciler.Reconcile(ctx, event, integration)
		if err != nil {
			log.Printf("webhook: %s %s: reconcile failed for %s: %v", provider, action, event.ExternalID(), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, result)
	}

	if len(results) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (h *WebhookHandler) recordDelivery(ctx context.Context, provider, eventType, action string, body []byte) {
	if h.Deliveries == nil {
		return
	}

	var eventTypeRef, actionRef *string
	if eventType != "" {
		eventTypeRef = &eventType
	}
	if action != "" {
		actionRef = &action
	}
	if _, err := h.Deliveries.Record(ctx, provider, eventTypeRef, actionRef, json.RawMessage(body)); err != nil {
		log.Printf("webhook: %s: failed to record delivery: %v", provider, err)
	}
}

func (h *WebhookHandler) respondError(w http.ResponseWriter, provider, action string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("webhook: %s %s: %v", provider, action, err)
	}
	sendJSON(w, status, map[string]string{"error": http.StatusText(status)})
}

// statusForError maps the webhook error taxonomy onto HTTP statuses. Error
// details stay in the log; responses carry only the status text so secret
// material can never leak.
func statusForError(err error) int {
	var authErr *webhook.AuthError
	var validationErr *webhook.ValidationError
	var notFoundErr *webhook.NotFoundError

	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func integrationLookupError(provider, resource string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &webhook.NotFoundError{Provider: provider, Resource: resource}
	}
	return &webhook.DependencyError{Provider: provider, Action: "integration lookup", Err: err}
}

func readWebhookBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
}
