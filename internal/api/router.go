package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/taskmirror/taskmirror/internal/analyzer"
	"github.com/taskmirror/taskmirror/internal/store"
	"github.com/taskmirror/taskmirror/internal/webhook"
	"github.com/taskmirror/taskmirror/internal/ws"
)

var startTime = time.Now()

type HealthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// RouterConfig carries the collaborators the router wires into handlers.
// Analyzer may be nil when enrichment is disabled.
type RouterConfig struct {
	DB       *sql.DB
	Analyzer analyzer.Client
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	hub := ws.NewHub()
	go hub.Run()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", handleHealth)
	r.Get("/", handleRoot)
	r.Handle("/ws", &ws.Handler{Hub: hub})

	integrations := store.NewIntegrationStore(cfg.DB)
	reconciler := webhook.NewReconciler(
		store.NewTaskStore(cfg.DB),
		store.NewCalendarEventStore(cfg.DB),
		store.NewProjectStore(cfg.DB),
	)
	reconciler.Assignments = store.NewAssignmentStore(cfg.DB)
	reconciler.Analyzer = cfg.Analyzer
	reconciler.Hub = hub

	webhooks := NewWebhookHandler(integrations, reconciler)
	webhooks.Deliveries = store.NewDeliveryStore(cfg.DB)

	r.Route("/api/webhooks", func(r chi.Router) {
		r.Post("/github", webhooks.HandleGitHub)
		r.Post("/slack", webhooks.HandleSlack)
		r.Post("/notion", webhooks.HandleNotion)
		r.Post("/gcal", webhooks.HandleGoogleCalendar)
		r.Post("/zapier", webhooks.HandleZapier)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Version:   getVersion(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	sendJSON(w, http.StatusOK, resp)
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	sendJSON(w, http.StatusOK, map[string]string{
		"name":   "TaskMirror",
		"health": "/health",
	})
}

func getVersion() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return "dev"
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
