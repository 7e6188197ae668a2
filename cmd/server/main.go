package main

import (
	"log"
	"net/http"

	"github.com/taskmirror/taskmirror/internal/analyzer"
	"github.com/taskmirror/taskmirror/internal/api"
	"github.com/taskmirror/taskmirror/internal/config"
	"github.com/taskmirror/taskmirror/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := store.DB()
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	var analyzerClient analyzer.Client
	if client := analyzer.NewHTTPClient(cfg.Analyzer); client != nil {
		analyzerClient = client
		log.Printf("Content analyzer enabled at %s", cfg.Analyzer.BaseURL)
	}

	router := api.NewRouter(api.RouterConfig{
		DB:       db,
		Analyzer: analyzerClient,
	})

	log.Printf("TaskMirror starting on port %s (%s)", cfg.Port, cfg.Environment)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
