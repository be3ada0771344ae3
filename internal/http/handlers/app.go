package handlers

import (
	"encoding/json"
	"net/http"

	"postforge/internal/artifact"
	"postforge/internal/infra"
	"postforge/internal/pipeline"
	"postforge/internal/publish"
)

type App struct {
	Orchestrator *pipeline.Orchestrator
	Runner       *pipeline.Runner
	Publisher    publish.Publisher
	Store        *artifact.Store
	Logger       infra.Logger
}

func NewApp(orch *pipeline.Orchestrator, runner *pipeline.Runner, pub publish.Publisher, store *artifact.Store, logger infra.Logger) *App {
	return &App{
		Orchestrator: orch,
		Runner:       runner,
		Publisher:    pub,
		Store:        store,
		Logger:       logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}
