package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/checkin-runner/internal/run"
	"github.com/shehryarbajwa/checkin-runner/pkg/models"
)

// RunService is the part of the run manager the API exposes
type RunService interface {
	Start(ctx context.Context, req models.CreateRunRequest) (*models.Run, error)
	Get(id string) (*models.Run, error)
	List(status models.RunStatus) []*models.Run
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	runs   RunService
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(runs RunService, logger *zap.Logger) *Handler {
	return &Handler{
		runs:   runs,
		logger: logger,
	}
}

// CreateRun handles POST /v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRunRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	started, err := h.runs.Start(r.Context(), req)
	if errors.Is(err, run.ErrRunInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Info("run triggered over http", zap.String("run", started.ID), zap.String("remote", r.RemoteAddr))
	writeJSON(w, http.StatusCreated, started)
}

// GetRun handles GET /v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	found, err := h.runs.Get(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, found)
}

// ListRuns handles GET /v1/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	status := models.RunStatus(r.URL.Query().Get("status"))

	runs := h.runs.List(status)
	if runs == nil {
		runs = []*models.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetDebugURL handles GET /v1/runs/{id}/debug
func (h *Handler) GetDebugURL(w http.ResponseWriter, r *http.Request) {
	found, err := h.runs.Get(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"debuggerUrl": fmt.Sprintf("ws://%s/v1/runs/%s/ws", r.Host, found.ID),
		"runId":       found.ID,
		"status":      string(found.Status),
	})
}

// GetRunScreenshot handles GET /v1/runs/{id}/screenshot
func (h *Handler) GetRunScreenshot(w http.ResponseWriter, r *http.Request) {
	found, err := h.runs.Get(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	path := found.LastScreenshot()
	if path == "" {
		http.Error(w, "Run has no screenshots", http.StatusNotFound)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		h.logger.Warn("failed to read screenshot", zap.String("path", path), zap.Error(err))
		http.Error(w, "Screenshot unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Write(data)
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
