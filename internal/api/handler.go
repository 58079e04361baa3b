// Package api provides the HTTP handlers and routing for the uploader service.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iMokhles/candidate-pdf-uploader/internal/apperrors"
	"github.com/iMokhles/candidate-pdf-uploader/internal/health"
	"github.com/iMokhles/candidate-pdf-uploader/internal/pipeline"
	"github.com/iMokhles/candidate-pdf-uploader/internal/settings"
)

// maxRequestBodySize limits request bodies to 1MB.
const maxRequestBodySize = 1 << 20

// Runner runs one submission through the pipeline.
type Runner interface {
	Run(ctx context.Context, sub pipeline.Submission) pipeline.Outcome
}

// Handler contains the HTTP handlers of the uploader API.
type Handler struct {
	runner Runner
	store  settings.Store
	health *health.Checker
}

// NewHandler creates a new API handler.
func NewHandler(runner Runner, store settings.Store, healthChecker *health.Checker) *Handler {
	return &Handler{
		runner: runner,
		store:  store,
		health: healthChecker,
	}
}

// CreateSubmission handles POST /v1/submissions.
// It answers 200 with the outcome on success and 422 with the outcome on failure.
func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var sub pipeline.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// A client hanging up does not abandon a run half-way.
	outcome := h.runner.Run(context.WithoutCancel(r.Context()), sub)

	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, outcome)
}

// GetSettings handles GET /v1/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, settings.Load(h.store))
}

// PutSettings handles PUT /v1/settings. It saves the spreadsheet, sheet and
// folder; a credentialsPath in the body is ignored.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var in settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := settings.Save(h.store, in); err != nil {
		h.handleError(w, r, err)
		return
	}

	slog.Info("Settings saved", "spreadsheetId", in.SpreadsheetID, "sheetName", in.SheetName, "driveFolderId", in.DriveFolderID)
	writeJSON(w, http.StatusOK, settings.Load(h.store))
}

// credentialsRequest is the body of PUT /v1/settings/credentials.
type credentialsRequest struct {
	Path string `json:"path"`
}

// PutCredentials handles PUT /v1/settings/credentials.
func (h *Handler) PutCredentials(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var in credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := settings.SetCredentialsPath(h.store, in.Path); err != nil {
		h.handleError(w, r, err)
		return
	}

	slog.Info("Credentials path saved", "path", in.Path)
	writeJSON(w, http.StatusOK, settings.Load(h.store))
}

// Livez handles GET /livez. It does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.health.Liveness(r.Context()))
}

// Readyz handles GET /readyz. It answers 503 until credentials are
// configured and the settings store is usable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleError maps service errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	writeError(w, status, err.Error())
}
