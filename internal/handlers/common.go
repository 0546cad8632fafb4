package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/labeler/internal/models"
	"github.com/lehigh-university-libraries/labeler/internal/review"
	"github.com/lehigh-university-libraries/labeler/internal/storage"
	"github.com/lehigh-university-libraries/labeler/internal/workflow"
)

// CropLister lists the labeling queue.
type CropLister interface {
	List(ctx context.Context) (*models.CropList, error)
}

type Handler struct {
	sessionStore *storage.SessionStore
	coordinator  *workflow.Coordinator
	crops        CropLister
}

func New(store *storage.SessionStore, coordinator *workflow.Coordinator, crops CropLister) *Handler {
	return &Handler{
		sessionStore: store,
		coordinator:  coordinator,
		crops:        crops,
	}
}

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/crops", h.HandleCrops)

	mux.HandleFunc("GET /api/sessions", h.HandleListSessions)
	mux.HandleFunc("POST /api/sessions", h.HandleOpenSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleCloseSession)

	mux.HandleFunc("PATCH /api/sessions/{id}/incoming", h.handleEdit(review.TargetIncoming))
	mux.HandleFunc("PATCH /api/sessions/{id}/matched", h.handleEdit(review.TargetMatched))
	mux.HandleFunc("PUT /api/sessions/{id}/labeler", h.HandleSetLabeler)
	mux.HandleFunc("PUT /api/sessions/{id}/difficult", h.HandleSetDifficult)
	mux.HandleFunc("POST /api/sessions/{id}/pick-points/{target}", h.HandleAddPickPoint)
	mux.HandleFunc("DELETE /api/sessions/{id}/pick-points/{target}", h.HandleClearPickPoints)

	mux.HandleFunc("POST /api/sessions/{id}/commit", h.HandleCommit)
	mux.HandleFunc("POST /api/sessions/{id}/database", h.HandleAddToDatabase)
	mux.HandleFunc("DELETE /api/sessions/{id}/database", h.HandleRemoveFromDatabase)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Warn(message, "status", code)
	}
	http.Error(w, message, code)
}

// writeFailure maps a coordinator or session error to a status code.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	h.writeError(w, err.Error(), errorStatus(err))
}

func errorStatus(err error) int {
	var transportErr *workflow.TransportError
	switch {
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	case errors.Is(err, review.ErrReadOnlyField):
		return http.StatusBadRequest
	case errors.Is(err, review.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, review.ErrCommitInFlight),
		errors.Is(err, review.ErrNotReady),
		errors.Is(err, workflow.ErrAlreadyPersisted),
		errors.Is(err, workflow.ErrNotPersisted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (string, *review.Session, bool) {
	sessionID := r.PathValue("id")
	session, exists := h.sessionStore.Get(sessionID)
	if !exists || session.State() == review.StateClosed {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return sessionID, nil, false
	}
	return sessionID, session, true
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
