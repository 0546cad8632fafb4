package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/labeler/internal/models"
	"github.com/lehigh-university-libraries/labeler/internal/review"
)

type sessionResponse struct {
	ID        string      `json:"session_id"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
	Session   review.View `json:"session"`
}

func (h *Handler) HandleCrops(w http.ResponseWriter, r *http.Request) {
	list, err := h.crops.List(r.Context())
	if err != nil {
		h.writeError(w, "Failed to list crops: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.writeJSON(w, list)
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	entries := h.sessionStore.List()
	sessions := make([]sessionResponse, 0, len(entries))
	for _, entry := range entries {
		createdAt := entry.CreatedAt
		sessions = append(sessions, sessionResponse{
			ID:        entry.ID,
			CreatedAt: &createdAt,
			Session:   entry.Session.View(),
		})
	}
	h.writeJSON(w, sessions)
}

// HandleOpenSession looks up a crop and starts reviewing it. The body is a
// queue entry; bounding_box may be a string or a number array.
func (h *Handler) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	var crop models.Crop
	if !h.decodeJSON(w, r, &crop) {
		return
	}
	if crop.SourceURI == "" {
		h.writeError(w, "original_s3_uri is required", http.StatusBadRequest)
		return
	}

	session, err := h.coordinator.Open(r.Context(), crop)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	sessionID := h.sessionStore.Add(session)
	slog.Info("Review session opened", "session_id", sessionID, "crop", crop.Key(), "provenance", session.Provenance())
	h.writeJSONStatus(w, http.StatusCreated, sessionResponse{ID: sessionID, Session: session.View()})
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, sessionResponse{ID: sessionID, Session: session.View()})
}

func (h *Handler) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, exists := h.sessionStore.Get(sessionID); !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	h.sessionStore.Delete(sessionID)
	w.WriteHeader(http.StatusNoContent)
}
