package handlers

import (
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/labeler/internal/models"
	"github.com/lehigh-university-libraries/labeler/internal/review"
	"github.com/lehigh-university-libraries/labeler/internal/workflow"
)

type commitResponse struct {
	Outcome *workflow.Outcome `json:"outcome"`
	// Session is the next crop's session, registered under the same id.
	// Nil once the review is over.
	Session *review.View `json:"session"`
}

// commitFailure is sent when the commit went through but the next crop
// could not be opened, so the client can retry opening outcome.next.
type commitFailure struct {
	Error   string            `json:"error"`
	Outcome *workflow.Outcome `json:"outcome"`
}

// HandleCommit commits the session and, on advance, replaces it with a
// session for the next crop under the same id.
func (h *Handler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	sessionID, session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Action string `json:"action"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}
	action, err := models.ParseAction(request.Action)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	next, outcome, err := h.coordinator.Advance(r.Context(), session, action)
	if err != nil {
		if outcome != nil {
			// committed, but the next crop could not be opened
			h.sessionStore.Delete(sessionID)
			slog.Error("Unable to open next crop", "session_id", sessionID, "next", outcome.Next.Key(), "err", err)
			h.writeJSONStatus(w, errorStatus(err), commitFailure{Error: err.Error(), Outcome: outcome})
			return
		}
		h.writeFailure(w, err)
		return
	}

	response := commitResponse{Outcome: outcome}
	if next != nil {
		h.sessionStore.Set(sessionID, next)
		view := next.View()
		response.Session = &view
	} else {
		h.sessionStore.Delete(sessionID)
	}
	h.writeJSON(w, response)
}

func (h *Handler) HandleAddToDatabase(w http.ResponseWriter, r *http.Request) {
	sessionID, session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	if _, err := h.coordinator.AddToDatabase(r.Context(), session); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.respondView(w, sessionID, session)
}

func (h *Handler) HandleRemoveFromDatabase(w http.ResponseWriter, r *http.Request) {
	sessionID, session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	if err := h.coordinator.RemoveFromDatabase(r.Context(), session); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.respondView(w, sessionID, session)
}
