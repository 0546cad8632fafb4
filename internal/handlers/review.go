package handlers

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/lehigh-university-libraries/labeler/internal/models"
	"github.com/lehigh-university-libraries/labeler/internal/review"
)

func (h *Handler) respondView(w http.ResponseWriter, sessionID string, session *review.Session) {
	h.writeJSON(w, sessionResponse{ID: sessionID, Session: session.View()})
}

// handleEdit applies a {field: value} object to one record. Unknown field
// names are kept as passthrough keys.
func (h *Handler) handleEdit(target review.Target) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, session, ok := h.getSessionOrError(w, r)
		if !ok {
			return
		}

		var fields map[string]string
		if !h.decodeJSON(w, r, &fields) {
			return
		}

		names := make([]string, 0, len(fields))
		for name := range fields {
			if name == models.FieldEmbeddingID {
				h.writeFailure(w, fmt.Errorf("%w: %s", review.ErrReadOnlyField, name))
				return
			}
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if err := session.Edit(target, name, fields[name]); err != nil {
				h.writeFailure(w, err)
				return
			}
		}
		h.respondView(w, sessionID, session)
	}
}

func (h *Handler) HandleSetLabeler(w http.ResponseWriter, r *http.Request) {
	sessionID, session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		LabelerName string `json:"labeler_name"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}

	if err := session.SetLabelerName(request.LabelerName); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.respondView(w, sessionID, session)
}

func (h *Handler) HandleSetDifficult(w http.ResponseWriter, r *http.Request) {
	sessionID, session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Difficult bool `json:"difficult"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}

	if err := session.SetDifficult(request.Difficult); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.respondView(w, sessionID, session)
}

func (h *Handler) HandleAddPickPoint(w http.ResponseWriter, r *http.Request) {
	sessionID, session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	target, err := review.ParseTarget(r.PathValue("target"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// x and y are fractions of the displayed crop's width and height
	var point struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if !h.decodeJSON(w, r, &point) {
		return
	}
	if point.X == nil || point.Y == nil {
		h.writeError(w, "x and y are required", http.StatusBadRequest)
		return
	}

	if err := session.AddPickPoint(target, *point.X, *point.Y); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.respondView(w, sessionID, session)
}

func (h *Handler) HandleClearPickPoints(w http.ResponseWriter, r *http.Request) {
	sessionID, session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	target, err := review.ParseTarget(r.PathValue("target"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := session.ClearPickPoints(target); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.respondView(w, sessionID, session)
}
