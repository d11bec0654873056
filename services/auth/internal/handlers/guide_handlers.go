package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/touristalert/backend/services/auth/internal/domain"
)

// Admin handlers

func (h *Handlers) ListPendingGuides(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	guides, err := h.guides.ListPendingGuides(r.Context(), admin, parsePagination(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(guides),
		"guides":  guides,
	})
}

// ListGuides accepts an optional ?status= filter
func (h *Handlers) ListGuides(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	guides, err := h.guides.ListGuides(r.Context(), admin, r.URL.Query().Get("status"), parsePagination(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(guides),
		"guides":  guides,
	})
}

func (h *Handlers) GetGuide(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid guide ID", "INVALID_INPUT", "id")
		return
	}
	admin, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	guide, err := h.guides.GetGuide(r.Context(), admin, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"guide":   guide,
	})
}

// DecideGuide approves or rejects a pending guide application
func (h *Handlers) DecideGuide(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid guide ID", "INVALID_INPUT", "id")
		return
	}
	admin, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	var req domain.GuideDecisionRequest
	if !decode(w, r, &req) {
		return
	}

	guide, err := h.guides.Decide(r.Context(), admin, id, &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	message := "Guide approved successfully. User can now login."
	if req.Action == domain.ActionReject {
		message = "Guide rejected."
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": message,
		"user":    guide,
	})
}
