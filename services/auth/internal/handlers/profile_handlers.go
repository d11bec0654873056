package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/touristalert/backend/services/auth/internal/domain"
)

// UpdateProfile edits fullName, phoneNumber and photo of the caller
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	var req domain.UpdateProfileRequest
	if !decode(w, r, &req) {
		return
	}

	updated, err := h.accounts.UpdateProfile(r.Context(), account.ID, &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Profile updated successfully",
		"data":    updated,
	})
}

func (h *Handlers) GetGuideProfile(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	guide, err := h.guides.GetOwnProfile(r.Context(), account)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    guide,
	})
}

func (h *Handlers) UpdateGuideProfile(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	var req domain.UpdateGuideProfileRequest
	if !decode(w, r, &req) {
		return
	}

	guide, err := h.guides.UpdateOwnProfile(r.Context(), account, &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Guide profile updated successfully",
		"data":    guide,
	})
}

// Admin user management

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	users, err := h.accounts.ListUsers(r.Context(), admin, parsePagination(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(users),
		"data":    users,
	})
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	admin, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	user, err := h.accounts.GetUser(r.Context(), admin, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    user,
	})
}

func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	admin, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	var req domain.AdminUpdateUserRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.accounts.UpdateUser(r.Context(), admin, id, &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "User updated successfully",
		"data":    user,
	})
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	admin, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	deleted, err := h.accounts.DeleteUser(r.Context(), admin, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "User " + deleted.Email + " deleted successfully",
	})
}

func userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID", "INVALID_INPUT", "id")
		return uuid.Nil, false
	}
	return id, true
}
