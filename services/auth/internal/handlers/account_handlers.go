package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/touristalert/backend/services/auth/internal/domain"
)

// Register handles self-service sign-up for tourists and guides
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.accounts.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Registration successful! Please check your email for OTP verification.",
		"userId":  res.AccountID,
		"email":   res.Email,
		"role":    res.Role,
	})
}

// VerifyOTP handles registration OTP verification
func (h *Handlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeServiceError(w, r, err)
		return
	}

	id, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Must be a valid UUID.", "VALIDATION_ERROR", "userId")
		return
	}

	res, err := h.accounts.VerifyRegistrationOTP(r.Context(), id, req.OTP)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response := map[string]interface{}{
		"success": true,
		"message": "Email verified successfully!",
		"user":    res.Account,
	}
	switch {
	case res.Tokens != nil:
		response["message"] = "Email verified successfully! You can now login."
		response["tokens"] = res.Tokens
	case res.Account.Role == domain.RoleGuide && !res.Account.Active:
		response["message"] = "Email verified successfully! Your guide account is pending admin approval."
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.accounts.ResendRegistrationOTP(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "OTP has been resent to your email.",
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.accounts.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Login successful",
		"user":    res.Account,
		"tokens":  res.Tokens,
	})
}

// Logout blacklists the supplied refresh token
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.accounts.Logout(r.Context(), req.Refresh); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Successfully logged out",
	})
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeServiceError(w, r, err)
		return
	}

	pair, err := h.accounts.Refresh(r.Context(), req.Refresh)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    account,
	})
}
