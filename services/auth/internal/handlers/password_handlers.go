package handlers

import (
	"net/http"

	"github.com/touristalert/backend/services/auth/internal/domain"
)

// ForgotPassword answers identically whether or not the email is known
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.resets.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "If this email exists, an OTP has been sent.",
	})
}

func (h *Handlers) VerifyResetOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyResetOTPRequest
	if !decode(w, r, &req) {
		return
	}

	token, err := h.resets.VerifyResetOTP(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "OTP verified successfully. Use the reset token to set new password.",
		"resetToken": token,
	})
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.resets.ResetPassword(r.Context(), &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Password reset successful. You can now login with your new password.",
	})
}
