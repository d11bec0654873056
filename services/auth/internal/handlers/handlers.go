package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/touristalert/backend/pkg/auth"
	"github.com/touristalert/backend/pkg/logger"
	"github.com/touristalert/backend/services/auth/internal/credentials"
	"github.com/touristalert/backend/services/auth/internal/domain"
	"github.com/touristalert/backend/services/auth/internal/service"
)

type ctxKey string

const claimsKey ctxKey = "claims"

type Handlers struct {
	accounts service.AccountService
	resets   service.PasswordResetService
	guides   service.GuideService
	creds    credentials.Service
}

func New(
	accounts service.AccountService,
	resets service.PasswordResetService,
	guides service.GuideService,
	creds credentials.Service,
) *Handlers {
	return &Handlers{
		accounts: accounts,
		resets:   resets,
		guides:   guides,
		creds:    creds,
	}
}

// Routes mounts the account API. otpLimit wraps every route that sends or
// checks a one-time code; nil disables it.
func (h *Handlers) Routes(r chi.Router, otpLimit func(http.Handler) http.Handler) {
	if otpLimit == nil {
		otpLimit = func(next http.Handler) http.Handler { return next }
	}

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Post("/refresh", h.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(otpLimit)
		r.Post("/verify-otp", h.VerifyOTP)
		r.Post("/resend-otp", h.ResendOTP)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/verify-reset-otp", h.VerifyResetOTP)
		r.Post("/reset-password", h.ResetPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.RequireJWT)
		r.Get("/me", h.Me)
		r.Get("/users/me", h.Me)
		r.Patch("/users/me", h.UpdateProfile)
		r.Get("/guides/me", h.GetGuideProfile)
		r.Patch("/guides/me", h.UpdateGuideProfile)

		r.Get("/users", h.ListUsers)
		r.Get("/users/{id}", h.GetUser)
		r.Patch("/users/{id}", h.UpdateUser)
		r.Delete("/users/{id}", h.DeleteUser)

		r.Get("/guides/pending", h.ListPendingGuides)
		r.Get("/guides", h.ListGuides)
		r.Get("/guides/{id}", h.GetGuide)
		r.Post("/guides/{id}/approve", h.DecideGuide)
	})
}

// RequireJWT accepts a bearer access token and stores its claims on the
// request context.
func (h *Handlers) RequireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.", "UNAUTHORIZED", "")
			return
		}

		claims, err := h.creds.ParseAccess(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken.Message, "INVALID_TOKEN", "")
			return
		}

		ctx := context.WithValue(r.Context(), logger.AccountIDKey, claims.Subject)
		ctx = context.WithValue(ctx, claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

// currentAccount loads the caller so role and flags come from the store,
// not from a possibly stale token.
func (h *Handlers) currentAccount(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.", "UNAUTHORIZED", "")
		return nil, false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken.Message, "INVALID_TOKEN", "")
		return nil, false
	}
	account, err := h.accounts.CurrentUser(r.Context(), id)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken.Message, "INVALID_TOKEN", "")
			return nil, false
		}
		writeServiceError(w, r, err)
		return nil, false
	}
	return account, true
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT", "")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, code, field string) {
	response := map[string]interface{}{
		"success": false,
		"error":   message,
		"code":    code,
	}
	if field != "" {
		response["field"] = field
	}
	writeJSON(w, statusCode, response)
}

type errorMapping struct {
	status int
	code   string
}

var errorStatus = map[domain.Kind]errorMapping{
	domain.KindValidation:            {http.StatusBadRequest, "VALIDATION_ERROR"},
	domain.KindMismatch:              {http.StatusBadRequest, "PASSWORD_MISMATCH"},
	domain.KindDuplicate:             {http.StatusBadRequest, "DUPLICATE"},
	domain.KindNotFound:              {http.StatusNotFound, "NOT_FOUND"},
	domain.KindAlreadyVerified:       {http.StatusBadRequest, "ALREADY_VERIFIED"},
	domain.KindAlreadyProcessed:      {http.StatusBadRequest, "ALREADY_PROCESSED"},
	domain.KindInvalidCode:           {http.StatusBadRequest, "INVALID_OTP"},
	domain.KindExpired:               {http.StatusBadRequest, "OTP_EXPIRED"},
	domain.KindInvalidOrExpired:      {http.StatusBadRequest, "INVALID_OR_EXPIRED_OTP"},
	domain.KindInvalidOrExpiredToken: {http.StatusBadRequest, "INVALID_OR_EXPIRED_TOKEN"},
	domain.KindForbidden:             {http.StatusForbidden, "FORBIDDEN"},
	domain.KindDelivery:              {http.StatusInternalServerError, "EMAIL_DELIVERY_FAILED"},
	domain.KindInvalidCredentials:    {http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	domain.KindInvalidToken:          {http.StatusUnauthorized, "INVALID_TOKEN"},
}

// writeServiceError maps a workflow error onto a status and stable code.
// Anything outside the taxonomy is logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *domain.Error
	if errors.As(err, &derr) {
		if m, ok := errorStatus[derr.Kind]; ok {
			writeError(w, m.status, derr.Message, m.code, derr.Field)
			return
		}
	}
	logger.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
	writeError(w, http.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR", "")
}

func parsePagination(r *http.Request) domain.Page {
	page := domain.Page{Limit: 20}

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			page.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			page.Offset = n
		}
	}

	return page
}
