package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/touristalert/backend/pkg/auth"
	"github.com/touristalert/backend/pkg/logger"
	"github.com/touristalert/backend/services/gateway/internal/proxy"
)

type Handlers struct {
	authProxy *proxy.ServiceProxy
	signer    *auth.Signer
}

func New(authProxy *proxy.ServiceProxy, signer *auth.Signer) *Handlers {
	return &Handlers{
		authProxy: authProxy,
		signer:    signer,
	}
}

// Routes mounts the account API under the router. Admin areas need an ADMIN
// access token at the edge; the caller's own profile pages need any access
// token.
func (h *Handlers) Routes(r chi.Router) {
	forward := http.HandlerFunc(h.Auth)

	member := r.With(h.RequireJWT(""))
	member.Handle("/guides/me", forward)
	member.Handle("/users/me", forward)

	admin := r.With(h.RequireJWT("ADMIN"))
	admin.Handle("/guides", forward)
	admin.Handle("/guides/*", forward)
	admin.Handle("/users", forward)
	admin.Handle("/users/*", forward)

	r.Handle("/*", forward)
}

// Auth forwards /v1/auth/* to the account service with the prefix removed.
func (h *Handlers) Auth(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/auth")
	if path == "" {
		path = "/"
	}
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	h.proxyRequest(w, r, h.authProxy, path)
}

func (h *Handlers) proxyRequest(w http.ResponseWriter, r *http.Request, serviceProxy *proxy.ServiceProxy, path string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", "INVALID_INPUT")
		return
	}
	defer r.Body.Close()

	headers := make(map[string]string)
	for key, values := range r.Header {
		if len(values) > 0 && shouldCopyHeader(key) {
			headers[key] = values[0]
		}
	}

	resp, err := serviceProxy.ProxyRequest(r.Context(), r.Method, path, body, headers)
	if err != nil {
		logger.ErrorContext(r.Context(), "Service proxy error", "error", err, "path", path)
		writeError(w, http.StatusServiceUnavailable, "Service unavailable", "SERVICE_UNAVAILABLE")
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if !shouldCopyHeader(key) {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.ErrorContext(r.Context(), "Failed to copy response body", "error", err)
	}
}

var hopHeaders = map[string]struct{}{
	"host":                {},
	"connection":          {},
	"upgrade":             {},
	"proxy-connection":    {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailers":            {},
	"transfer-encoding":   {},
	"content-length":      {},
}

func shouldCopyHeader(key string) bool {
	_, skip := hopHeaders[strings.ToLower(key)]
	return !skip
}

// RequireJWT rejects calls without a valid access token at the edge. With a
// role, only that role passes. The account service still authorizes every
// call against its own store.
func (h *Handlers) RequireJWT(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
				return
			}

			claims, err := h.signer.Parse(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil || claims.Type != auth.TypeAccess {
				writeError(w, http.StatusUnauthorized, "Invalid token", "INVALID_TOKEN")
				return
			}

			if requiredRole != "" && claims.Role != requiredRole {
				writeError(w, http.StatusForbidden, "Insufficient permissions", "FORBIDDEN")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
