package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/auth"
	"github.com/agrilink/usermgmt/internal/integrations"
	"github.com/agrilink/usermgmt/internal/logger"
	"github.com/agrilink/usermgmt/internal/service"
)

const (
	msgNoCredentials = "Authentication credentials were not provided."
	msgNoPermission  = "You do not have permission to perform this action."
	maxBodyBytes     = 10 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response: %v", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeDetail(w, http.StatusUnauthorized, msg)
}

// decodeJSON reads the request body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return accounts.NewValidationError(accounts.NonFieldErrors, "JSON parse error - "+err.Error())
	}
	return nil
}

// writeError maps service errors onto status codes and response bodies.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := accounts.IsValidation(err); ok {
		body := make(map[string][]string, len(ve.Fields))
		for field, msg := range ve.Fields {
			body[field] = []string{msg}
		}
		writeJSON(w, http.StatusBadRequest, body)
		return
	}
	if msg, ok := accounts.IsForbidden(err); ok {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": msg})
		return
	}
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrUserInactive),
		errors.Is(err, auth.ErrUnsupportedHash):
		writeUnauthorized(w, auth.HumanAuthError(err))
	case errors.Is(err, accounts.ErrPermission):
		writeDetail(w, http.StatusForbidden, msgNoPermission)
	case errors.Is(err, accounts.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidAction):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid action"})
	case errors.Is(err, service.ErrInvalidPage):
		writeDetail(w, http.StatusNotFound, "Invalid page.")
	case errors.Is(err, integrations.ErrUpstream), errors.Is(err, service.ErrNoUpstream):
		logger.Warn("%s %s: upstream: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
	}
}
