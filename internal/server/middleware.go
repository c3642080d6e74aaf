package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/logger"
)

type ctxKey string

const (
	ctxUser    ctxKey = "user"
	ctxToken   ctxKey = "token"
	ctxAuthErr ctxKey = "auth_err"
)

// access describes who may call a route.
type access struct {
	auth  bool
	roles []accounts.Role
}

var (
	public = access{}
	authed = access{auth: true}
)

func only(roles ...accounts.Role) access { return access{auth: true, roles: roles} }

func (a access) allows(role accounts.Role) bool {
	if len(a.roles) == 0 {
		return true
	}
	for _, r := range a.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (a access) String() string {
	switch {
	case !a.auth:
		return "public"
	case len(a.roles) == 0:
		return "authenticated"
	}
	names := make([]string, 0, len(a.roles))
	for _, r := range a.roles {
		names = append(names, string(r))
	}
	return strings.Join(names, "|")
}

func (a *App) withAuthContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), ctxToken, token)
		u, err := a.svc.Authenticate(token)
		if err != nil {
			ctx = context.WithValue(ctx, ctxAuthErr, err)
		} else {
			ctx = context.WithValue(ctx, ctxUser, u)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return ""
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func userFrom(r *http.Request) *accounts.User {
	if u, ok := r.Context().Value(ctxUser).(*accounts.User); ok {
		return u
	}
	return nil
}

func tokenFrom(r *http.Request) string {
	s, _ := r.Context().Value(ctxToken).(string)
	return s
}

func (a *App) require(acc access, h http.HandlerFunc) http.HandlerFunc {
	if !acc.auth {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		u := userFrom(r)
		if u == nil {
			if err, ok := r.Context().Value(ctxAuthErr).(error); ok {
				writeError(w, r, err)
				return
			}
			writeUnauthorized(w, msgNoCredentials)
			return
		}
		if !acc.allows(u.Role) {
			writeDetail(w, http.StatusForbidden, msgNoPermission)
			return
		}
		h(w, r)
	}
}

// observe logs each request and feeds the prometheus request metrics.
func (a *App) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		if a.metrics != nil {
			a.metrics.ObserveRequest(route, r.Method, status, elapsed)
		}
		ev := logger.L().Info()
		if status >= http.StatusInternalServerError {
			ev = logger.L().Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", elapsed).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}
