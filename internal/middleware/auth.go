// Package middleware provides HTTP middleware for the Revibes API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/errors"
	internalhttputil "github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/httputil"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
)

const (
	// UserIDHeader carries the caller id resolved by the upstream gateway.
	UserIDHeader = "X-User-ID"
	// UserRoleHeader carries the caller role resolved by the upstream gateway.
	UserRoleHeader = "X-User-Role"

	RoleAdmin = "admin"
	RoleUser  = "user"
)

// IdentityMiddleware trusts the identity headers set by the gateway. Tokens
// are verified before requests reach this service.
type IdentityMiddleware struct {
	admins    map[string]bool
	skipPaths map[string]bool
	logger    *logger.Logger
}

// NewIdentityMiddleware creates the identity middleware. Users listed in
// adminIDs are admins whatever role header arrives.
func NewIdentityMiddleware(adminIDs []string, log *logger.Logger, skipPaths []string) *IdentityMiddleware {
	if log == nil {
		log = logger.NewDefault("identity")
	}
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[strings.TrimSpace(id)] = true
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &IdentityMiddleware{admins: admins, skipPaths: skip, logger: log}
}

// Handler returns the middleware handler.
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			m.respondError(w, r, errors.Unauthorized("Missing "+UserIDHeader+" header"))
			return
		}

		role := RoleUser
		if m.admins[userID] || strings.EqualFold(strings.TrimSpace(r.Header.Get(UserRoleHeader)), RoleAdmin) {
			role = RoleAdmin
		}

		ctx := logger.WithUserID(r.Context(), userID)
		ctx = logger.WithRole(ctx, role)
		m.logger.WithContext(ctx).WithField("role", role).Debug("identity resolved")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *IdentityMiddleware) respondError(w http.ResponseWriter, r *http.Request, serviceErr *errors.ServiceError) {
	internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)
	m.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("identity rejected")
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	return logger.GetUserID(ctx)
}

// GetUserRole extracts user role from context
func GetUserRole(ctx context.Context) string {
	return logger.GetRole(ctx)
}

// IsAdmin reports whether the caller carries the admin role.
func IsAdmin(ctx context.Context) bool {
	return GetUserRole(ctx) == RoleAdmin
}

// RequireUserID middleware ensures user ID is present in context
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			internalhttputil.Unauthorized(w, r, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers without the admin role.
func RequireAdmin(log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewDefault("identity")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUserID(r.Context()) == "" {
				internalhttputil.Unauthorized(w, r, "")
				return
			}
			if !IsAdmin(r.Context()) {
				log.LogSecurityEvent(r.Context(), "admin_required", map[string]interface{}{
					"path":   r.URL.Path,
					"method": r.Method,
				})
				internalhttputil.Forbidden(w, r, "admin role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
