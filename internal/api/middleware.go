package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/logicgrid/logicgrid/internal/store"
)

// sessionCookieName is the browser cookie carrying the opaque session token.
const sessionCookieName = "session_id"

// SecurityHeaders adds basic security headers to every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; style-src 'self' 'unsafe-inline';")

		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequireAuth resolves the session cookie to a user and attaches the user to
// the request context. Unapproved accounts lose their session on the spot
// so a revoked approval takes effect immediately.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookieName)
		if err != nil || c.Value == "" {
			WriteProblem(w, r, http.StatusUnauthorized, "Not logged in")
			return
		}

		sess, err := h.store.GetSession(r.Context(), c.Value)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				slog.Error("session lookup failed", "error", err)
			}
			WriteProblem(w, r, http.StatusUnauthorized, "Not logged in")
			return
		}

		user, err := h.store.GetUserByID(r.Context(), sess.UserID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				slog.Error("user lookup failed", "error", err, "user_id", sess.UserID)
			}
			WriteProblem(w, r, http.StatusUnauthorized, "Not logged in")
			return
		}

		if !user.IsApproved {
			h.clearSessionCookie(w, r)
			WriteProblem(w, r, http.StatusForbidden, "Account pending approval")
			return
		}

		ctx := WithUser(r.Context(), user)
		ctx = WithSessionToken(ctx, sess.Token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin callers. Must run inside RequireAuth.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := MustUserFromContext(r.Context())
		if !user.IsAdmin {
			WriteProblem(w, r, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
