package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/logicgrid/logicgrid/internal/ai"
	"github.com/logicgrid/logicgrid/internal/config"
	"github.com/logicgrid/logicgrid/internal/store"
	"github.com/logicgrid/logicgrid/internal/types"
)

// maxJSONSize caps request bodies. Protocol documents are the largest
// payloads and stay well under this.
const maxJSONSize = 1 << 20

// Handler implements the API handlers
type Handler struct {
	store     store.Store
	suggester ai.Suggester
	cfg       *config.Config
	version   string
}

// NewHandler creates a new Handler with store.Store interface. The suggester
// may be nil when no AI key is configured.
func NewHandler(s store.Store, sg ai.Suggester, cfg *config.Config, version string) *Handler {
	return &Handler{
		store:     s,
		suggester: sg,
		cfg:       cfg,
		version:   version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:  "healthy",
		Version: h.version,
	})
}

// decodeJSON limits JSON size and disallows unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONSize)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func isNotOwner(err error) bool {
	return errors.Is(err, store.ErrNotOwner)
}

// setSessionCookie mints a session for the user and sets the cookie.
func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, userID int64) error {
	sess, err := h.store.CreateSession(r.Context(), userID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cfg.Auth.SecureCookies,
	})
	return nil
}

// clearSessionCookie drops the server-side session, if any, and expires the
// browser cookie.
func (h *Handler) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		if err := h.store.DeleteSession(r.Context(), c.Value); err != nil && !isNotFound(err) {
			slog.Warn("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cfg.Auth.SecureCookies,
	})
}
