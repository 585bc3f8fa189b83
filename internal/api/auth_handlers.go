package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/logicgrid/logicgrid/internal/store"
	"github.com/logicgrid/logicgrid/internal/types"
	"github.com/logicgrid/logicgrid/internal/validation"
)

// Signup handles POST /signup. The first account ever created is granted
// admin and approval so the instance can bootstrap itself; everyone after
// that waits for an admin to approve them.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req types.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)

	var c validation.Collector
	c.Add(validation.ValidateRequired("email", req.Email))
	c.Add(validation.ValidateEmail("email", req.Email))
	c.Add(validation.ValidatePassword("password", req.Password))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Signup request contains invalid fields", c.Errors())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("password hash failed", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.Email, string(hash))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	// Approved accounts (the bootstrap admin) log straight in.
	if user.IsApproved {
		if err := h.setSessionCookie(w, r, user.ID); err != nil {
			slog.Error("session creation failed", "error", err, "user_id", user.ID)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":              true,
		"userId":          user.ID,
		"is_admin":        user.IsAdmin,
		"is_approved":     user.IsApproved,
		"pendingApproval": !user.IsApproved,
	})
}

// Login handles POST /login. Credential failures are reported with one
// generic message so account existence cannot be probed. Repeated failures
// lock the account for the configured duration.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteProblem(w, r, http.StatusUnauthorized, "invalid email or password")
			return
		}
		MapStoreError(w, r, err)
		return
	}

	if user.LockedUntil != nil && time.Now().Before(*user.LockedUntil) {
		WriteProblem(w, r, http.StatusForbidden, h.lockoutMessage())
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		if err := h.store.RecordLoginFailure(r.Context(), user.ID,
			h.cfg.Auth.LockoutThreshold, time.Duration(h.cfg.Auth.LockoutDuration)); err != nil {
			slog.Error("failed to record login failure", "error", err, "user_id", user.ID)
		}
		if user.FailedLogins+1 >= h.cfg.Auth.LockoutThreshold {
			WriteProblem(w, r, http.StatusForbidden, h.lockoutMessage())
		} else {
			WriteProblem(w, r, http.StatusUnauthorized, "invalid email or password")
		}
		return
	}

	if user.FailedLogins > 0 || user.LockedUntil != nil {
		if err := h.store.ClearLoginFailures(r.Context(), user.ID); err != nil {
			slog.Error("failed to clear login failures", "error", err, "user_id", user.ID)
		}
	}

	if !user.IsApproved {
		WriteProblem(w, r, http.StatusForbidden, "Account pending approval")
		return
	}

	if err := h.setSessionCookie(w, r, user.ID); err != nil {
		slog.Error("session creation failed", "error", err, "user_id", user.ID)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"userId":      user.ID,
		"is_approved": true,
	})
}

func (h *Handler) lockoutMessage() string {
	minutes := int(time.Duration(h.cfg.Auth.LockoutDuration).Minutes())
	return fmt.Sprintf("Account locked. Too many failed attempts. Please try again in %d minutes.", minutes)
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := MustUserFromContext(r.Context())
	writeJSON(w, http.StatusOK, user)
}

// ChangePassword handles POST /change-password. The current password is
// re-verified, every session for the account is dropped, and a fresh
// session replaces the caller's cookie.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := MustUserFromContext(r.Context())

	var req types.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("currentPassword", req.CurrentPassword))
	c.Add(validation.ValidatePassword("newPassword", req.NewPassword))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Password change request contains invalid fields", c.Errors())
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		WriteProblem(w, r, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("password hash failed", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if err := h.store.UpdatePassword(r.Context(), user.ID, string(hash)); err != nil {
		MapStoreError(w, r, err)
		return
	}

	if err := h.store.DeleteSessionsForUser(r.Context(), user.ID); err != nil {
		slog.Warn("failed to rotate sessions", "error", err, "user_id", user.ID)
	}

	if err := h.setSessionCookie(w, r, user.ID); err != nil {
		slog.Error("session creation failed", "error", err, "user_id", user.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
