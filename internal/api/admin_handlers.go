package api

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/logicgrid/logicgrid/internal/types"
	"github.com/logicgrid/logicgrid/internal/validation"
)

// AdminListUsers handles GET /admin/users.
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if users == nil {
		users = []types.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// AdminPromote handles POST /admin/promote.
func (h *Handler) AdminPromote(w http.ResponseWriter, r *http.Request) {
	h.adminSetFlag(w, r, func(id int64) error {
		return h.store.SetUserAdmin(r.Context(), id, true)
	}, nil)
}

// AdminDemote handles POST /admin/demote. Admins cannot demote themselves.
func (h *Handler) AdminDemote(w http.ResponseWriter, r *http.Request) {
	h.adminSetFlag(w, r, func(id int64) error {
		return h.store.SetUserAdmin(r.Context(), id, false)
	}, selfProtection(w, r, "cannot demote your own admin status"))
}

// AdminApprove handles POST /admin/approve.
func (h *Handler) AdminApprove(w http.ResponseWriter, r *http.Request) {
	h.adminSetFlag(w, r, func(id int64) error {
		return h.store.SetUserApproved(r.Context(), id, true)
	}, nil)
}

// AdminUnapprove handles POST /admin/unapprove. Admins cannot lock
// themselves out by unapproving their own account.
func (h *Handler) AdminUnapprove(w http.ResponseWriter, r *http.Request) {
	h.adminSetFlag(w, r, func(id int64) error {
		return h.store.SetUserApproved(r.Context(), id, false)
	}, selfProtection(w, r, "cannot unapprove your own account"))
}

// AdminDeleteUser handles POST /admin/delete-user. The account's sessions,
// protocols, and audit rows cascade away with it.
func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	h.adminSetFlag(w, r, func(id int64) error {
		return h.store.DeleteUser(r.Context(), id)
	}, selfProtection(w, r, "cannot delete your own account"))
}

// guard rejects a target user id before the admin operation runs. It
// returns false when the request has already been answered.
type guard func(targetID int64) bool

// selfProtection blocks an admin from running an operation on themselves.
func selfProtection(w http.ResponseWriter, r *http.Request, detail string) guard {
	return func(targetID int64) bool {
		if MustUserFromContext(r.Context()).ID == targetID {
			WriteProblem(w, r, http.StatusBadRequest, detail)
			return false
		}
		return true
	}
}

func (h *Handler) adminSetFlag(w http.ResponseWriter, r *http.Request, op func(int64) error, g guard) {
	var req types.AdminUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if req.UserID <= 0 {
		WriteProblem(w, r, http.StatusBadRequest, "userId required")
		return
	}

	if g != nil && !g(req.UserID) {
		return
	}

	if err := op(req.UserID); err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"userId": req.UserID,
	})
}

// AdminResetPassword handles POST /admin/reset-password. The reset clears
// any lockout and drops every session for the account.
func (h *Handler) AdminResetPassword(w http.ResponseWriter, r *http.Request) {
	var req types.AdminResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)

	var c validation.Collector
	c.Add(validation.ValidateRequired("email", req.Email))
	c.Add(validation.ValidatePassword("newPassword", req.NewPassword))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Reset request contains invalid fields", c.Errors())
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("password hash failed", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	// UpdatePassword also clears failed logins and any lockout.
	if err := h.store.UpdatePassword(r.Context(), user.ID, string(hash)); err != nil {
		MapStoreError(w, r, err)
		return
	}

	if err := h.store.DeleteSessionsForUser(r.Context(), user.ID); err != nil {
		slog.Warn("failed to drop sessions after reset", "error", err, "user_id", user.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"userId": user.ID,
	})
}
