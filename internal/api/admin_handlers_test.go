package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/logicgrid/logicgrid/internal/types"
)

// --- Admin Access Tests ---

func TestAdminRoutes_RejectNonAdmin(t *testing.T) {
	ts := newTestServer(t, nil)
	_, token := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	rec := ts.request(t, http.MethodGet, "/admin/users", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminListUsers(t *testing.T) {
	ts := newTestServer(t, nil)
	_, adminToken := ts.addUser(t, "admin@example.com", "Sup3r$ecret", true, true)
	ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	rec := ts.request(t, http.MethodGet, "/admin/users", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var users []types.User
	decodeBody(t, rec, &users)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

// --- Flag Management Tests ---

func TestAdminPromoteAndDemote(t *testing.T) {
	ts := newTestServer(t, nil)
	_, adminToken := ts.addUser(t, "admin@example.com", "Sup3r$ecret", true, true)
	user, _ := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	rec := ts.request(t, http.MethodPost, "/admin/promote", adminToken,
		types.AdminUserRequest{UserID: user.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("promote: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stored, _ := ts.store.GetUserByID(context.Background(), user.ID)
	if !stored.IsAdmin {
		t.Error("expected user to be admin after promote")
	}

	rec = ts.request(t, http.MethodPost, "/admin/demote", adminToken,
		types.AdminUserRequest{UserID: user.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("demote: expected 200, got %d", rec.Code)
	}
	stored, _ = ts.store.GetUserByID(context.Background(), user.ID)
	if stored.IsAdmin {
		t.Error("expected user to lose admin after demote")
	}
}

func TestAdminCannotDemoteSelf(t *testing.T) {
	ts := newTestServer(t, nil)
	admin, adminToken := ts.addUser(t, "admin@example.com", "Sup3r$ecret", true, true)

	rec := ts.request(t, http.MethodPost, "/admin/demote", adminToken,
		types.AdminUserRequest{UserID: admin.ID})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var p Problem
	decodeBody(t, rec, &p)
	if p.Detail != "cannot demote your own admin status" {
		t.Errorf("unexpected detail %q", p.Detail)
	}
}

func TestAdminApproveUnlocksLogin(t *testing.T) {
	ts := newTestServer(t, nil)
	_, adminToken := ts.addUser(t, "admin@example.com", "Sup3r$ecret", true, true)
	user, _ := ts.addUser(t, "pending@example.com", "Sup3r$ecret", false, false)

	rec := ts.request(t, http.MethodPost, "/admin/approve", adminToken,
		types.AdminUserRequest{UserID: user.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.request(t, http.MethodPost, "/login", "",
		types.LoginRequest{Email: "pending@example.com", Password: "Sup3r$ecret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login to succeed after approval, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminUnapproveKillsLiveSession(t *testing.T) {
	ts := newTestServer(t, nil)
	_, adminToken := ts.addUser(t, "admin@example.com", "Sup3r$ecret", true, true)
	user, userToken := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	rec := ts.request(t, http.MethodPost, "/admin/unapprove", adminToken,
		types.AdminUserRequest{UserID: user.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// The next authenticated request clears the session
	rec = ts.request(t, http.MethodGet, "/me", userToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unapproved user, got %d", rec.Code)
	}
	rec = ts.request(t, http.MethodGet, "/me", userToken, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after session revoked, got %d", rec.Code)
	}
}

func TestAdminDeleteUser(t *testing.T) {
	ts := newTestServer(t, nil)
	admin, adminToken := ts.addUser(t, "admin@example.com", "Sup3r$ecret", true, true)
	user, _ := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	// Self-deletion refused
	rec := ts.request(t, http.MethodPost, "/admin/delete-user", adminToken,
		types.AdminUserRequest{UserID: admin.ID})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 deleting self, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/admin/delete-user", adminToken,
		types.AdminUserRequest{UserID: user.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := ts.store.GetUserByID(context.Background(), user.ID); err == nil {
		t.Error("expected user to be deleted")
	}

	// Unknown id maps to 404
	rec = ts.request(t, http.MethodPost, "/admin/delete-user", adminToken,
		types.AdminUserRequest{UserID: 999})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}
}

// --- Reset Password Tests ---

func TestAdminResetPassword(t *testing.T) {
	ts := newTestServer(t, nil)
	_, adminToken := ts.addUser(t, "admin@example.com", "Sup3r$ecret", true, true)
	user, userToken := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	// Simulate a locked account
	for i := 0; i < 3; i++ {
		ts.request(t, http.MethodPost, "/login", "",
			types.LoginRequest{Email: "user@example.com", Password: "wrong"})
	}

	rec := ts.request(t, http.MethodPost, "/admin/reset-password", adminToken,
		types.AdminResetPasswordRequest{Email: "user@example.com", NewPassword: "Fr3sh$tart"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Lockout cleared, old sessions dead, new password live
	stored, _ := ts.store.GetUserByID(context.Background(), user.ID)
	if stored.LockedUntil != nil {
		t.Error("expected lockout to be cleared")
	}
	if rec := ts.request(t, http.MethodGet, "/me", userToken, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected old session to be revoked, got %d", rec.Code)
	}
	if rec := ts.request(t, http.MethodPost, "/login", "",
		types.LoginRequest{Email: "user@example.com", Password: "Fr3sh$tart"}); rec.Code != http.StatusOK {
		t.Errorf("expected login with new password, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminResetPassword_UnknownEmail(t *testing.T) {
	ts := newTestServer(t, nil)
	_, adminToken := ts.addUser(t, "admin@example.com", "Sup3r$ecret", true, true)

	rec := ts.request(t, http.MethodPost, "/admin/reset-password", adminToken,
		types.AdminResetPasswordRequest{Email: "ghost@example.com", NewPassword: "Fr3sh$tart"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}
