package types

import (
	"encoding/json"
	"time"
)

// User represents a registered account.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	IsAdmin      bool       `json:"is_admin"`
	IsApproved   bool       `json:"is_approved"`
	AIUsageCount int        `json:"ai_usage_count"`
	FailedLogins int        `json:"-"`
	LockedUntil  *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Session represents an authenticated browser session. The token is an
// opaque random secret, never derived from user data.
type Session struct {
	Token     string    `json:"-"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Protocol represents a stored protocol document. Data holds the compiled
// document as a JSON string, exactly as the builder produced it.
type Protocol struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Data      string    `json:"data"`
	IsPublic  bool      `json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProtocolSummary is the list representation of a protocol, without the
// document payload.
type ProtocolSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsPublic bool   `json:"is_public"`
	IsOwner  bool   `json:"is_owner"`
}

// ColumnPreset is a reusable column configuration selectable in the builder.
// Config holds the column payload as raw JSON so the store never needs to
// understand column semantics.
type ColumnPreset struct {
	Key           string          `json:"key"`
	Label         string          `json:"label"`
	Config        json.RawMessage `json:"config"`
	StandardOrder *int            `json:"standard_order,omitempty"`
}

// AIRequest is an audit record of one suggestion call.
type AIRequest struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Prompt    string    `json:"prompt"`
	Succeeded bool      `json:"succeeded"`
	CreatedAt time.Time `json:"created_at"`
}

// SignupRequest represents a request to create an account.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a login attempt.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest rotates the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AdminUserRequest targets one account in an admin operation.
type AdminUserRequest struct {
	UserID int64 `json:"userId"`
}

// AdminResetPasswordRequest sets a new password for a locked-out account.
type AdminResetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

// SaveProtocolRequest represents a protocol save, delete, or publish call.
// Delete and MakePublic are mutually exclusive.
type SaveProtocolRequest struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Data       string `json:"data"`
	Delete     bool   `json:"delete,omitempty"`
	MakePublic bool   `json:"makePublic,omitempty"`
}

// SaveProtocolResponse reports the outcome of a save call.
type SaveProtocolResponse struct {
	ID      int64  `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SuggestRequest asks the assistant for builder actions.
type SuggestRequest struct {
	Prompt   string          `json:"prompt"`
	Protocol json.RawMessage `json:"protocol,omitempty"`
}

// SuggestResponse carries the actions to apply. Actions stay raw JSON so
// the API layer is decoupled from the builder's action schema.
type SuggestResponse struct {
	Actions   json.RawMessage `json:"actions"`
	Remaining int             `json:"remaining"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
