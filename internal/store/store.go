package store

import (
	"context"
	"time"

	"github.com/logicgrid/logicgrid/internal/types"
)

// Store defines the interface contract for all persistence operations.
type Store interface {
	// Users
	CreateUser(ctx context.Context, email, passwordHash string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByID(ctx context.Context, id int64) (*types.User, error)
	ListUsers(ctx context.Context) ([]types.User, error)
	SetUserAdmin(ctx context.Context, id int64, admin bool) error
	SetUserApproved(ctx context.Context, id int64, approved bool) error
	DeleteUser(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	RecordLoginFailure(ctx context.Context, id int64, threshold int, lockFor time.Duration) error
	ClearLoginFailures(ctx context.Context, id int64) error
	IncrementAIUsage(ctx context.Context, id int64) (int, error)

	// Sessions
	CreateSession(ctx context.Context, userID int64) (*types.Session, error)
	GetSession(ctx context.Context, token string) (*types.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteSessionsForUser(ctx context.Context, userID int64) error
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Protocols
	CreateProtocol(ctx context.Context, userID int64, name, data string) (*types.Protocol, error)
	UpdateProtocol(ctx context.Context, id, userID int64, name, data string) error
	GetProtocol(ctx context.Context, id int64) (*types.Protocol, error)
	ListProtocols(ctx context.Context, userID int64, ownOnly bool) ([]types.ProtocolSummary, error)
	DeleteProtocol(ctx context.Context, id, userID int64) error
	PublishProtocol(ctx context.Context, id, userID int64) error

	// Column presets
	ListColumnPresets(ctx context.Context) ([]types.ColumnPreset, error)
	UpsertColumnPreset(ctx context.Context, preset types.ColumnPreset) error
	DeleteColumnPreset(ctx context.Context, key string) error
	SeedColumnPresets(ctx context.Context, presets []types.ColumnPreset) error

	// AI audit
	RecordAIRequest(ctx context.Context, userID int64, prompt string, succeeded bool) (*types.AIRequest, error)

	Close() error
}
