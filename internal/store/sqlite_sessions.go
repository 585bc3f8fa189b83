package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/logicgrid/logicgrid/internal/types"
)

// CreateSession mints a new opaque session token for the user.
func (s *SQLiteStore) CreateSession(ctx context.Context, userID int64) (*types.Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, created_at) VALUES (?, ?, ?)",
		token, userID, now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return &types.Session{Token: token, UserID: userID, CreatedAt: now}, nil
}

// GetSession resolves a session token.
func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*types.Session, error) {
	var (
		sess      types.Session
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT token, user_id, created_at FROM sessions WHERE token = ?", token).
		Scan(&sess.Token, &sess.UserID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if sess.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes a single session (logout).
func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireRow(res)
}

// DeleteSessionsForUser removes every session for one account, used when a
// password changes or is reset.
func (s *SQLiteStore) DeleteSessionsForUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

// DeleteSessionsBefore purges sessions created before the cutoff and returns
// the number removed.
func (s *SQLiteStore) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE created_at < ?", cutoff.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return res.RowsAffected()
}

// newSessionToken returns 32 random bytes hex-encoded. Tokens carry no
// structure and encode nothing about the user.
func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
