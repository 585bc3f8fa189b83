package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/logicgrid/logicgrid/internal/types"
)

// CreateProtocol stores a new protocol document for the user.
func (s *SQLiteStore) CreateProtocol(ctx context.Context, userID int64, name, data string) (*types.Protocol, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO protocols (user_id, name, data, is_public, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?)`,
		userID, name, data, now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert protocol: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &types.Protocol{
		ID:        id,
		UserID:    userID,
		Name:      name,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateProtocol rewrites name and data for a protocol the user owns.
// Returns ErrNotOwner when the protocol exists but belongs to someone else.
func (s *SQLiteStore) UpdateProtocol(ctx context.Context, id, userID int64, name, data string) error {
	owner, err := s.protocolOwner(ctx, id)
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrNotOwner
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE protocols SET name = ?, data = ?, updated_at = ? WHERE id = ?",
		name, data, time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("update protocol: %w", err)
	}
	return nil
}

// GetProtocol fetches one protocol with its document payload.
func (s *SQLiteStore) GetProtocol(ctx context.Context, id int64) (*types.Protocol, error) {
	var (
		p                    types.Protocol
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, data, is_public, created_at, updated_at
		 FROM protocols WHERE id = ?`, id).
		Scan(&p.ID, &p.UserID, &p.Name, &p.Data, &p.IsPublic, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan protocol: %w", err)
	}
	if p.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &p, nil
}

// ListProtocols returns summaries visible to the user. With ownOnly the list
// is restricted to the user's own protocols; otherwise public protocols are
// included first, then the user's own.
func (s *SQLiteStore) ListProtocols(ctx context.Context, userID int64, ownOnly bool) ([]types.ProtocolSummary, error) {
	query := `SELECT id, name, is_public, user_id FROM protocols
		WHERE user_id = ? ORDER BY name`
	args := []any{userID}
	if !ownOnly {
		query = `SELECT id, name, is_public, user_id FROM protocols
			WHERE is_public = 1 OR user_id = ?
			ORDER BY is_public DESC, name`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}
	defer rows.Close()

	var summaries []types.ProtocolSummary
	for rows.Next() {
		var (
			sum   types.ProtocolSummary
			owner int64
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.IsPublic, &owner); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.IsOwner = owner == userID
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// DeleteProtocol removes a protocol the user owns.
func (s *SQLiteStore) DeleteProtocol(ctx context.Context, id, userID int64) error {
	owner, err := s.protocolOwner(ctx, id)
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrNotOwner
	}

	_, err = s.db.ExecContext(ctx, "DELETE FROM protocols WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete protocol: %w", err)
	}
	return nil
}

// PublishProtocol marks a protocol the user owns as publicly visible.
func (s *SQLiteStore) PublishProtocol(ctx context.Context, id, userID int64) error {
	owner, err := s.protocolOwner(ctx, id)
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrNotOwner
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE protocols SET is_public = 1, updated_at = ? WHERE id = ?",
		time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("publish protocol: %w", err)
	}
	return nil
}

func (s *SQLiteStore) protocolOwner(ctx context.Context, id int64) (int64, error) {
	var owner int64
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id FROM protocols WHERE id = ?", id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read owner: %w", err)
	}
	return owner, nil
}
