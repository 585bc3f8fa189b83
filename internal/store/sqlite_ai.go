package store

import (
	"context"
	"fmt"
	"time"

	"github.com/logicgrid/logicgrid/internal/types"
	"github.com/oklog/ulid/v2"
)

// RecordAIRequest writes one audit row per suggestion call, successful or not.
func (s *SQLiteStore) RecordAIRequest(ctx context.Context, userID int64, prompt string, succeeded bool) (*types.AIRequest, error) {
	req := &types.AIRequest{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Prompt:    prompt,
		Succeeded: succeeded,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_requests (id, user_id, prompt, succeeded, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		req.ID, req.UserID, req.Prompt, req.Succeeded, req.CreatedAt.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert ai request: %w", err)
	}
	return req, nil
}
