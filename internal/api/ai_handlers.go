package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/logicgrid/logicgrid/internal/types"
)

// AISuggest handles POST /api/ai/suggest. Each account gets a fixed number
// of suggestions; the counter only moves on successful calls, and every
// attempt is written to the audit log.
func (h *Handler) AISuggest(w http.ResponseWriter, r *http.Request) {
	user := MustUserFromContext(r.Context())

	if h.suggester == nil {
		WriteProblem(w, r, http.StatusServiceUnavailable, "AI assistant is not configured")
		return
	}

	limit := h.cfg.AI.UsageLimit
	if limit > 0 && user.AIUsageCount >= limit {
		WriteProblem(w, r, http.StatusTooManyRequests,
			fmt.Sprintf("Demo limit reached (%d requests max per account).", limit))
		return
	}

	var req types.SuggestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		WriteProblem(w, r, http.StatusBadRequest, "prompt required")
		return
	}
	if len(req.Protocol) == 0 {
		req.Protocol = json.RawMessage("{}")
	}

	actions, err := h.suggester.Suggest(r.Context(), req.Prompt, req.Protocol)
	if err != nil {
		slog.Error("suggestion failed", "error", err, "user_id", user.ID)
		h.auditAIRequest(r, user.ID, req.Prompt, false)
		WriteProblem(w, r, http.StatusInternalServerError, "AI error")
		return
	}

	h.auditAIRequest(r, user.ID, req.Prompt, true)

	count, err := h.store.IncrementAIUsage(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to increment AI usage", "error", err, "user_id", user.ID)
		count = user.AIUsageCount + 1
	}

	raw, err := json.Marshal(actions)
	if err != nil {
		slog.Error("failed to marshal actions", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	remaining := 0
	if limit > 0 {
		remaining = limit - count
		if remaining < 0 {
			remaining = 0
		}
	}

	writeJSON(w, http.StatusOK, types.SuggestResponse{
		Actions:   raw,
		Remaining: remaining,
	})
}

func (h *Handler) auditAIRequest(r *http.Request, userID int64, prompt string, succeeded bool) {
	if _, err := h.store.RecordAIRequest(r.Context(), userID, prompt, succeeded); err != nil {
		slog.Warn("failed to audit AI request", "error", err, "user_id", userID)
	}
}
