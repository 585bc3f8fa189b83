package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/logicgrid/logicgrid/internal/protocol"
	"github.com/logicgrid/logicgrid/internal/types"
)

// --- AI Suggest Tests ---

func TestAISuggest_ReturnsActionsAndRemaining(t *testing.T) {
	var actions []protocol.Action
	if err := json.Unmarshal([]byte(`[{"type":"addColumn","preset":"score_input"}]`), &actions); err != nil {
		t.Fatalf("seed actions: %v", err)
	}
	ts := newTestServer(t, &stubSuggester{actions: actions})
	user, token := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	rec := ts.request(t, http.MethodPost, "/api/ai/suggest", token,
		types.SuggestRequest{Prompt: "add a score column"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp types.SuggestResponse
	decodeBody(t, rec, &resp)
	if resp.Remaining != 24 {
		t.Errorf("expected 24 remaining, got %d", resp.Remaining)
	}

	var returned []map[string]any
	if err := json.Unmarshal(resp.Actions, &returned); err != nil {
		t.Fatalf("decode actions: %v", err)
	}
	if len(returned) != 1 || returned[0]["type"] != "addColumn" {
		t.Errorf("unexpected actions payload: %s", resp.Actions)
	}

	stored, _ := ts.store.GetUserByID(context.Background(), user.ID)
	if stored.AIUsageCount != 1 {
		t.Errorf("expected usage count 1, got %d", stored.AIUsageCount)
	}
	if len(ts.store.aiRequests) != 1 || !ts.store.aiRequests[0].Succeeded {
		t.Errorf("expected one successful audit record, got %+v", ts.store.aiRequests)
	}
}

func TestAISuggest_UsageCap(t *testing.T) {
	ts := newTestServer(t, &stubSuggester{})
	user, token := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)
	ts.store.mutateUser(user.ID, func(u *types.User) { u.AIUsageCount = 25 })

	rec := ts.request(t, http.MethodPost, "/api/ai/suggest", token,
		types.SuggestRequest{Prompt: "add a column"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body.String())
	}

	var p Problem
	decodeBody(t, rec, &p)
	want := "Demo limit reached (25 requests max per account)."
	if p.Detail != want {
		t.Errorf("expected %q, got %q", want, p.Detail)
	}
	if len(ts.store.aiRequests) != 0 {
		t.Error("capped request should not be audited as an attempt")
	}
}

func TestAISuggest_FailureDoesNotConsumeQuota(t *testing.T) {
	ts := newTestServer(t, &stubSuggester{err: errors.New("upstream down")})
	user, token := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	rec := ts.request(t, http.MethodPost, "/api/ai/suggest", token,
		types.SuggestRequest{Prompt: "add a column"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}

	stored, _ := ts.store.GetUserByID(context.Background(), user.ID)
	if stored.AIUsageCount != 0 {
		t.Errorf("failed call should not count, got %d", stored.AIUsageCount)
	}
	if len(ts.store.aiRequests) != 1 || ts.store.aiRequests[0].Succeeded {
		t.Errorf("expected one failed audit record, got %+v", ts.store.aiRequests)
	}
}

func TestAISuggest_PromptRequired(t *testing.T) {
	ts := newTestServer(t, &stubSuggester{})
	_, token := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	rec := ts.request(t, http.MethodPost, "/api/ai/suggest", token,
		types.SuggestRequest{Prompt: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAISuggest_UnconfiguredAssistant(t *testing.T) {
	ts := newTestServer(t, nil)
	_, token := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	rec := ts.request(t, http.MethodPost, "/api/ai/suggest", token,
		types.SuggestRequest{Prompt: "add a column"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}
