package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/logicgrid/logicgrid/internal/types"
)

func intp(v int) *int { return &v }

// --- Column Preset Tests ---

func TestListColumnPresets_StandardOrder(t *testing.T) {
	ts := newTestServer(t, nil)
	_, token := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	ts.store.UpsertColumnPreset(context.Background(), types.ColumnPreset{
		Key: "custom", Label: "Custom", Config: json.RawMessage(`{}`),
	})
	ts.store.UpsertColumnPreset(context.Background(), types.ColumnPreset{
		Key: "score_input", Label: "Score", Config: json.RawMessage(`{}`), StandardOrder: intp(2),
	})
	ts.store.UpsertColumnPreset(context.Background(), types.ColumnPreset{
		Key: "text_input", Label: "Text", Config: json.RawMessage(`{}`), StandardOrder: intp(1),
	})

	rec := ts.request(t, http.MethodGet, "/api/column-presets", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var presets []types.ColumnPreset
	decodeBody(t, rec, &presets)
	got := []string{presets[0].Key, presets[1].Key, presets[2].Key}
	want := []string{"text_input", "score_input", "custom"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestUpsertColumnPreset(t *testing.T) {
	ts := newTestServer(t, nil)
	_, token := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	rec := ts.request(t, http.MethodPost, "/api/column-presets", token,
		types.ColumnPreset{Key: "wheal", Label: "Wheal", Config: json.RawMessage(`{"allowInt":true}`)})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	presets, _ := ts.store.ListColumnPresets(context.Background())
	if len(presets) != 1 || presets[0].Key != "wheal" {
		t.Fatalf("expected stored preset, got %+v", presets)
	}

	// Same key replaces
	rec = ts.request(t, http.MethodPost, "/api/column-presets", token,
		types.ColumnPreset{Key: "wheal", Label: "Wheal Size", Config: json.RawMessage(`{}`)})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	presets, _ = ts.store.ListColumnPresets(context.Background())
	if len(presets) != 1 || presets[0].Label != "Wheal Size" {
		t.Fatalf("expected upsert to replace, got %+v", presets)
	}
}

func TestUpsertColumnPreset_RequiredFields(t *testing.T) {
	ts := newTestServer(t, nil)
	_, token := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	rec := ts.request(t, http.MethodPost, "/api/column-presets", token,
		types.ColumnPreset{Key: " ", Label: ""})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ProblemWithErrors
	decodeBody(t, rec, &resp)
	if len(resp.Errors) != 3 {
		t.Fatalf("expected key, label, and config errors, got %+v", resp.Errors)
	}
}

func TestDeleteColumnPreset_AdminOnly(t *testing.T) {
	ts := newTestServer(t, nil)
	_, adminToken := ts.addUser(t, "admin@example.com", "Sup3r$ecret", true, true)
	_, userToken := ts.addUser(t, "user@example.com", "Sup3r$ecret", false, true)

	ts.store.UpsertColumnPreset(context.Background(), types.ColumnPreset{
		Key: "wheal", Label: "Wheal", Config: json.RawMessage(`{}`),
	})

	rec := ts.request(t, http.MethodDelete, "/api/column-presets?key=wheal", userToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodDelete, "/api/column-presets", adminToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without key, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodDelete, "/api/column-presets?key=wheal", adminToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	presets, _ := ts.store.ListColumnPresets(context.Background())
	if len(presets) != 0 {
		t.Fatalf("expected preset removed, got %+v", presets)
	}
}
