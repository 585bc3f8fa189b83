package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/logicgrid/logicgrid/internal/ai"
	"github.com/logicgrid/logicgrid/internal/api"
	"github.com/logicgrid/logicgrid/internal/config"
	"github.com/logicgrid/logicgrid/internal/protocol"
	"github.com/logicgrid/logicgrid/internal/store"
	"github.com/logicgrid/logicgrid/internal/types"
)

const (
	adminEmail    = "admin@example.com"
	memberEmail   = "member@example.com"
	validPassword = "Str0ng!pass"
)

// scriptedSuggester is an ai.Suggester that replays canned actions, so
// suggestion journeys run without a live API key.
type scriptedSuggester struct {
	actions []protocol.Action
	err     error
}

var _ ai.Suggester = (*scriptedSuggester)(nil)

func (s *scriptedSuggester) Suggest(ctx context.Context, prompt string, protocolJSON json.RawMessage) ([]protocol.Action, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.actions, nil
}

func (s *scriptedSuggester) ModelName() string { return "scripted" }

// parseActions builds protocol actions from a JSON literal.
func parseActions(t *testing.T, raw string) []protocol.Action {
	t.Helper()
	var actions []protocol.Action
	if err := json.Unmarshal([]byte(raw), &actions); err != nil {
		t.Fatalf("parse actions: %v", err)
	}
	return actions
}

// --- Server Environment ---

// env is a full in-process deployment: real SQLite store with migrations
// and seeded presets, real router with all middleware, real HTTP server.
type env struct {
	server *httptest.Server
	db     *store.SQLiteStore
	cfg    *config.Config
}

func setupEnv(t *testing.T, suggester ai.Suggester) *env {
	t.Helper()

	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "e2e.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	entries := protocol.DefaultCatalogEntries()
	presets := make([]types.ColumnPreset, len(entries))
	for i, e := range entries {
		presets[i] = types.ColumnPreset{
			Key:           e.Key,
			Label:         e.Label,
			Config:        e.Config,
			StandardOrder: e.StandardOrder,
		}
	}
	if err := db.SeedColumnPresets(context.Background(), presets); err != nil {
		t.Fatalf("seed presets: %v", err)
	}

	cfg := config.Default()
	cfg.Auth.LockoutThreshold = 3
	cfg.Auth.LockoutDuration = config.Duration(15 * time.Minute)
	cfg.AI.UsageLimit = 2

	handler := api.NewHandler(db, suggester, cfg, "e2e")
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)

	return &env{server: server, db: db, cfg: cfg}
}

// --- Client ---

// client is one browser: its own cookie jar, so each client carries an
// independent session.
type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, e *env) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &client{
		t:    t,
		base: e.server.URL,
		http: &http.Client{Jar: jar},
	}
}

// postJSON sends a JSON body and returns the response. The caller owns
// the response body.
func (c *client) postJSON(path string, body any) *http.Response {
	c.t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		c.t.Fatalf("marshal request: %v", err)
	}
	resp, err := c.http.Post(c.base+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (c *client) get(path string) *http.Response {
	c.t.Helper()
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		c.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (c *client) delete(path string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodDelete, c.base+path, nil)
	if err != nil {
		c.t.Fatalf("build DELETE %s: %v", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("DELETE %s: %v", path, err)
	}
	return resp
}

// decode reads and closes the response body into v.
func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode body %q: %v", data, err)
	}
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d (body: %s)", resp.StatusCode, want, body)
	}
}

// --- Journey Helpers ---

// signup registers an account. The first account becomes an approved admin.
func (c *client) signup(email, password string) *http.Response {
	c.t.Helper()
	return c.postJSON("/signup", types.SignupRequest{Email: email, Password: password})
}

func (c *client) login(email, password string) *http.Response {
	c.t.Helper()
	return c.postJSON("/login", types.LoginRequest{Email: email, Password: password})
}

func (c *client) mustSignup(email, password string) {
	c.t.Helper()
	resp := c.signup(email, password)
	wantStatus(c.t, resp, http.StatusCreated)
	resp.Body.Close()
}

func (c *client) mustLogin(email, password string) {
	c.t.Helper()
	resp := c.login(email, password)
	wantStatus(c.t, resp, http.StatusOK)
	resp.Body.Close()
}

// saveProtocol stores a document and returns the server-assigned outcome.
func (c *client) saveProtocol(req types.SaveProtocolRequest, wantCode int) types.SaveProtocolResponse {
	c.t.Helper()
	resp := c.postJSON("/api/protocols", req)
	wantStatus(c.t, resp, wantCode)
	var out types.SaveProtocolResponse
	decode(c.t, resp, &out)
	return out
}

// compiledDoc produces a small but valid compiled document for storage,
// running the same pipeline the browser builder runs.
func compiledDoc(t *testing.T, name string) string {
	t.Helper()
	builder := protocol.NewBuilder(protocol.DefaultCatalog())
	builder.SetName(name)
	card := builder.AddColumnCard()
	if preset, ok := builder.Catalog().Get("text_input"); ok {
		card.ApplyPreset(&preset)
	}
	card.Name = name
	card.ID = name
	doc, err := builder.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	return string(data)
}

// assertHydrates proves a stored document round-trips back into builder
// state and recompiles cleanly.
func assertHydrates(t *testing.T, data string) {
	t.Helper()
	builder := protocol.NewBuilder(protocol.DefaultCatalog())
	if err := builder.ApplyDocumentJSON([]byte(data)); err != nil {
		t.Fatalf("hydrate stored document: %v", err)
	}
	if _, err := builder.Compile(); err != nil {
		t.Fatalf("recompile hydrated document: %v", err)
	}
}

func itoa(v int64) string {
	return fmt.Sprintf("%d", v)
}
