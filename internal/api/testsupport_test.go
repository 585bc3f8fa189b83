package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/logicgrid/logicgrid/internal/ai"
	"github.com/logicgrid/logicgrid/internal/config"
	"github.com/logicgrid/logicgrid/internal/protocol"
	"github.com/logicgrid/logicgrid/internal/store"
	"github.com/logicgrid/logicgrid/internal/types"
)

// fakeStore is an in-memory store.Store for handler tests.
type fakeStore struct {
	mu           sync.Mutex
	users        map[int64]*types.User
	sessions     map[string]*types.Session
	protocols    map[int64]*types.Protocol
	presets      map[string]types.ColumnPreset
	aiRequests   []types.AIRequest
	nextUserID   int64
	nextProtoID  int64
	nextTokenSeq int64
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[int64]*types.User),
		sessions:  make(map[string]*types.Session),
		protocols: make(map[int64]*types.Protocol),
		presets:   make(map[string]types.ColumnPreset),
	}
}

func (f *fakeStore) CreateUser(ctx context.Context, email, passwordHash string) (*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.users {
		if u.Email == email {
			return nil, store.ErrDuplicateEmail
		}
	}

	first := len(f.users) == 0
	f.nextUserID++
	u := &types.User{
		ID:           f.nextUserID,
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      first,
		IsApproved:   first,
		CreatedAt:    time.Now().UTC(),
	}
	f.users[u.ID] = u
	out := *u
	return &out, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []types.User
	for _, u := range f.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (f *fakeStore) SetUserAdmin(ctx context.Context, id int64, admin bool) error {
	return f.mutateUser(id, func(u *types.User) { u.IsAdmin = admin })
}

func (f *fakeStore) SetUserApproved(ctx context.Context, id int64, approved bool) error {
	return f.mutateUser(id, func(u *types.User) { u.IsApproved = approved })
}

func (f *fakeStore) DeleteUser(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	for tok, s := range f.sessions {
		if s.UserID == id {
			delete(f.sessions, tok)
		}
	}
	return nil
}

func (f *fakeStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return f.mutateUser(id, func(u *types.User) {
		u.PasswordHash = passwordHash
		u.FailedLogins = 0
		u.LockedUntil = nil
	})
}

func (f *fakeStore) RecordLoginFailure(ctx context.Context, id int64, threshold int, lockFor time.Duration) error {
	return f.mutateUser(id, func(u *types.User) {
		u.FailedLogins++
		if u.FailedLogins >= threshold {
			locked := time.Now().UTC().Add(lockFor)
			u.LockedUntil = &locked
			u.FailedLogins = 0
		}
	})
}

func (f *fakeStore) ClearLoginFailures(ctx context.Context, id int64) error {
	return f.mutateUser(id, func(u *types.User) {
		u.FailedLogins = 0
		u.LockedUntil = nil
	})
}

func (f *fakeStore) IncrementAIUsage(ctx context.Context, id int64) (int, error) {
	var count int
	err := f.mutateUser(id, func(u *types.User) {
		u.AIUsageCount++
		count = u.AIUsageCount
	})
	return count, err
}

func (f *fakeStore) mutateUser(id int64, fn func(*types.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(u)
	return nil
}

func (f *fakeStore) CreateSession(ctx context.Context, userID int64) (*types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTokenSeq++
	s := &types.Session{
		Token:     fmt.Sprintf("token-%d", f.nextTokenSeq),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	f.sessions[s.Token] = s
	out := *s
	return &out, nil
}

func (f *fakeStore) GetSession(ctx context.Context, token string) (*types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *s
	return &out, nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[token]; !ok {
		return store.ErrNotFound
	}
	delete(f.sessions, token)
	return nil
}

func (f *fakeStore) DeleteSessionsForUser(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for tok, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, tok)
		}
	}
	return nil
}

func (f *fakeStore) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for tok, s := range f.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(f.sessions, tok)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateProtocol(ctx context.Context, userID int64, name, data string) (*types.Protocol, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextProtoID++
	now := time.Now().UTC()
	p := &types.Protocol{
		ID:        f.nextProtoID,
		UserID:    userID,
		Name:      name,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.protocols[p.ID] = p
	out := *p
	return &out, nil
}

func (f *fakeStore) UpdateProtocol(ctx context.Context, id, userID int64, name, data string) error {
	return f.mutateProtocol(id, userID, func(p *types.Protocol) {
		p.Name = name
		p.Data = data
		p.UpdatedAt = time.Now().UTC()
	})
}

func (f *fakeStore) GetProtocol(ctx context.Context, id int64) (*types.Protocol, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.protocols[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (f *fakeStore) ListProtocols(ctx context.Context, userID int64, ownOnly bool) ([]types.ProtocolSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var summaries []types.ProtocolSummary
	for _, p := range f.protocols {
		if p.UserID != userID && (ownOnly || !p.IsPublic) {
			continue
		}
		summaries = append(summaries, types.ProtocolSummary{
			ID:       p.ID,
			Name:     p.Name,
			IsPublic: p.IsPublic,
			IsOwner:  p.UserID == userID,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].IsPublic != summaries[j].IsPublic {
			return summaries[i].IsPublic
		}
		return summaries[i].Name < summaries[j].Name
	})
	return summaries, nil
}

func (f *fakeStore) DeleteProtocol(ctx context.Context, id, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.protocols[id]
	if !ok {
		return store.ErrNotFound
	}
	if p.UserID != userID {
		return store.ErrNotOwner
	}
	delete(f.protocols, id)
	return nil
}

func (f *fakeStore) PublishProtocol(ctx context.Context, id, userID int64) error {
	return f.mutateProtocol(id, userID, func(p *types.Protocol) {
		p.IsPublic = true
	})
}

func (f *fakeStore) mutateProtocol(id, userID int64, fn func(*types.Protocol)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.protocols[id]
	if !ok {
		return store.ErrNotFound
	}
	if p.UserID != userID {
		return store.ErrNotOwner
	}
	fn(p)
	return nil
}

func (f *fakeStore) ListColumnPresets(ctx context.Context) ([]types.ColumnPreset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var presets []types.ColumnPreset
	for _, p := range f.presets {
		presets = append(presets, p)
	}
	sort.Slice(presets, func(i, j int) bool {
		oi, oj := 9999, 9999
		if presets[i].StandardOrder != nil {
			oi = *presets[i].StandardOrder
		}
		if presets[j].StandardOrder != nil {
			oj = *presets[j].StandardOrder
		}
		if oi != oj {
			return oi < oj
		}
		return presets[i].Key < presets[j].Key
	})
	return presets, nil
}

func (f *fakeStore) UpsertColumnPreset(ctx context.Context, preset types.ColumnPreset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presets[preset.Key] = preset
	return nil
}

func (f *fakeStore) DeleteColumnPreset(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.presets[key]; !ok {
		return store.ErrNotFound
	}
	delete(f.presets, key)
	return nil
}

func (f *fakeStore) SeedColumnPresets(ctx context.Context, presets []types.ColumnPreset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range presets {
		if _, ok := f.presets[p.Key]; !ok {
			f.presets[p.Key] = p
		}
	}
	return nil
}

func (f *fakeStore) RecordAIRequest(ctx context.Context, userID int64, prompt string, succeeded bool) (*types.AIRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req := types.AIRequest{
		ID:        fmt.Sprintf("req-%d", len(f.aiRequests)+1),
		UserID:    userID,
		Prompt:    prompt,
		Succeeded: succeeded,
		CreatedAt: time.Now().UTC(),
	}
	f.aiRequests = append(f.aiRequests, req)
	return &req, nil
}

func (f *fakeStore) Close() error { return nil }

// stubSuggester returns canned actions, or an error.
type stubSuggester struct {
	actions []protocol.Action
	err     error
}

func (s *stubSuggester) Suggest(ctx context.Context, prompt string, protocolJSON json.RawMessage) ([]protocol.Action, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.actions, nil
}

func (s *stubSuggester) ModelName() string { return "stub" }

// --- Test Harness ---

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Auth.LockoutThreshold = 3
	cfg.Auth.LockoutDuration = config.Duration(15 * time.Minute)
	cfg.AI.UsageLimit = 25
	return cfg
}

type testServer struct {
	handler *Handler
	store   *fakeStore
	router  http.Handler
}

func newTestServer(t *testing.T, sg *stubSuggester) *testServer {
	t.Helper()
	fs := newFakeStore()
	var suggester ai.Suggester
	if sg != nil {
		suggester = sg
	}
	h := NewHandler(fs, suggester, testConfig(), "test")
	return &testServer{handler: h, store: fs, router: NewRouter(h)}
}

// addUser creates an account directly in the store and returns it with a
// live session token.
func (ts *testServer) addUser(t *testing.T, email, password string, admin, approved bool) (*types.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := ts.store.CreateUser(context.Background(), email, string(hash))
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := ts.store.SetUserAdmin(context.Background(), u.ID, admin); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	if err := ts.store.SetUserApproved(context.Background(), u.ID, approved); err != nil {
		t.Fatalf("set approved: %v", err)
	}
	u.IsAdmin = admin
	u.IsApproved = approved

	sess, err := ts.store.CreateSession(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return u, sess.Token
}

func (ts *testServer) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
