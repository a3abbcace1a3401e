package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/movie-tracker/internal/handler"
	"github.com/iliyamo/movie-tracker/internal/middleware"
	"github.com/iliyamo/movie-tracker/internal/model"
	"github.com/iliyamo/movie-tracker/internal/queue"
	"github.com/iliyamo/movie-tracker/internal/repository"
	"github.com/iliyamo/movie-tracker/internal/router"
	"github.com/iliyamo/movie-tracker/internal/utils"
)

const testSecret = "handler-test-secret"

// memEntries is an in-memory EntryStore with the same validation contract
// as repository.EntryRepo.
type memEntries struct {
	mu      sync.Mutex
	seq     int
	items   map[string]model.Entry
	listErr error
}

func newMemEntries() *memEntries { return &memEntries{items: map[string]model.Entry{}} }

func (m *memEntries) Insert(_ context.Context, e *model.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	e.ID = fmt.Sprintf("e-%d", m.seq)
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	m.items[e.ID] = *e
	return nil
}

func (m *memEntries) FindByID(_ context.Context, id string) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return nil, repository.ErrEntryNotFound
	}
	return &e, nil
}

func (m *memEntries) FindAllByOwner(_ context.Context, ownerID string, kind model.Kind) ([]*model.Entry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Entry, 0)
	for _, e := range m.items {
		if e.Owner == ownerID && (kind == "" || e.Kind == kind) {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (m *memEntries) UpdateByID(_ context.Context, id string, p model.EntryPatch) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return nil, repository.ErrEntryNotFound
	}
	e.Apply(p)
	if err := e.Validate(); err != nil {
		return nil, err
	}
	e.UpdatedAt = time.Now().UTC()
	m.items[id] = e
	return &e, nil
}

func (m *memEntries) DeleteByID(_ context.Context, id string) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return nil, repository.ErrEntryNotFound
	}
	delete(m.items, id)
	return &e, nil
}

func (m *memEntries) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type memUsers struct {
	mu   sync.Mutex
	seq  int
	byID map[string]model.User
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	m.seq++
	u.ID = fmt.Sprintf("u-%d", m.seq)
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

type refreshRow struct {
	userID  string
	exp     time.Time
	revoked bool
}

type memTokens struct {
	mu   sync.Mutex
	rows map[string]*refreshRow
	// staleReads makes ValidateRefresh miss revocations, like a read that
	// raced with a concurrent refresh.
	staleReads bool
}

func (m *memTokens) StoreRefresh(_ context.Context, userID, hash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[hash] = &refreshRow{userID: userID, exp: exp}
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[hash]
	if !ok || (r.revoked && !m.staleReads) || time.Now().After(r.exp) {
		return "", repository.ErrInvalidRefresh
	}
	return r.userID, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[hash]
	if !ok || r.revoked {
		return repository.ErrInvalidRefresh
	}
	r.revoked = true
	return nil
}

func (m *memTokens) revoked(raw string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[utils.HashRefreshRaw(raw)]
	return ok && r.revoked
}

// memSessions is both the logout revoker and the middleware's checker.
type memSessions struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

func (m *memSessions) Revoke(_ context.Context, jti string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[jti] = until
	return nil
}

func (m *memSessions) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ids[jti]
	return ok, nil
}

type recPublisher struct {
	mu     sync.Mutex
	events []queue.EntryEvent
}

func (p *recPublisher) Publish(_ context.Context, ev queue.EntryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recPublisher) all() []queue.EntryEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.EntryEvent(nil), p.events...)
}

type testEnv struct {
	e        *echo.Echo
	entries  *memEntries
	users    *memUsers
	tokens   *memTokens
	sessions *memSessions
	events   *recPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newLimitedEnv(t, nil)
}

// newLimitedEnv is newTestEnv with rateLimit mounted the way serve does.
func newLimitedEnv(t *testing.T, rateLimit echo.MiddlewareFunc) *testEnv {
	t.Helper()
	env := &testEnv{
		e:        echo.New(),
		entries:  newMemEntries(),
		users:    &memUsers{byID: map[string]model.User{}},
		tokens:   &memTokens{rows: map[string]*refreshRow{}},
		sessions: &memSessions{ids: map[string]time.Time{}},
		events:   &recPublisher{},
	}
	env.e.HTTPErrorHandler = handler.ErrorHandler

	auth := handler.NewAuthHandler(handler.AuthConfig{
		JWTSecret:  testSecret,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, env.users, env.tokens, env.sessions)

	router.RegisterRoutes(env.e, router.Deps{
		Auth:      auth,
		Entries:   handler.NewEntryHandler(env.entries, env.events),
		JWT:       middleware.JWTAuth(testSecret, env.sessions),
		RateLimit: rateLimit,
	})
	return env
}

// tokenFor signs an access token for uid.
func tokenFor(t *testing.T, uid string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, uid, time.Minute)
	require.NoError(t, err)
	return tok.Token
}

// do sends a JSON request, authenticated by an access cookie when token is
// not empty.
func (env *testEnv) do(method, path, body, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.AccessCookie, Value: token})
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}
