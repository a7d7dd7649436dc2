package authcore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "correct horse battery"
	testName     = "alice"
)

// mockStore is an in-test CredentialStore. It mirrors the contract the
// engine relies on, including consume-once semantics, without pulling in a
// real adapter.
type mockStore struct {
	mu       sync.Mutex
	nextID   int
	accounts map[string]*Account // keyed by ID

	verifications map[string]verifRecord // token hash -> record
	verifByAcct   map[string]string

	failAll bool
}

type verifRecord struct {
	accountID string
	expires   time.Time
}

func newMockStore() *mockStore {
	return &mockStore{
		accounts:      make(map[string]*Account),
		verifications: make(map[string]verifRecord),
		verifByAcct:   make(map[string]string),
	}
}

var errMockBackend = fmt.Errorf("mock backend down")

func (m *mockStore) clone(a *Account) *Account {
	out := *a
	return &out
}

func (m *mockStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errMockBackend
	}
	for _, a := range m.accounts {
		if a.Email == NormalizeEmail(email) {
			return m.clone(a), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *mockStore) FindByGoogleID(ctx context.Context, googleID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errMockBackend
	}
	for _, a := range m.accounts {
		if a.GoogleID == googleID && a.GoogleID != "" {
			return m.clone(a), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *mockStore) FindByResetToken(ctx context.Context, tokenHash string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ResetTokenHash == tokenHash && tokenHash != "" {
			return m.clone(a), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *mockStore) Create(ctx context.Context, account *Account) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errMockBackend
	}

	email := NormalizeEmail(account.Email)
	for _, a := range m.accounts {
		if a.Email == email {
			return nil, ErrDuplicateEmail
		}
	}

	m.nextID++
	stored := m.clone(account)
	stored.ID = fmt.Sprintf("acct-%d", m.nextID)
	stored.Email = email
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	m.accounts[stored.ID] = stored
	return m.clone(stored), nil
}

func (m *mockStore) Save(ctx context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errMockBackend
	}
	stored, ok := m.accounts[account.ID]
	if !ok {
		return ErrAccountNotFound
	}
	updated := m.clone(account)
	updated.Email = stored.Email
	updated.UpdatedAt = time.Now().UTC()
	m.accounts[account.ID] = updated
	return nil
}

func (m *mockStore) ReplaceVerificationToken(ctx context.Context, accountID, tokenHash string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errMockBackend
	}
	if _, ok := m.accounts[accountID]; !ok {
		return ErrAccountNotFound
	}
	if prior, ok := m.verifByAcct[accountID]; ok {
		delete(m.verifications, prior)
	}
	m.verifications[tokenHash] = verifRecord{accountID: accountID, expires: expires}
	m.verifByAcct[accountID] = tokenHash
	return nil
}

func (m *mockStore) ConsumeVerificationToken(ctx context.Context, tokenHash string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.verifications[tokenHash]
	if !ok {
		return nil, ErrVerificationInvalid
	}
	delete(m.verifications, tokenHash)
	delete(m.verifByAcct, rec.accountID)
	if time.Now().After(rec.expires) {
		return nil, ErrVerificationInvalid
	}
	stored, ok := m.accounts[rec.accountID]
	if !ok {
		return nil, ErrVerificationInvalid
	}
	stored.Confirmed = true
	return m.clone(stored), nil
}

func (m *mockStore) ConsumeResetToken(ctx context.Context, tokenHash string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ResetTokenHash == tokenHash && tokenHash != "" {
			out := m.clone(a)
			a.ResetTokenHash = ""
			a.ResetTokenExpires = time.Time{}
			return out, nil
		}
	}
	return nil, ErrResetInvalid
}

// account returns the stored account by ID for assertions.
func (m *mockStore) account(t *testing.T, id string) *Account {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		t.Fatalf("no account %q in mock store", id)
	}
	return m.clone(a)
}

// liveVerificationToken returns the raw-hash of the account's outstanding
// verification token.
func (m *mockStore) liveVerificationHash(accountID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifByAcct[accountID]
}

// mockMail records every send and can be told to fail.
type mockMail struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

type sentMail struct {
	to      string
	subject string
	body    string
}

func (m *mockMail) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("relay refused")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *mockMail) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockMail) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	// Cheap hashing keeps the suite fast; production floors still hold.
	cfg.Password.MemoryKB = 8 * 1024
	cfg.Password.Iterations = 1
	cfg.Password.Threads = 1
	return cfg
}

func newTestRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type testEnv struct {
	engine *Engine
	store  *mockStore
	mail   *mockMail
	redis  *miniredis.Miniredis
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr, rdb := newTestRedisClient(t)

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store := newMockStore()
	sender := &mockMail{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithMailSender(sender).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, mail: sender, redis: mr}
}

// registerVerified registers an account and walks it through email
// verification so it can log in.
func (env *testEnv) registerVerified(t *testing.T) RegisterResult {
	t.Helper()
	ctx := context.Background()

	result, err := env.engine.Register(ctx, RegisterRequest{
		Email:           testEmail,
		Password:        testPassword,
		ConfirmPassword: testPassword,
		DisplayName:     testName,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	raw := env.verificationTokenFromMail(t)
	if _, err := env.engine.VerifyEmail(ctx, raw); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	return result
}

// verificationTokenFromMail extracts the raw token from the most recent
// verification mail.
func (env *testEnv) verificationTokenFromMail(t *testing.T) string {
	t.Helper()
	return tokenFromBody(t, env.mail.last(t).body)
}

func tokenFromBody(t *testing.T, body string) string {
	t.Helper()
	const marker = ": "
	idx := len(body)
	for i := len(body) - 1; i >= 1; i-- {
		if body[i-1:i+1] == marker {
			return body[i+1 : idx]
		}
	}
	t.Fatalf("no token in mail body %q", body)
	return ""
}

func (env *testEnv) login(t *testing.T) TokenPair {
	t.Helper()
	pair, err := env.engine.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return pair
}
