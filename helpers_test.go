package sensorgate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/sensorgate/password"
	"github.com/MrEthical07/sensorgate/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	logrustest "github.com/sirupsen/logrus/hooks/test"
)

var fastArgon = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// memUsers is a minimal UserStore for engine tests.
type memUsers struct {
	mu     sync.Mutex
	byName map[string]*User
}

func newMemUsers() *memUsers {
	return &memUsers{byName: map[string]*User{}}
}

func (m *memUsers) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[u.UserName]; ok {
		return ErrUsernameTaken
	}
	cp := *u
	m.byName[u.UserName] = &cp
	return nil
}

func (m *memUsers) FindByName(_ context.Context, name string) (*User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byName[name]
	if !ok {
		return nil, false, nil
	}
	cp := *u
	return &cp, true, nil
}

func (m *memUsers) CountByName(_ context.Context, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; ok {
		return 1, nil
	}
	return 0, nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byName {
		if u.ID == userID {
			u.PasswordHash = hash
			return nil
		}
	}
	return fmt.Errorf("user %s not found", userID)
}

func (m *memUsers) hashOf(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byName[name].PasswordHash
}

// capturingRenderer remembers the last code it drew.
type capturingRenderer struct {
	mu   sync.Mutex
	last string
}

func (r *capturingRenderer) Render(code string) ([]byte, error) {
	r.mu.Lock()
	r.last = code
	r.mu.Unlock()
	return []byte("img:" + code), nil
}

func (r *capturingRenderer) ContentType() string { return "image/png" }

func (r *capturingRenderer) lastCode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// outbox records delivered codes for one channel.
type outbox struct {
	mu   sync.Mutex
	sent map[string]string
	fail atomic.Bool
	// onSend runs before each delivery attempt when set.
	onSend func()
}

func newOutbox() *outbox { return &outbox{sent: map[string]string{}} }

func (o *outbox) SendCode(_ context.Context, to, code string, _ time.Duration) error {
	if o.onSend != nil {
		o.onSend()
	}
	if o.fail.Load() {
		return fmt.Errorf("gateway down")
	}
	o.mu.Lock()
	o.sent[to] = code
	o.mu.Unlock()
	return nil
}

func (o *outbox) code(to string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent[to]
}

type testEngine struct {
	*Engine
	mr       *miniredis.Miniredis
	store    store.Store
	users    *memUsers
	renderer *capturingRenderer
	mail     *outbox
	sms      *outbox
	logs     *logrustest.Hook
	seq      atomic.Int64
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEngine {
	t.Helper()

	mr, rdb := newTestRedis(t)
	cfg := DefaultConfig()
	cfg.Password = fastArgon
	cfg.Audit.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	logger, logs := logrustest.NewNullLogger()
	te := &testEngine{
		logs:     logs,
		mr:       mr,
		store:    store.NewRedisStore(rdb),
		users:    newMemUsers(),
		renderer: &capturingRenderer{},
		mail:     newOutbox(),
		sms:      newOutbox(),
	}
	engine, err := New().
		WithConfig(cfg).
		WithStore(te.store).
		WithUserStore(te.users).
		WithRenderer(te.renderer).
		WithMailer(te.mail).
		WithSMS(te.sms).
		WithLogger(logger).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	te.Engine = engine
	return te
}

// challenge issues a challenge under a fresh identity and returns its id and
// answer.
func (te *testEngine) challenge(t *testing.T) (string, string) {
	t.Helper()

	ch, err := te.IssueChallenge(context.Background(), fmt.Sprintf("test:%d", te.seq.Add(1)))
	if err != nil {
		t.Fatalf("IssueChallenge failed: %v", err)
	}
	return ch.ID, strings.ToLower(te.renderer.lastCode())
}

func (te *testEngine) seedUser(t *testing.T, name, plain string) *User {
	t.Helper()

	argon, err := password.NewArgon2(fastArgon)
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	hash, err := argon.Hash(plain)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	return te.seedUserHash(t, name, hash)
}

func (te *testEngine) seedUserHash(t *testing.T, name, hash string) *User {
	t.Helper()

	now := time.Now()
	u := &User{
		ID:           "id-" + name,
		UserName:     name,
		PasswordHash: hash,
		NickName:     name,
		Email:        name + "@example.com",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := te.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return u
}

func (te *testEngine) login(t *testing.T, name, plain string) (*LoginResult, error) {
	t.Helper()

	id, code := te.challenge(t)
	return te.Login(context.Background(), LoginRequest{
		UserName:      name,
		Password:      plain,
		ChallengeID:   id,
		ChallengeCode: code,
	})
}
