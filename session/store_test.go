package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sensorgate/internal/keys"
	"github.com/MrEthical07/sensorgate/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, NewStore(store.NewRedisStore(rdb), 30*time.Minute, 10*time.Second)
}

func testProfile() *Profile {
	created := time.Date(2024, 3, 9, 14, 5, 6, 0, time.Local)
	return &Profile{
		ID:         "u-1",
		UserName:   "bob",
		NickName:   "user_u-1",
		Email:      "bob@example.com",
		CreateTime: Time{created},
		UpdateTime: Time{created},
	}
}

func TestCreateWritesSessionAndIndex(t *testing.T) {
	mr, s := newSessionStoreTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, "u-1", "s-1", testProfile()); err != nil {
		t.Fatalf("create: %v", err)
	}

	if !mr.Exists("user:session:u-1:s-1") {
		t.Fatal("session key missing")
	}
	owner, err := mr.Get("session:map:s-1")
	if err != nil || owner != "u-1" {
		t.Fatalf("index entry: %q %v", owner, err)
	}
	if mr.TTL("user:session:u-1:s-1") != mr.TTL("session:map:s-1") {
		t.Fatal("session and index TTLs differ")
	}
}

func TestResolveSlidesBothKeys(t *testing.T) {
	mr, s := newSessionStoreTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, "u-1", "s-1", testProfile()); err != nil {
		t.Fatalf("create: %v", err)
	}

	var prev time.Duration
	for i := 0; i < 3; i++ {
		mr.FastForward(10 * time.Minute)
		rec, err := s.Resolve(ctx, "s-1")
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if rec.UserID != "u-1" || rec.Profile.UserName != "bob" {
			t.Fatalf("unexpected record %+v", rec)
		}
		ttl := mr.TTL("user:session:u-1:s-1")
		if ttl != 30*time.Minute {
			t.Fatalf("expected full window after slide, got %v", ttl)
		}
		if ttl < prev {
			t.Fatalf("ttl went backwards: %v < %v", ttl, prev)
		}
		prev = ttl
		if mr.TTL("session:map:s-1") != ttl {
			t.Fatal("index not slid with session")
		}
	}
}

func TestResolveDoesNotResurrect(t *testing.T) {
	mr, s := newSessionStoreTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, "u-1", "s-1", testProfile()); err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.FastForward(31 * time.Minute)

	if _, err := s.Resolve(ctx, "s-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if mr.Exists("user:session:u-1:s-1") || mr.Exists("session:map:s-1") {
		t.Fatal("expired session was resurrected")
	}
}

func TestResolveMissingHalf(t *testing.T) {
	mr, s := newSessionStoreTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, "u-1", "s-1", testProfile()); err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.Del("user:session:u-1:s-1")

	if _, err := s.Resolve(ctx, "s-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound with orphaned index, got %v", err)
	}
}

func TestDeleteAllForUserOnlyTouchesThatUser(t *testing.T) {
	mr, s := newSessionStoreTest(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := s.Create(ctx, "u-1", id, testProfile()); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := s.Create(ctx, "u-10", "c", testProfile()); err != nil {
		t.Fatalf("create: %v", err)
	}

	removed, err := s.DeleteAllForUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed, got %v", removed)
	}
	for _, id := range []string{"a", "b"} {
		if mr.Exists(keys.Session("u-1", id)) || mr.Exists(keys.SessionMap(id)) {
			t.Fatalf("session %s survived", id)
		}
	}
	if !mr.Exists(keys.Session("u-10", "c")) || !mr.Exists(keys.SessionMap("c")) {
		t.Fatal("another user's session was deleted")
	}
}

// scanHookStore runs afterScan once, right after the first Keys call.
type scanHookStore struct {
	store.Store
	once      sync.Once
	afterScan func()
}

func (s *scanHookStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	found, err := s.Store.Keys(ctx, pattern)
	s.once.Do(s.afterScan)
	return found, err
}

// A session created between the scan and the delete is not revoked. Logins
// for one account only avoid this while the login cooldown holds.
func TestDeleteAllForUserMissesSessionWrittenAfterScan(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	base := store.NewRedisStore(rdb)
	plain := NewStore(base, 30*time.Minute, 10*time.Second)
	if err := plain.Create(ctx, "u-1", "old", testProfile()); err != nil {
		t.Fatalf("create: %v", err)
	}

	hooked := &scanHookStore{Store: base}
	hooked.afterScan = func() {
		if err := plain.Create(ctx, "u-1", "late", testProfile()); err != nil {
			t.Errorf("late create: %v", err)
		}
	}
	s := NewStore(hooked, 30*time.Minute, 10*time.Second)

	removed, err := s.DeleteAllForUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if len(removed) != 1 || removed[0] != "old" {
		t.Fatalf("expected only the scanned session removed, got %v", removed)
	}
	if mr.Exists(keys.Session("u-1", "old")) {
		t.Fatal("scanned session survived")
	}
	if !mr.Exists(keys.Session("u-1", "late")) || !mr.Exists(keys.SessionMap("late")) {
		t.Fatal("session written after the scan should survive")
	}
}

func TestLoginCooldown(t *testing.T) {
	mr, s := newSessionStoreTest(t)
	ctx := context.Background()

	ok, _, err := s.AcquireLoginCooldown(ctx, "u-1")
	if err != nil || !ok {
		t.Fatalf("first acquire: %v %v", ok, err)
	}
	ok, remaining, err := s.AcquireLoginCooldown(ctx, "u-1")
	if err != nil || ok {
		t.Fatalf("second acquire should fail: %v %v", ok, err)
	}
	if remaining <= 0 || remaining > 10 {
		t.Fatalf("remaining out of range: %d", remaining)
	}

	if err := s.ReleaseLoginCooldown(ctx, "u-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, _, err = s.AcquireLoginCooldown(ctx, "u-1")
	if err != nil || !ok {
		t.Fatalf("acquire after release: %v %v", ok, err)
	}

	mr.FastForward(10 * time.Second)
	ok, _, err = s.AcquireLoginCooldown(ctx, "u-1")
	if err != nil || !ok {
		t.Fatalf("acquire after expiry: %v %v", ok, err)
	}
}

func TestProfileTimeFormat(t *testing.T) {
	raw, err := Encode(testProfile())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `"createTime":"2024-03-09 14:05:06"`
	if !strings.Contains(raw, want) {
		t.Fatalf("expected %s in %s", want, raw)
	}

	if _, err := Decode("{not json"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
