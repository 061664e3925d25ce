package sensorgate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sensorgate/internal/keys"
	"github.com/MrEthical07/sensorgate/password"
)

func TestLoginReplacesEarlierSession(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.seedUser(t, "bob_01", "secret123")

	first, err := te.login(t, "bob_01", "secret123")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if first.Profile.UserName != "bob_01" {
		t.Fatalf("unexpected profile %+v", first.Profile)
	}

	te.mr.FastForward(10 * time.Second)

	second, err := te.login(t, "bob_01", "secret123")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Fatal("expected a new session id")
	}

	if _, err := te.Validate(ctx, first.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected first session revoked, got %v", err)
	}
	p, err := te.Validate(ctx, second.SessionID)
	if err != nil {
		t.Fatalf("validate second: %v", err)
	}
	if p.ID != "id-bob_01" {
		t.Fatalf("unexpected profile id %q", p.ID)
	}

	ids, err := te.sessions.SessionIDs(ctx, "id-bob_01")
	if err != nil {
		t.Fatalf("SessionIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != second.SessionID {
		t.Fatalf("expected exactly the second session, got %v", ids)
	}
}

func TestLoginCooldownReportsRemainingSeconds(t *testing.T) {
	te := newTestEngine(t, nil)
	te.seedUser(t, "bob_01", "secret123")

	if _, err := te.login(t, "bob_01", "secret123"); err != nil {
		t.Fatalf("first login: %v", err)
	}
	te.mr.FastForward(3 * time.Second)

	_, err := te.login(t, "bob_01", "secret123")
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected cooldown, got %v", err)
	}
	if CodeOf(err) != CodeOperation {
		t.Fatalf("expected operation code, got %d", CodeOf(err))
	}
	if got := RetryAfterOf(err); got <= 0 || got > 10 {
		t.Fatalf("retry after out of range: %d", got)
	}
}

func TestLogoutClearsSessionIndexAndCooldown(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.seedUser(t, "bob_01", "secret123")

	res, err := te.login(t, "bob_01", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := te.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	for _, k := range []string{
		keys.Session("id-bob_01", res.SessionID),
		keys.SessionMap(res.SessionID),
		keys.LoginCooldown("id-bob_01"),
	} {
		if te.mr.Exists(k) {
			t.Fatalf("expected %s deleted", k)
		}
	}

	if _, err := te.login(t, "bob_01", "secret123"); err != nil {
		t.Fatalf("immediate re-login after logout: %v", err)
	}
	if err := te.Logout(ctx, "no-such-session"); err != nil {
		t.Fatalf("logout of unknown session must succeed: %v", err)
	}
}

func TestLoginCredentialFailuresAreIndistinguishable(t *testing.T) {
	te := newTestEngine(t, nil)
	te.seedUser(t, "bob_01", "secret123")

	_, unknown := te.login(t, "nobody_1", "secret123")
	_, wrong := te.login(t, "bob_01", "wrong1234")

	if !errors.Is(unknown, ErrBadCredentials) || !errors.Is(wrong, ErrBadCredentials) {
		t.Fatalf("expected bad credentials, got %v / %v", unknown, wrong)
	}
	if unknown.Error() != wrong.Error() {
		t.Fatalf("messages differ: %q vs %q", unknown, wrong)
	}
	if te.mr.Exists(keys.LoginCooldown("id-bob_01")) {
		t.Fatal("failed login must not set the cooldown")
	}
}

func TestLoginChecksChallengeFirst(t *testing.T) {
	te := newTestEngine(t, nil)
	te.seedUser(t, "bob_01", "secret123")

	id, _ := te.challenge(t)
	_, err := te.Login(context.Background(), LoginRequest{
		UserName:      "",
		Password:      "",
		ChallengeID:   id,
		ChallengeCode: "0000",
	})
	if !errors.Is(err, ErrChallengeFailed) {
		t.Fatalf("expected challenge failure before field checks, got %v", err)
	}
	if CodeOf(err) != CodeParams {
		t.Fatalf("expected params code, got %d", CodeOf(err))
	}
}

func TestLoginLengthFloors(t *testing.T) {
	te := newTestEngine(t, nil)

	if _, err := te.login(t, "bob", "secret123"); !errors.Is(err, ErrUserNameShort) {
		t.Fatalf("expected short user name, got %v", err)
	}
	if _, err := te.login(t, "bob_01", "short1"); !errors.Is(err, ErrPasswordShort) {
		t.Fatalf("expected short password, got %v", err)
	}
}

func TestConcurrentLoginsYieldOneSession(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.seedUser(t, "bob_01", "secret123")

	const n = 4
	reqs := make([]LoginRequest, n)
	for i := range reqs {
		id, code := te.challenge(t)
		reqs[i] = LoginRequest{UserName: "bob_01", Password: "secret123", ChallengeID: id, ChallengeCode: code}
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		cooldowns int
	)
	for _, req := range reqs {
		wg.Add(1)
		go func(req LoginRequest) {
			defer wg.Done()
			_, err := te.Login(ctx, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrCooldownActive):
				cooldowns++
			}
		}(req)
	}
	wg.Wait()

	if successes != 1 || cooldowns != n-1 {
		t.Fatalf("expected 1 success and %d cooldowns, got %d/%d", n-1, successes, cooldowns)
	}
	ids, err := te.sessions.SessionIDs(ctx, "id-bob_01")
	if err != nil {
		t.Fatalf("SessionIDs: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected one live session, got %d", len(ids))
	}
}

func TestValidateSlidesWithoutResurrecting(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Session.Window = time.Minute })
	ctx := context.Background()
	te.seedUser(t, "bob_01", "secret123")

	res, err := te.login(t, "bob_01", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	sessionKey := keys.Session("id-bob_01", res.SessionID)

	te.mr.FastForward(40 * time.Second)
	before := te.mr.TTL(sessionKey)
	if _, err := te.Validate(ctx, res.SessionID); err != nil {
		t.Fatalf("validate: %v", err)
	}
	after := te.mr.TTL(sessionKey)
	if after <= before || after != time.Minute {
		t.Fatalf("expected ttl slid to full window, before=%v after=%v", before, after)
	}
	if te.mr.TTL(keys.SessionMap(res.SessionID)) != time.Minute {
		t.Fatal("index ttl must slide with the session")
	}

	te.mr.FastForward(61 * time.Second)
	if _, err := te.Validate(ctx, res.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
	if te.mr.Exists(sessionKey) {
		t.Fatal("expired session resurrected")
	}
	if _, err := te.Validate(ctx, ""); CodeOf(err) != CodeNotAuthenticated {
		t.Fatalf("blank session id: %v", err)
	}
}

func TestLegacyHashUpgradedOnLogin(t *testing.T) {
	te := newTestEngine(t, nil)
	te.seedUserHash(t, "legacy_1", password.LegacyDigest("secret123"))

	if _, err := te.login(t, "legacy_1", "secret123"); err != nil {
		t.Fatalf("legacy login: %v", err)
	}
	argon, _ := password.NewArgon2(fastArgon)
	if !argon.Handles(te.users.hashOf("legacy_1")) {
		t.Fatalf("expected argon2id hash after upgrade, got %q", te.users.hashOf("legacy_1"))
	}
}

func TestLoginSurfacesStoreOutageDuringChallenge(t *testing.T) {
	te := newTestEngine(t, nil)
	te.seedUser(t, "bob_01", "secret123")

	id, code := te.challenge(t)
	te.mr.Close()

	_, err := te.Login(context.Background(), LoginRequest{
		UserName:      "bob_01",
		Password:      "secret123",
		ChallengeID:   id,
		ChallengeCode: code,
	})
	if KindOf(err) != KindSystem {
		t.Fatalf("expected system error, got kind=%v err=%v", KindOf(err), err)
	}
	if errors.Is(err, ErrChallengeFailed) {
		t.Fatal("store outage reported as a wrong answer")
	}
}
