package devicetoken

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.Secret == nil {
		cfg.Secret = testSecret
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndParse(t *testing.T) {
	m := newTestManager(t, Config{TTL: time.Hour, Issuer: "sensorgate", Audience: "devices"})

	token, err := m.Issue("crane-07", "gas")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.DeviceID != "crane-07" || claims.Subject != "crane-07" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt == nil {
		t.Fatal("expected expiry to be set")
	}
}

func TestNewManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewManager(Config{Secret: []byte("short")}); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
	if _, err := NewManager(Config{Secret: testSecret, Leeway: time.Hour}); err == nil {
		t.Fatal("expected large leeway to be rejected")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := newTestManager(t, Config{TTL: time.Minute})
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	token, err := m.Issue("crane-07")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m.now = time.Now
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestParseRejectsOtherSecretAndAlgorithm(t *testing.T) {
	m := newTestManager(t, Config{})
	other := newTestManager(t, Config{Secret: []byte("ffffffffffffffffffffffffffffffff")})

	token, err := other.Issue("crane-07")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected signature mismatch to fail, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{DeviceID: "crane-07"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := m.Parse(unsigned); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected alg none to fail, got %v", err)
	}
}

func TestParseChecksIssuerAndAudience(t *testing.T) {
	issuer := newTestManager(t, Config{Issuer: "other", Audience: "devices"})
	m := newTestManager(t, Config{Issuer: "sensorgate", Audience: "devices"})

	token, err := issuer.Issue("crane-07")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected issuer mismatch to fail, got %v", err)
	}
}

func TestAuthorizeKinds(t *testing.T) {
	m := newTestManager(t, Config{})

	scoped, _ := m.Issue("crane-07", "angle")
	if _, err := m.Authorize(scoped, "angle"); err != nil {
		t.Fatalf("angle should be allowed: %v", err)
	}
	if _, err := m.Authorize(scoped, "gas"); !errors.Is(err, ErrKindNotAllowed) {
		t.Fatalf("expected ErrKindNotAllowed, got %v", err)
	}

	open, _ := m.Issue("crane-08")
	if _, err := m.Authorize(open, "gas"); err != nil {
		t.Fatalf("unscoped token should allow gas: %v", err)
	}

	if _, err := m.Issue("  "); err == nil {
		t.Fatal("expected empty device id to be rejected")
	}
}
