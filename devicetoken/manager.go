package devicetoken

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalid is returned for tokens that fail parsing or validation.
	ErrInvalid = errors.New("devicetoken: invalid token")
	// ErrKindNotAllowed is returned by Authorize when the token does not cover
	// the requested reading kind.
	ErrKindNotAllowed = errors.New("devicetoken: kind not allowed")
)

const minSecretLen = 32

// Config holds the signing secret and claim expectations.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	// TTL is the default lifetime for Issue; zero issues tokens without expiry.
	TTL    time.Duration
	Leeway time.Duration
}

// Claims identify a device and the reading kinds it may publish. An empty
// Kinds list allows every kind.
type Claims struct {
	DeviceID string   `json:"did"`
	Kinds    []string `json:"kinds,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and parses device tokens.
type Manager struct {
	config Config
	now    func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("devicetoken: secret must be at least %d bytes", minSecretLen)
	}
	if cfg.TTL < 0 {
		return nil, errors.New("devicetoken: negative ttl")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("devicetoken: invalid leeway")
	}
	return &Manager{config: cfg, now: time.Now}, nil
}

// Issue signs a token for deviceID restricted to kinds.
func (m *Manager) Issue(deviceID string, kinds ...string) (string, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return "", errors.New("devicetoken: empty device id")
	}

	now := m.now()
	claims := Claims{
		DeviceID: deviceID,
		Kinds:    kinds,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  deviceID,
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   m.config.Issuer,
		},
	}
	if m.config.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.config.TTL))
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Parse verifies the signature and registered claims of token.
func (m *Manager) Parse(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.DeviceID == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

// Authorize parses token and checks that it covers kind.
func (m *Manager) Authorize(token, kind string) (*Claims, error) {
	claims, err := m.Parse(token)
	if err != nil {
		return nil, err
	}
	if len(claims.Kinds) > 0 && !slices.Contains(claims.Kinds, kind) {
		return nil, ErrKindNotAllowed
	}
	return claims, nil
}
