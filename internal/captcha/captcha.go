// Package captcha issues and redeems short image challenges scoped to a
// client identity.
//
// A challenge is stored lowercased under image:code:{identity}:{uuid}. Each
// identity may request at most RefreshLimit challenges per RefreshWindow.
// After MaxAttempts verify calls a challenge stays in place but is refused
// until it expires; the client is told to request a new one.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/sensorgate/internal"
	"github.com/MrEthical07/sensorgate/internal/keys"
	"github.com/MrEthical07/sensorgate/internal/limiters"
	"github.com/MrEthical07/sensorgate/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrMissing is returned for a blank challenge id or code.
	ErrMissing = errors.New("challenge id and code are required")
	// ErrExpired is returned when no challenge is stored under the id, or
	// when its attempts are exhausted.
	ErrExpired = errors.New("challenge expired, request a new one")
	// ErrMismatch is returned when the submitted code is wrong.
	ErrMismatch = errors.New("challenge code mismatch")
)

// RefreshLimitError is returned by Issue when the identity has requested too
// many challenges in the current window.
type RefreshLimitError struct {
	Remaining int64
}

func (e *RefreshLimitError) Error() string {
	return fmt.Sprintf("too many challenge requests, retry in %d seconds", e.Remaining)
}

// Renderer turns a code into image bytes.
type Renderer interface {
	Render(code string) ([]byte, error)
	ContentType() string
}

// Config controls challenge shape and policy.
type Config struct {
	Length        int
	TTL           time.Duration
	RefreshLimit  int
	RefreshWindow time.Duration
	MaxAttempts   int
}

// DefaultConfig is four characters, three minutes, five refreshes per minute
// and five attempts.
func DefaultConfig() Config {
	return Config{
		Length:        4,
		TTL:           180 * time.Second,
		RefreshLimit:  5,
		RefreshWindow: 60 * time.Second,
		MaxAttempts:   5,
	}
}

// Challenge is what the client receives.
type Challenge struct {
	ID          string
	Image       []byte
	ContentType string
}

// Service owns ImageChallenge and RefreshCounter entries.
type Service struct {
	store    store.Store
	config   Config
	refresh  *limiters.FixedWindow
	renderer Renderer
	log      logrus.FieldLogger
}

// New builds a Service. A nil renderer falls back to SVG text rendering.
func New(s store.Store, cfg Config, renderer Renderer, log logrus.FieldLogger) *Service {
	def := DefaultConfig()
	if cfg.Length <= 0 {
		cfg.Length = def.Length
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.RefreshLimit <= 0 {
		cfg.RefreshLimit = def.RefreshLimit
	}
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = def.RefreshWindow
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if renderer == nil {
		renderer = SVGRenderer{}
	}
	return &Service{
		store:    s,
		config:   cfg,
		refresh:  limiters.NewFixedWindow(s, limiters.WindowConfig{Limit: cfg.RefreshLimit, Window: cfg.RefreshWindow}),
		renderer: renderer,
		log:      internal.LoggerOrDiscard(log),
	}
}

// Issue creates a challenge for identity.
func (s *Service) Issue(ctx context.Context, identity string) (*Challenge, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, errors.New("captcha: identity is required")
	}

	decision, err := s.refresh.Hit(ctx, keys.ImageRefresh(identity))
	if err != nil {
		if errors.Is(err, limiters.ErrWindowExceeded) {
			s.log.WithFields(logrus.Fields{"identity": identity, "count": decision.Count}).Warn("challenge refresh limit hit")
			return nil, &RefreshLimitError{Remaining: store.RemainingSeconds(decision.RetryAfter)}
		}
		return nil, err
	}

	code, err := internal.NewCode(internal.ChallengeAlphabet, s.config.Length)
	if err != nil {
		return nil, err
	}

	img, err := s.renderer.Render(code)
	if err != nil {
		return nil, fmt.Errorf("captcha: render: %w", err)
	}

	id := keys.ImageChallengeID(identity, uuid.NewString())
	if err := s.store.Set(ctx, keys.ImageCode(id), strings.ToLower(code), s.config.TTL); err != nil {
		return nil, err
	}

	return &Challenge{ID: id, Image: img, ContentType: s.renderer.ContentType()}, nil
}

// Verify redeems a challenge. A match deletes the code and its counter.
func (s *Service) Verify(ctx context.Context, id, submitted string) error {
	submitted = strings.TrimSpace(submitted)
	if strings.TrimSpace(id) == "" || submitted == "" {
		return ErrMissing
	}

	codeKey := keys.ImageCode(id)
	stored, err := s.store.Get(ctx, codeKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrExpired
		}
		return err
	}

	attemptsKey := keys.ImageAttempts(id)
	n, err := s.store.Incr(ctx, attemptsKey)
	if err != nil {
		return err
	}
	if n == 1 {
		if _, err := s.store.Expire(ctx, attemptsKey, s.config.TTL); err != nil {
			return err
		}
	}
	if n > int64(s.config.MaxAttempts) {
		s.log.WithField("key", id).Warn("challenge attempts exhausted")
		return ErrExpired
	}

	if stored != strings.ToLower(submitted) {
		return ErrMismatch
	}

	if _, err := s.store.Delete(ctx, codeKey, attemptsKey); err != nil {
		return err
	}
	return nil
}
