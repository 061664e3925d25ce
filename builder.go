package sensorgate

import (
	"errors"
	"time"

	"github.com/MrEthical07/sensorgate/internal"
	"github.com/MrEthical07/sensorgate/internal/audit"
	"github.com/MrEthical07/sensorgate/internal/captcha"
	"github.com/MrEthical07/sensorgate/internal/codes"
	"github.com/MrEthical07/sensorgate/password"
	"github.com/MrEthical07/sensorgate/session"
	"github.com/MrEthical07/sensorgate/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder assembles an Engine. Configure it once during start-up; Build may
// be called only once.
type Builder struct {
	config Config
	store  store.Store

	users    UserStore
	mailer   Mailer
	sms      SMSSender
	renderer Renderer

	log       logrus.FieldLogger
	auditSink AuditSink
	metrics   MetricsRecorder

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the TTL store. The Engine does not close it.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithRedis is WithStore over a go-redis client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.store = store.NewRedisStore(client)
	return b
}

func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithSMS(s SMSSender) *Builder {
	b.sms = s
	return b
}

// WithRenderer replaces the default SVG challenge renderer.
func (b *Builder) WithRenderer(r Renderer) *Builder {
	b.renderer = r
	return b
}

// WithLogger sets the logger for the Engine and its components. Without
// one, output is discarded.
func (b *Builder) WithLogger(log logrus.FieldLogger) *Builder {
	b.log = log
	return b
}

// WithAuditSink replaces the default sink, which writes audit events through
// the Engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetrics(m MetricsRecorder) *Builder {
	b.metrics = m
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("store is required")
	}
	if b.users == nil {
		return nil, errors.New("user store is required")
	}

	log := internal.LoggerOrDiscard(b.log)
	cfg := b.config

	argon, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, err
	}

	var renderer captcha.Renderer = captcha.SVGRenderer{}
	if b.renderer != nil {
		renderer = b.renderer
	}

	metrics := b.metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	sink := b.auditSink
	if sink == nil {
		sink = audit.LogSink{Log: log.WithField("component", "audit")}
	}

	e := &Engine{
		config:   cfg,
		store:    b.store,
		sessions: session.NewStore(b.store, cfg.Session.Window, cfg.Session.LoginCooldown),
		codes: codes.New(b.store, codes.Config{
			MaxAttempts: cfg.Code.MaxAttempts,
			Digits:      cfg.Code.Digits,
		}, log.WithField("component", "codes")),
		challenges: captcha.New(b.store, captcha.Config{
			Length:        cfg.Challenge.Length,
			TTL:           cfg.Challenge.TTL,
			RefreshLimit:  cfg.Challenge.RefreshLimit,
			RefreshWindow: cfg.Challenge.RefreshWindow,
			MaxAttempts:   cfg.Challenge.MaxAttempts,
		}, renderer, log.WithField("component", "captcha")),
		hasher:  password.NewHasher(argon, password.LegacyMD5{}),
		users:   b.users,
		mailer:  b.mailer,
		sms:     b.sms,
		metrics: metrics,
		log:     log,
		newID:   uuid.NewString,
		now:     time.Now,
	}
	e.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Now:        e.now,
		Log:        log.WithField("component", "audit"),
	}, sink, func(audit.Event) { metrics.AuditDropped() })

	b.built = true
	return e, nil
}
