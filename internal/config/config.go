// Package config loads the service configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/sensorgate"
	"github.com/MrEthical07/sensorgate/devicetoken"
	"github.com/MrEthical07/sensorgate/notify"
	"github.com/MrEthical07/sensorgate/userstore"
)

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
	DryRun       bool   `yaml:"dry_run"`
}

type SMSConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	SenderID string `yaml:"sender_id"`
	DryRun   bool   `yaml:"dry_run"`
}

type AuthConfig struct {
	SessionWindow time.Duration `yaml:"session_window"`
	LoginCooldown time.Duration `yaml:"login_cooldown"`
	CookieSecure  bool          `yaml:"cookie_secure"`
}

type TelemetryConfig struct {
	// Feed enables the Redis pub/sub subscriber.
	Feed         bool          `yaml:"feed"`
	ViewerBuffer int           `yaml:"viewer_buffer"`
	DeviceSecret string        `yaml:"device_secret"`
	DeviceTTL    time.Duration `yaml:"device_ttl"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// File is the service configuration document.
type File struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  PostgresConfig  `yaml:"database"`
	Email     EmailConfig     `yaml:"email"`
	SMS       SMSConfig       `yaml:"sms"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Sentry    SentryConfig    `yaml:"sentry"`
}

// Default returns the configuration used when no file is present.
func Default() File {
	return File{
		Server: ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Log:    LogConfig{Level: "info", Format: "text"},
		Redis:  RedisConfig{Addr: "127.0.0.1:6379"},
		Database: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Email: EmailConfig{SMTPPort: 587},
		Auth: AuthConfig{
			SessionWindow: 30 * time.Minute,
			LoginCooldown: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{Feed: true, ViewerBuffer: 64, DeviceTTL: 24 * time.Hour},
		Sentry:    SentryConfig{Environment: "development"},
	}
}

// Load reads path over the defaults, then applies environment overrides. A
// .env file in the working directory is loaded first when present. An empty
// path skips the YAML step; a named file that does not exist is an error.
func Load(path string) (File, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return File{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return File{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return File{}, err
	}
	return cfg, cfg.Validate()
}

func (c *File) applyEnv() error {
	envString("HTTP_ADDR", &c.Server.Addr)
	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FORMAT", &c.Log.Format)
	envString("REDIS_ADDR", &c.Redis.Addr)
	envString("REDIS_PASSWORD", &c.Redis.Password)
	envString("DATABASE_URL", &c.Database.DSN)
	envString("SMTP_HOST", &c.Email.SMTPHost)
	envString("SMTP_USER", &c.Email.SMTPUser)
	envString("SMTP_PASSWORD", &c.Email.SMTPPassword)
	envString("SMTP_FROM", &c.Email.FromEmail)
	envString("SMS_ENDPOINT", &c.SMS.Endpoint)
	envString("SMS_API_KEY", &c.SMS.APIKey)
	envString("DEVICE_JWT_SECRET", &c.Telemetry.DeviceSecret)
	envString("SENTRY_DSN", &c.Sentry.DSN)
	envString("APP_ENV", &c.Sentry.Environment)

	for name, dst := range map[string]*int{
		"REDIS_DB":  &c.Redis.DB,
		"SMTP_PORT": &c.Email.SMTPPort,
	} {
		if err := envInt(name, dst); err != nil {
			return err
		}
	}
	for name, dst := range map[string]*time.Duration{
		"SESSION_WINDOW": &c.Auth.SessionWindow,
		"LOGIN_COOLDOWN": &c.Auth.LoginCooldown,
	} {
		if err := envDuration(name, dst); err != nil {
			return err
		}
	}
	for name, dst := range map[string]*bool{
		"COOKIE_SECURE":  &c.Auth.CookieSecure,
		"EMAIL_DRY_RUN":  &c.Email.DryRun,
		"SMS_DRY_RUN":    &c.SMS.DryRun,
		"TELEMETRY_FEED": &c.Telemetry.Feed,
	} {
		if err := envBool(name, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the fields every deployment needs.
func (c File) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("config: server.addr is required")
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("config: redis.addr is required")
	}
	if c.Auth.SessionWindow <= 0 {
		return errors.New("config: auth.session_window must be positive")
	}
	if c.Auth.LoginCooldown < 0 {
		return errors.New("config: auth.login_cooldown must not be negative")
	}
	return nil
}

// Engine overlays the auth settings on base.
func (c File) Engine(base sensorgate.Config) sensorgate.Config {
	base.Session.Window = c.Auth.SessionWindow
	base.Session.LoginCooldown = c.Auth.LoginCooldown
	base.Session.CookieSecure = c.Auth.CookieSecure
	return base
}

func (c File) Pool() userstore.PoolConfig {
	return userstore.PoolConfig{
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

func (c File) Mail() notify.MailConfig {
	return notify.MailConfig{
		Host:     c.Email.SMTPHost,
		Port:     c.Email.SMTPPort,
		User:     c.Email.SMTPUser,
		Password: c.Email.SMTPPassword,
		From:     c.Email.FromEmail,
		DryRun:   c.Email.DryRun || c.Email.SMTPHost == "",
	}
}

func (c File) SMSGateway() notify.SMSConfig {
	return notify.SMSConfig{
		Endpoint: c.SMS.Endpoint,
		APIKey:   c.SMS.APIKey,
		Sender:   c.SMS.SenderID,
		DryRun:   c.SMS.DryRun,
	}
}

// DeviceToken returns the device token settings. ok is false when no secret
// is configured and device publishing stays disabled.
func (c File) DeviceToken() (cfg devicetoken.Config, ok bool) {
	if c.Telemetry.DeviceSecret == "" {
		return devicetoken.Config{}, false
	}
	return devicetoken.Config{
		Secret:   []byte(c.Telemetry.DeviceSecret),
		Issuer:   "sensorgate",
		Audience: "devices",
		TTL:      c.Telemetry.DeviceTTL,
		Leeway:   30 * time.Second,
	}, true
}

func envString(name string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", name, err)
	}
	*dst = d
	return nil
}

func envBool(name string, dst *bool) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", name, err)
	}
	*dst = b
	return nil
}
