package sensorgate

import (
	"errors"
	"regexp"
	"time"

	"github.com/MrEthical07/sensorgate/password"
)

// Config is the complete Engine configuration. Start from DefaultConfig and
// override fields; Build calls Validate.
type Config struct {
	Code      CodeConfig
	Challenge ChallengeConfig
	Session   SessionConfig
	Policy    PolicyConfig
	Password  password.Config
	Audit     AuditConfig
}

// CodeConfig controls emailed and texted verification codes.
type CodeConfig struct {
	MaxAttempts int
	Digits      int
	EmailExpiry time.Duration
	SMSExpiry   time.Duration
	// SendCooldown is the minimum gap between two sends to one address.
	SendCooldown time.Duration
	// VerifiedTTL is how long a verified address stays usable for
	// registration.
	VerifiedTTL time.Duration
}

// ChallengeConfig controls image challenges.
type ChallengeConfig struct {
	Length        int
	TTL           time.Duration
	RefreshLimit  int
	RefreshWindow time.Duration
	MaxAttempts   int
}

// SessionConfig controls server-side sessions and the cookie carrying them.
type SessionConfig struct {
	Window        time.Duration
	LoginCooldown time.Duration
	CookieName    string
	CookieSecure  bool
}

// PolicyConfig holds input-format rules for registration and login.
type PolicyConfig struct {
	MinUserNameLen int
	MinPasswordLen int
	UserName       *regexp.Regexp
	// PasswordChars restricts the password alphabet. Letter and digit
	// presence is checked separately.
	PasswordChars *regexp.Regexp
	Email         *regexp.Regexp
	Phone         *regexp.Regexp
}

// AuditConfig controls the asynchronous audit pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

var (
	defaultUserNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{3,15}$`)
	defaultPasswordChars   = regexp.MustCompile(`^[A-Za-z\d@$!%*#?&]{8,}$`)
	defaultEmailPattern    = regexp.MustCompile(`^[a-zA-Z0-9_-]+@[a-zA-Z0-9_-]+(\.[a-zA-Z0-9_-]+)+$`)
	defaultPhonePattern    = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Code: CodeConfig{
			MaxAttempts:  5,
			Digits:       6,
			EmailExpiry:  60 * time.Second,
			SMSExpiry:    300 * time.Second,
			SendCooldown: 60 * time.Second,
			VerifiedTTL:  30 * time.Minute,
		},
		Challenge: ChallengeConfig{
			Length:        4,
			TTL:           180 * time.Second,
			RefreshLimit:  5,
			RefreshWindow: 60 * time.Second,
			MaxAttempts:   5,
		},
		Session: SessionConfig{
			Window:        30 * time.Minute,
			LoginCooldown: 10 * time.Second,
			CookieName:    "sessionId",
		},
		Policy: PolicyConfig{
			MinUserNameLen: 4,
			MinPasswordLen: 8,
			UserName:       defaultUserNamePattern,
			PasswordChars:  defaultPasswordChars,
			Email:          defaultEmailPattern,
			Phone:          defaultPhonePattern,
		},
		Password: password.DefaultConfig(),
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

// Validate checks the configuration for values the Engine cannot run with.
func (c *Config) Validate() error {
	if c.Code.MaxAttempts <= 0 {
		return errors.New("Code MaxAttempts must be > 0")
	}
	if c.Code.Digits < 4 || c.Code.Digits > 10 {
		return errors.New("Code Digits must be between 4 and 10")
	}
	if c.Code.EmailExpiry <= 0 || c.Code.SMSExpiry <= 0 {
		return errors.New("Code expiries must be > 0")
	}
	if c.Code.SendCooldown < 0 {
		return errors.New("Code SendCooldown must be >= 0")
	}
	if c.Code.VerifiedTTL <= 0 {
		return errors.New("Code VerifiedTTL must be > 0")
	}

	if c.Challenge.Length <= 0 {
		return errors.New("Challenge Length must be > 0")
	}
	if c.Challenge.TTL <= 0 {
		return errors.New("Challenge TTL must be > 0")
	}
	if c.Challenge.RefreshLimit <= 0 || c.Challenge.RefreshWindow <= 0 {
		return errors.New("Challenge refresh limit and window must be > 0")
	}
	if c.Challenge.MaxAttempts <= 0 {
		return errors.New("Challenge MaxAttempts must be > 0")
	}

	if c.Session.Window <= 0 {
		return errors.New("Session Window must be > 0")
	}
	if c.Session.LoginCooldown <= 0 {
		return errors.New("Session LoginCooldown must be > 0")
	}
	if c.Session.CookieName == "" {
		return errors.New("Session CookieName must be set")
	}

	if c.Policy.MinUserNameLen < 1 || c.Policy.MinPasswordLen < 1 {
		return errors.New("Policy length floors must be >= 1")
	}
	if c.Policy.UserName == nil || c.Policy.PasswordChars == nil || c.Policy.Email == nil || c.Policy.Phone == nil {
		return errors.New("Policy patterns must be set")
	}

	if _, err := password.NewArgon2(c.Password); err != nil {
		return err
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}
