package sensorgate

import (
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Session.CookieName != "sessionId" || cfg.Session.LoginCooldown != 10*time.Second {
		t.Fatalf("unexpected session defaults %+v", cfg.Session)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"zero attempts":      func(c *Config) { c.Code.MaxAttempts = 0 },
		"digits too long":    func(c *Config) { c.Code.Digits = 11 },
		"zero email expiry":  func(c *Config) { c.Code.EmailExpiry = 0 },
		"zero challenge ttl": func(c *Config) { c.Challenge.TTL = 0 },
		"zero window":        func(c *Config) { c.Session.Window = 0 },
		"empty cookie name":  func(c *Config) { c.Session.CookieName = "" },
		"nil pattern":        func(c *Config) { c.Policy.Email = nil },
		"weak argon2":        func(c *Config) { c.Password.Memory = 1024 },
		"zero audit buffer":  func(c *Config) { c.Audit.BufferSize = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestPasswordPolicy(t *testing.T) {
	e := &Engine{config: DefaultConfig()}
	for pw, want := range map[string]bool{
		"secret123":  true,
		"Pa$$w0rd":   true,
		"abcdefgh":   false,
		"12345678":   false,
		"secret 123": false,
		"sécret123":  false,
	} {
		if got := e.validPassword(pw); got != want {
			t.Fatalf("validPassword(%q) = %v, want %v", pw, got, want)
		}
	}
}
