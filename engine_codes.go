package sensorgate

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/sensorgate/internal/flows"
	"github.com/MrEthical07/sensorgate/internal/keys"
)

func codeErrors(invalid error) flows.CodeErrors {
	return flows.CodeErrors{
		InvalidAddress: invalid,
		MissingCode:    ErrCodeMissing,
		CodeMismatch:   ErrCodeMismatch,
		DeliveryFailed: ErrDeliveryFailed,
	}
}

type codeChannel struct {
	valid       func(string) bool
	invalid     error
	expiry      time.Duration
	cooldownKey func(string) string
	verifiedKey func(string) string
	deliver     func(ctx context.Context, address, code string, expiry time.Duration) error
}

func (e *Engine) emailChannel() codeChannel {
	return codeChannel{
		valid:       e.validEmail,
		invalid:     ErrEmailFormat,
		expiry:      e.config.Code.EmailExpiry,
		cooldownKey: keys.EmailCooldown,
		verifiedKey: keys.EmailVerified,
		deliver: func(ctx context.Context, address, code string, expiry time.Duration) error {
			if e.mailer == nil {
				return ErrDeliveryFailed
			}
			return e.mailer.SendCode(ctx, address, code, expiry)
		},
	}
}

// Phone codes share the email:verify: namespace with email codes.
func (e *Engine) phoneChannel() codeChannel {
	return codeChannel{
		valid:       e.validPhone,
		invalid:     ErrPhoneFormat,
		expiry:      e.config.Code.SMSExpiry,
		cooldownKey: keys.SMSCooldown,
		verifiedKey: keys.PhoneVerified,
		deliver: func(ctx context.Context, address, code string, expiry time.Duration) error {
			if e.sms == nil {
				return ErrDeliveryFailed
			}
			return e.sms.SendCode(ctx, address, code, expiry)
		},
	}
}

// SendEmailCode mails a fresh six-digit code to address. A second send inside
// the cooldown fails with the remaining seconds. When delivery fails the
// code and cooldown are rolled back.
func (e *Engine) SendEmailCode(ctx context.Context, address string) error {
	return e.sendCode(ctx, address, e.emailChannel())
}

// SendPhoneCode texts a fresh code to phone.
func (e *Engine) SendPhoneCode(ctx context.Context, phone string) error {
	return e.sendCode(ctx, phone, e.phoneChannel())
}

// VerifyEmailCode redeems an emailed code and marks the address verified for
// Code.VerifiedTTL.
func (e *Engine) VerifyEmailCode(ctx context.Context, address, code string) error {
	return e.verifyCode(ctx, address, code, e.emailChannel())
}

// VerifyPhoneCode redeems a texted code and marks the phone verified.
func (e *Engine) VerifyPhoneCode(ctx context.Context, phone, code string) error {
	return e.verifyCode(ctx, phone, code, e.phoneChannel())
}

func (e *Engine) sendCode(ctx context.Context, address string, ch codeChannel) error {
	err := flows.RunSendCode(ctx, address, flows.SendCodeDeps{
		ValidAddress: ch.valid,
		CheckCooldown: func(ctx context.Context, address string) error {
			return e.codes.CheckCooldown(ctx, ch.cooldownKey(address))
		},
		Generate: e.codes.Generate,
		Store: func(ctx context.Context, address, code string) error {
			return e.codes.Send(ctx, keys.Code(address), code, ch.expiry, ch.cooldownKey(address), e.config.Code.SendCooldown)
		},
		Deliver: func(ctx context.Context, address, code string) error {
			err := ch.deliver(ctx, address, code, ch.expiry)
			if err != nil {
				e.log.WithError(err).WithField("address", address).Error("code delivery failed")
			}
			return err
		},
		Revoke: func(ctx context.Context, address string) error {
			err := e.codes.Revoke(ctx, keys.Code(address), ch.cooldownKey(address))
			if err != nil {
				e.log.WithError(err).WithField("address", address).Error("code rollback failed, cooldown left in place")
			}
			return err
		},
		Report: e.report,
		Errors: codeErrors(ch.invalid),
	})
	if err != nil {
		return e.fail(EventSendCode, err)
	}
	return nil
}

func (e *Engine) verifyCode(ctx context.Context, address, code string, ch codeChannel) error {
	err := flows.RunVerifyCode(ctx, address, code, flows.VerifyCodeDeps{
		ValidAddress: ch.valid,
		Verify: func(ctx context.Context, address, code string) (bool, error) {
			return e.codes.Verify(ctx, keys.Code(address), code)
		},
		MarkVerified: func(ctx context.Context, address string) error {
			return e.codes.MarkVerified(ctx, ch.verifiedKey(address), e.config.Code.VerifiedTTL)
		},
		Report: e.report,
		Errors: codeErrors(ch.invalid),
	})
	if err != nil {
		return e.fail(EventVerifyCode, err)
	}
	return nil
}

// IsVerified reports whether address holds a live verified flag.
func (e *Engine) IsVerified(ctx context.Context, address string, ch Channel) (bool, error) {
	ok, err := e.codes.IsVerified(ctx, verifiedKey(address, ch))
	if err != nil {
		return false, e.fail("is_verified", err)
	}
	return ok, nil
}

// RegisterGate consumes the verified flag for address. It fails with
// ErrEmailNotVerified or ErrPhoneNotVerified when no flag is live. Only one
// of several concurrent callers succeeds.
func (e *Engine) RegisterGate(ctx context.Context, address string, ch Channel) error {
	ok, err := e.consumeVerified(ctx, flows.Channel(ch), address)
	if err != nil {
		return e.fail("register_gate", err)
	}
	if !ok {
		if ch == ChannelPhone {
			return ErrPhoneNotVerified
		}
		return ErrEmailNotVerified
	}
	return nil
}

func (e *Engine) consumeVerified(ctx context.Context, ch flows.Channel, address string) (bool, error) {
	return e.codes.ConsumeVerified(ctx, verifiedKey(strings.TrimSpace(address), Channel(ch)))
}

func verifiedKey(address string, ch Channel) string {
	if ch == ChannelPhone {
		return keys.PhoneVerified(address)
	}
	return keys.EmailVerified(address)
}
