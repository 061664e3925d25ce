package sensorgate

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/sensorgate/internal/captcha"
	"github.com/MrEthical07/sensorgate/internal/codes"
	"github.com/MrEthical07/sensorgate/session"
)

// Kind is the error category surfaced to clients.
type Kind int

const (
	KindParams Kind = iota + 1
	KindNotAuthenticated
	KindOperation
	KindSystem
)

// Envelope codes. Success is 0.
const (
	CodeSuccess          = 0
	CodeParams           = 40000
	CodeNotAuthenticated = 40100
	CodeSystem           = 50000
	CodeOperation        = 50001
)

// Category sentinels. Every *Error unwraps to exactly one of these.
var (
	ErrParams           = errors.New("params error")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrOperation        = errors.New("operation error")
	ErrSystem           = errors.New("system error")
)

var (
	// ErrChallengeFailed covers any image challenge failure at login or
	// registration.
	ErrChallengeFailed = newError(KindParams, "verification failed")
	// ErrBadCredentials is returned for both unknown user and wrong password.
	ErrBadCredentials   = newError(KindParams, "username or password incorrect")
	ErrMissingFields    = newError(KindParams, "required fields are empty")
	ErrUserNameShort    = newError(KindParams, "username is too short")
	ErrUserNameFormat   = newError(KindParams, "username must start with a letter and contain only letters, digits and underscores")
	ErrPasswordShort    = newError(KindParams, "password is too short")
	ErrPasswordFormat   = newError(KindParams, "password must contain at least one letter and one digit")
	ErrPasswordMismatch = newError(KindParams, "passwords do not match")
	ErrUsernameTaken    = newError(KindParams, "username already exists")
	ErrEmailFormat      = newError(KindParams, "invalid email address")
	ErrPhoneFormat      = newError(KindParams, "invalid phone number")
	ErrNoContact        = newError(KindParams, "an email address or phone number is required")
	ErrCodeMissing      = newError(KindParams, "verification code is empty")
	ErrCodeMismatch     = newError(KindParams, "verification code incorrect or expired")
	ErrChallengeExpired = newError(KindParams, "verification code expired, request a new one")

	// ErrNotVerified is the parent of the per-channel not-verified errors.
	ErrNotVerified      = newError(KindParams, "contact not verified")
	ErrEmailNotVerified = &Error{Kind: KindParams, Message: "email not verified, verify it first", cause: ErrNotVerified}
	ErrPhoneNotVerified = &Error{Kind: KindParams, Message: "phone not verified, verify it first", cause: ErrNotVerified}

	// ErrTooManyAttempts is returned when a code is locked out; the code has
	// been deleted and must be requested again.
	ErrTooManyAttempts = newError(KindOperation, "too many attempts, request a new code")
	ErrCooldownActive  = newError(KindOperation, "operation too frequent")
	ErrRefreshLimited  = newError(KindOperation, "too many challenge requests")

	// ErrSessionNotFound is what the gate and Validate return for a missing
	// or expired session.
	ErrSessionNotFound = newError(KindNotAuthenticated, "not logged in")

	ErrStoreUnavailable = newError(KindSystem, "storage unavailable")
	ErrDeliveryFailed   = newError(KindSystem, "failed to deliver verification code")
	ErrEngineNotReady   = newError(KindSystem, "engine not initialized")
)

// Error is the typed error every Engine operation returns.
type Error struct {
	Kind    Kind
	Message string
	// RetryAfter is the remaining cooldown in seconds, when known.
	RetryAfter int64
	cause      error
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the category sentinel and, when present, the parent error.
func (e *Error) Unwrap() []error {
	out := []error{e.Kind.sentinel()}
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

func (k Kind) sentinel() error {
	switch k {
	case KindParams:
		return ErrParams
	case KindNotAuthenticated:
		return ErrNotAuthenticated
	case KindOperation:
		return ErrOperation
	default:
		return ErrSystem
	}
}

// Code maps a kind to its envelope code.
func (k Kind) Code() int {
	switch k {
	case KindParams:
		return CodeParams
	case KindNotAuthenticated:
		return CodeNotAuthenticated
	case KindOperation:
		return CodeOperation
	default:
		return CodeSystem
	}
}

func (k Kind) String() string {
	switch k {
	case KindParams:
		return "params"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindOperation:
		return "operation"
	default:
		return "system"
	}
}

// retryError derives a rate-limit error from parent with a remaining-time
// hint. errors.Is(err, parent) holds for the result.
func retryError(parent *Error, remaining int64) *Error {
	return &Error{
		Kind:       parent.Kind,
		Message:    fmt.Sprintf("%s, retry in %d seconds", parent.Message, remaining),
		RetryAfter: remaining,
		cause:      parent,
	}
}

func systemError(err error) *Error {
	return &Error{Kind: KindSystem, Message: ErrStoreUnavailable.Message, cause: fmt.Errorf("%w: %w", ErrStoreUnavailable, err)}
}

// RetryAfterOf returns the remaining seconds carried by err, or 0.
func RetryAfterOf(err error) int64 {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// KindOf classifies any error. Errors not produced by this package are
// treated as system errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSystem
}

// CodeOf returns the envelope code for err, or CodeSuccess for nil.
func CodeOf(err error) int {
	if err == nil {
		return CodeSuccess
	}
	return KindOf(err).Code()
}

// MessageOf returns the client-facing message. Causes of system errors are
// never exposed.
func MessageOf(err error) string {
	if err == nil {
		return "ok"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrSystem.Error()
}

// mapError converts errors from stores and internal components into *Error.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var (
		own *Error
		cd  *codes.CooldownError
		rl  *captcha.RefreshLimitError
	)
	switch {
	case errors.As(err, &own):
		return err
	case errors.As(err, &cd):
		return retryError(ErrCooldownActive, cd.Remaining)
	case errors.As(err, &rl):
		return retryError(ErrRefreshLimited, rl.Remaining)
	case errors.Is(err, codes.ErrTooManyAttempts):
		return ErrTooManyAttempts
	case errors.Is(err, captcha.ErrExpired):
		return ErrChallengeExpired
	case errors.Is(err, captcha.ErrMismatch), errors.Is(err, captcha.ErrMissing):
		return ErrChallengeFailed
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCorrupt):
		return ErrSessionNotFound
	}
	return systemError(err)
}
