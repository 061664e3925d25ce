package flows

import (
	"context"

	"github.com/MrEthical07/sensorgate/session"
)

// UserRecord is the flow-local account view.
type UserRecord struct {
	ID           string
	UserName     string
	PasswordHash string
	Profile      *session.Profile
}

// Outcome is what flows report for auditing and metrics.
type Outcome struct {
	Event     string
	Success   bool
	UserID    string
	SessionID string
	Subject   string
	Reason    string
}

// Reporter receives flow outcomes. A nil Reporter is ignored.
type Reporter func(ctx context.Context, o Outcome)

func (r Reporter) report(ctx context.Context, o Outcome) {
	if r != nil {
		r(ctx, o)
	}
}

// ChallengeClassifier reports whether a challenge error is the caller's
// wrong or stale answer. Anything else is returned to the host unchanged.
type ChallengeClassifier func(error) bool

func (c ChallengeClassifier) rejected(err error) bool {
	return c == nil || c(err)
}

// Event names shared by flows and the Engine's audit/metrics hooks.
const (
	EventRegister   = "register"
	EventLogin      = "login"
	EventValidate   = "validate"
	EventLogout     = "logout"
	EventSendCode   = "send_code"
	EventVerifyCode = "verify_code"
)
