package flows

import (
	"context"
	"strings"

	"github.com/MrEthical07/sensorgate/session"
	"github.com/sirupsen/logrus"
)

// LoginInput is a login request after transport decoding.
type LoginInput struct {
	UserName      string
	Password      string
	ChallengeID   string
	ChallengeCode string
}

// LoginResult is returned on success. Delivering SessionID to the client is
// the caller's concern.
type LoginResult struct {
	SessionID string
	UserID    string
	Profile   *session.Profile
}

// LoginErrors carries host sentinels used by the login flow.
type LoginErrors struct {
	ChallengeFailed  error
	MissingFields    error
	UserNameTooShort error
	PasswordTooShort error
	BadCredentials   error
	Cooldown         func(remainingSeconds int64) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	MinUserNameLen int
	MinPasswordLen int

	// ChallengeRejected classifies VerifyChallenge errors. Nil treats every
	// error as a rejected answer.
	ChallengeRejected ChallengeClassifier

	VerifyChallenge func(ctx context.Context, id, code string) error
	FindUser        func(ctx context.Context, name string) (*UserRecord, bool, error)
	VerifyPassword  func(plain, hash string) (ok bool, upgrade bool, err error)
	HashPassword    func(string) (string, error)
	UpdateHash      func(ctx context.Context, userID, hash string) error

	AcquireCooldown   func(ctx context.Context, userID string) (bool, int64, error)
	DeleteAllSessions func(ctx context.Context, userID string) ([]string, error)
	NewSessionID      func() string
	CreateSession     func(ctx context.Context, userID, sessionID string, p *session.Profile) error

	Log    logrus.FieldLogger
	Report Reporter
	Errors LoginErrors
}

// RunLogin checks the challenge and credentials, applies the login cooldown,
// revokes every earlier session of the account, and issues a new one.
//
// Wrong user name and wrong password produce the same error.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps) (*LoginResult, error) {
	fail := func(reason, userID string, err error) (*LoginResult, error) {
		deps.Report.report(ctx, Outcome{Event: EventLogin, UserID: userID, Subject: in.UserName, Reason: reason})
		return nil, err
	}

	if err := deps.VerifyChallenge(ctx, in.ChallengeID, in.ChallengeCode); err != nil {
		if !deps.ChallengeRejected.rejected(err) {
			return nil, err
		}
		return fail("challenge", "", deps.Errors.ChallengeFailed)
	}

	if strings.TrimSpace(in.UserName) == "" || strings.TrimSpace(in.Password) == "" {
		return fail("missing_fields", "", deps.Errors.MissingFields)
	}
	if len(in.UserName) < deps.MinUserNameLen {
		return fail("user_name_length", "", deps.Errors.UserNameTooShort)
	}
	if len(in.Password) < deps.MinPasswordLen {
		return fail("password_length", "", deps.Errors.PasswordTooShort)
	}

	user, found, err := deps.FindUser(ctx, in.UserName)
	if err != nil {
		return nil, err
	}
	if !found {
		return fail("unknown_user", "", deps.Errors.BadCredentials)
	}

	ok, upgrade, err := deps.VerifyPassword(in.Password, user.PasswordHash)
	if err != nil {
		// An unreadable stored hash is treated as a mismatch so the caller
		// learns nothing about the account.
		if deps.Log != nil {
			deps.Log.WithError(err).WithField("user_id", user.ID).Error("stored password hash unreadable")
		}
		return fail("hash_unreadable", user.ID, deps.Errors.BadCredentials)
	}
	if !ok {
		return fail("bad_password", user.ID, deps.Errors.BadCredentials)
	}

	acquired, remaining, err := deps.AcquireCooldown(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return fail("cooldown", user.ID, deps.Errors.Cooldown(remaining))
	}

	if upgrade && deps.HashPassword != nil && deps.UpdateHash != nil {
		if next, err := deps.HashPassword(in.Password); err == nil {
			if err := deps.UpdateHash(ctx, user.ID, next); err != nil && deps.Log != nil {
				deps.Log.WithError(err).WithField("user_id", user.ID).Warn("password hash upgrade failed")
			}
		}
	}

	revoked, err := deps.DeleteAllSessions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(revoked) > 0 && deps.Log != nil {
		deps.Log.WithFields(logrus.Fields{"user_id": user.ID, "revoked": len(revoked)}).Info("previous sessions revoked")
	}

	sessionID := deps.NewSessionID()
	if err := deps.CreateSession(ctx, user.ID, sessionID, user.Profile); err != nil {
		return nil, err
	}

	deps.Report.report(ctx, Outcome{Event: EventLogin, Success: true, UserID: user.ID, SessionID: sessionID, Subject: in.UserName})
	return &LoginResult{SessionID: sessionID, UserID: user.ID, Profile: user.Profile}, nil
}
