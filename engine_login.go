package sensorgate

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/MrEthical07/sensorgate/internal/flows"
	"github.com/MrEthical07/sensorgate/session"
	"github.com/sirupsen/logrus"
)

// Login checks the image challenge and credentials, then issues a session
// and revokes every earlier session of the account.
//
// A wrong user name and a wrong password both return ErrBadCredentials. A
// second login for the same account inside Session.LoginCooldown fails with
// the remaining seconds.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	res, err := flows.RunLogin(ctx, flows.LoginInput{
		UserName:      strings.TrimSpace(req.UserName),
		Password:      req.Password,
		ChallengeID:   req.ChallengeID,
		ChallengeCode: req.ChallengeCode,
	}, flows.LoginDeps{
		MinUserNameLen:    e.config.Policy.MinUserNameLen,
		MinPasswordLen:    e.config.Policy.MinPasswordLen,
		VerifyChallenge:   e.challenges.Verify,
		ChallengeRejected: challengeRejected,
		FindUser:          e.findUser,
		VerifyPassword:    e.hasher.Verify,
		HashPassword:      e.hasher.Hash,
		UpdateHash:        e.users.UpdatePasswordHash,
		AcquireCooldown:   e.sessions.AcquireLoginCooldown,
		DeleteAllSessions: e.sessions.DeleteAllForUser,
		NewSessionID:      e.newID,
		CreateSession:     e.sessions.Create,
		Log:               e.log,
		Report:            e.report,
		Errors: flows.LoginErrors{
			ChallengeFailed:  ErrChallengeFailed,
			MissingFields:    ErrMissingFields,
			UserNameTooShort: ErrUserNameShort,
			PasswordTooShort: ErrPasswordShort,
			BadCredentials:   ErrBadCredentials,
			Cooldown: func(remaining int64) error {
				return retryError(ErrCooldownActive, remaining)
			},
		},
	})
	if err != nil {
		if errors.Is(err, ErrBadCredentials) || IsRetry(err) {
			e.log.WithField("user_name", req.UserName).Warn("login rejected")
		}
		return nil, e.fail(EventLogin, err)
	}

	e.log.WithFields(logrus.Fields{"user_id": res.UserID, "session_id": res.SessionID}).Info("session created")
	return &LoginResult{SessionID: res.SessionID, Profile: res.Profile}, nil
}

func (e *Engine) findUser(ctx context.Context, name string) (*flows.UserRecord, bool, error) {
	u, found, err := e.users.FindByName(ctx, name)
	if err != nil || !found {
		return nil, false, err
	}
	return &flows.UserRecord{ID: u.ID, UserName: u.UserName, PasswordHash: u.PasswordHash, Profile: u.Profile()}, true, nil
}

// Register creates an account after the image challenge passes, the input
// satisfies the policy and the chosen contact channel was verified. The
// verified flag is consumed.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*Profile, error) {
	p, err := flows.RunRegister(ctx, flows.RegisterInput{
		UserName:      strings.TrimSpace(req.UserName),
		Password:      req.Password,
		CheckPassword: req.CheckPassword,
		NickName:      strings.TrimSpace(req.NickName),
		Gender:        req.Gender,
		Email:         req.Email,
		Phone:         req.Phone,
		ChallengeID:   req.ChallengeID,
		ChallengeCode: req.ChallengeCode,
	}, flows.RegisterDeps{
		MinUserNameLen:    e.config.Policy.MinUserNameLen,
		MinPasswordLen:    e.config.Policy.MinPasswordLen,
		VerifyChallenge:   e.challenges.Verify,
		ChallengeRejected: challengeRejected,
		ValidUserName:     e.config.Policy.UserName.MatchString,
		ValidPassword:     e.validPassword,
		ValidEmail:        e.validEmail,
		ValidPhone:        e.validPhone,
		CountByName:       e.users.CountByName,
		ConsumeVerified:   e.consumeVerified,
		HashPassword:      e.hasher.Hash,
		CreateUser:        e.createUser,
		Report:            e.report,
		Errors: flows.RegisterErrors{
			ChallengeFailed:  ErrChallengeFailed,
			MissingFields:    ErrMissingFields,
			UserNameTooShort: ErrUserNameShort,
			UserNameFormat:   ErrUserNameFormat,
			PasswordTooShort: ErrPasswordShort,
			PasswordFormat:   ErrPasswordFormat,
			PasswordMismatch: ErrPasswordMismatch,
			UserNameTaken:    ErrUsernameTaken,
			EmailFormat:      ErrEmailFormat,
			PhoneFormat:      ErrPhoneFormat,
			NoContactChannel: ErrNoContact,
			EmailNotVerified: ErrEmailNotVerified,
			PhoneNotVerified: ErrPhoneNotVerified,
		},
	})
	if err != nil {
		return nil, e.fail(EventRegister, err)
	}
	e.log.WithField("user_id", p.ID).Info("account created")
	return p, nil
}

func (e *Engine) createUser(ctx context.Context, in flows.RegisterInput, ch flows.Channel, hash string) (*session.Profile, error) {
	now := e.now()
	u := &User{
		ID:           e.newID(),
		UserName:     in.UserName,
		PasswordHash: hash,
		NickName:     in.NickName,
		Gender:       in.Gender,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if u.NickName == "" {
		u.NickName = defaultNickName(u.ID)
	}
	switch ch {
	case flows.ChannelPhone:
		u.Phone = strings.TrimSpace(in.Phone)
	default:
		u.Email = strings.TrimSpace(in.Email)
	}
	if err := e.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u.Profile(), nil
}

func defaultNickName(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "user_" + id
}

func (e *Engine) validPassword(pw string) bool {
	if !e.config.Policy.PasswordChars.MatchString(pw) {
		return false
	}
	var letter, digit bool
	for _, r := range pw {
		switch {
		case r <= unicode.MaxASCII && unicode.IsLetter(r):
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return letter && digit
}

func (e *Engine) validEmail(s string) bool { return e.config.Policy.Email.MatchString(s) }
func (e *Engine) validPhone(s string) bool { return e.config.Policy.Phone.MatchString(s) }

// IsRetry reports whether err is a cooldown or rate-limit error carrying a
// retry-after hint.
func IsRetry(err error) bool {
	return KindOf(err) == KindOperation && RetryAfterOf(err) > 0
}
