package flows

import (
	"context"
	"strings"

	"github.com/MrEthical07/sensorgate/session"
)

// Channel selects which verified contact backs a registration.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

// RegisterInput is a registration request after transport decoding.
type RegisterInput struct {
	UserName      string
	Password      string
	CheckPassword string
	NickName      string
	Gender        int
	Email         string
	Phone         string
	ChallengeID   string
	ChallengeCode string
}

// RegisterErrors carries host sentinels used by the registration flow.
type RegisterErrors struct {
	ChallengeFailed  error
	MissingFields    error
	UserNameTooShort error
	UserNameFormat   error
	PasswordTooShort error
	PasswordFormat   error
	PasswordMismatch error
	UserNameTaken    error
	EmailFormat      error
	PhoneFormat      error
	NoContactChannel error
	EmailNotVerified error
	PhoneNotVerified error
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	MinUserNameLen int
	MinPasswordLen int

	// ChallengeRejected classifies VerifyChallenge errors. Nil treats every
	// error as a rejected answer.
	ChallengeRejected ChallengeClassifier

	VerifyChallenge func(ctx context.Context, id, code string) error
	ValidUserName   func(string) bool
	ValidPassword   func(string) bool
	ValidEmail      func(string) bool
	ValidPhone      func(string) bool
	CountByName     func(ctx context.Context, name string) (int, error)

	// ConsumeVerified deletes the verified flag for a channel address and
	// reports whether it existed.
	ConsumeVerified func(ctx context.Context, channel Channel, address string) (bool, error)
	HashPassword    func(string) (string, error)
	CreateUser      func(ctx context.Context, in RegisterInput, channel Channel, passwordHash string) (*session.Profile, error)

	Report Reporter
	Errors RegisterErrors
}

// RunRegister validates input, checks the contact channel was verified,
// consumes that proof, and creates the account.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) (*session.Profile, error) {
	if err := deps.VerifyChallenge(ctx, in.ChallengeID, in.ChallengeCode); err != nil {
		if !deps.ChallengeRejected.rejected(err) {
			return nil, err
		}
		deps.Report.report(ctx, Outcome{Event: EventRegister, Subject: in.UserName, Reason: "challenge"})
		return nil, deps.Errors.ChallengeFailed
	}

	if err := validateRegisterInput(in, deps); err != nil {
		return nil, err
	}

	count, err := deps.CountByName(ctx, in.UserName)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, deps.Errors.UserNameTaken
	}

	channel, address, err := pickChannel(in, deps)
	if err != nil {
		return nil, err
	}

	// The flag is consumed before the row is written so two registrations
	// racing on one address cannot both pass. A failed insert costs the
	// user one re-verification.
	ok, err := deps.ConsumeVerified(ctx, channel, address)
	if err != nil {
		return nil, err
	}
	if !ok {
		deps.Report.report(ctx, Outcome{Event: EventRegister, Subject: address, Reason: "not_verified"})
		if channel == ChannelPhone {
			return nil, deps.Errors.PhoneNotVerified
		}
		return nil, deps.Errors.EmailNotVerified
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	profile, err := deps.CreateUser(ctx, in, channel, hash)
	if err != nil {
		return nil, err
	}

	deps.Report.report(ctx, Outcome{Event: EventRegister, Success: true, UserID: profile.ID, Subject: address})
	return profile, nil
}

func validateRegisterInput(in RegisterInput, deps RegisterDeps) error {
	if strings.TrimSpace(in.UserName) == "" || strings.TrimSpace(in.Password) == "" || strings.TrimSpace(in.CheckPassword) == "" {
		return deps.Errors.MissingFields
	}
	if len(in.UserName) < deps.MinUserNameLen {
		return deps.Errors.UserNameTooShort
	}
	if !deps.ValidUserName(in.UserName) {
		return deps.Errors.UserNameFormat
	}
	if len(in.Password) < deps.MinPasswordLen {
		return deps.Errors.PasswordTooShort
	}
	if !deps.ValidPassword(in.Password) {
		return deps.Errors.PasswordFormat
	}
	if in.Password != in.CheckPassword {
		return deps.Errors.PasswordMismatch
	}
	return nil
}

// Email wins when both are present.
func pickChannel(in RegisterInput, deps RegisterDeps) (Channel, string, error) {
	if email := strings.TrimSpace(in.Email); email != "" {
		if !deps.ValidEmail(email) {
			return "", "", deps.Errors.EmailFormat
		}
		return ChannelEmail, email, nil
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		if !deps.ValidPhone(phone) {
			return "", "", deps.Errors.PhoneFormat
		}
		return ChannelPhone, phone, nil
	}
	return "", "", deps.Errors.NoContactChannel
}
