package sensorgate

import (
	"context"
	"time"

	"github.com/MrEthical07/sensorgate/session"
)

// Profile is the public account view returned by Login and Validate and
// cached inside the session.
type Profile = session.Profile

// User is an account as stored by a UserStore.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	NickName     string
	Gender       int
	Email        string
	Phone        string
	Avatar       string
	Role         int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile projects u onto its public view.
func (u *User) Profile() *Profile {
	return &Profile{
		ID:         u.ID,
		UserName:   u.UserName,
		NickName:   u.NickName,
		Gender:     u.Gender,
		Email:      u.Email,
		Phone:      u.Phone,
		Avatar:     u.Avatar,
		UserRole:   u.Role,
		CreateTime: session.Time{Time: u.CreatedAt},
		UpdateTime: session.Time{Time: u.UpdatedAt},
	}
}

// UserStore persists accounts. Implementations must be safe for concurrent
// use. FindByName reports found=false, not an error, for unknown names.
// Create returns ErrUsernameTaken when the name is already in use.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByName(ctx context.Context, userName string) (*User, bool, error)
	CountByName(ctx context.Context, userName string) (int, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// Mailer delivers an emailed verification code.
type Mailer interface {
	SendCode(ctx context.Context, to, code string, expiry time.Duration) error
}

// SMSSender delivers a texted verification code.
type SMSSender interface {
	SendCode(ctx context.Context, phone, code string, expiry time.Duration) error
}

// Renderer draws an image challenge.
type Renderer interface {
	Render(code string) ([]byte, error)
	ContentType() string
}

// LoginRequest is the login form.
type LoginRequest struct {
	UserName      string `json:"userName"`
	Password      string `json:"password"`
	ChallengeID   string `json:"codeKey"`
	ChallengeCode string `json:"code"`
}

// RegisterRequest is the registration form. Exactly one of Email or Phone
// must be verified beforehand; Email wins when both are set.
type RegisterRequest struct {
	UserName      string `json:"userName"`
	Password      string `json:"password"`
	CheckPassword string `json:"checkPassword"`
	NickName      string `json:"nickName"`
	Gender        int    `json:"gender"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	ChallengeID   string `json:"codeKey"`
	ChallengeCode string `json:"code"`
}

// LoginResult carries the new session id. Callers deliver it as the
// session cookie.
type LoginResult struct {
	SessionID string
	Profile   *Profile
}

// Challenge is an issued image challenge.
type Challenge struct {
	ID          string `json:"codeKey"`
	Image       []byte `json:"-"`
	ContentType string `json:"-"`
}

// Channel names a contact channel for RegisterGate.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)
