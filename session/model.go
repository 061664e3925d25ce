package session

import (
	"strings"
	"time"
)

// TimeLayout is the wire format of profile timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Profile is the public account snapshot cached with a session.
type Profile struct {
	ID         string `json:"id"`
	UserName   string `json:"userName"`
	NickName   string `json:"nickName"`
	Gender     int    `json:"gender"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	UserRole   int    `json:"userRole"`
	CreateTime Time   `json:"createTime"`
	UpdateTime Time   `json:"updateTime"`
}

// Time marshals as TimeLayout in local time.
type Time struct {
	time.Time
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Local().Format(TimeLayout) + `"`), nil
}

func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Record is a resolved session.
type Record struct {
	SessionID string
	UserID    string
	Profile   *Profile
}
