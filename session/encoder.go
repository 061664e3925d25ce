package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorrupt is returned when a stored profile cannot be decoded.
var ErrCorrupt = errors.New("session profile corrupt")

// Encode serializes a profile for storage.
func Encode(p *Profile) (string, error) {
	if p == nil {
		return "", errors.New("nil profile")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a stored profile.
func Decode(raw string) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &p, nil
}
