package password

import "errors"

// ErrUnknownFormat is returned when no verifier recognizes a stored hash.
var ErrUnknownFormat = errors.New("unknown password hash format")

// Verifier checks a password against one stored hash format.
type Verifier interface {
	Handles(encoded string) bool
	Verify(plain, encoded string) (bool, error)
}

// Hasher hashes new passwords with argon2id and verifies any known format.
type Hasher struct {
	current  *Argon2
	fallback []Verifier
}

// NewHasher accepts argon2id hashes plus any extra legacy verifiers.
func NewHasher(current *Argon2, legacy ...Verifier) *Hasher {
	return &Hasher{current: current, fallback: legacy}
}

func (h *Hasher) Hash(plain string) (string, error) {
	return h.current.Hash(plain)
}

// Verify reports a match and whether the stored hash should be replaced.
func (h *Hasher) Verify(plain, encoded string) (ok bool, upgrade bool, err error) {
	if h.current.Handles(encoded) {
		ok, err = h.current.Verify(plain, encoded)
		if err != nil || !ok {
			return false, false, err
		}
		upgrade, err = h.current.NeedsUpgrade(encoded)
		return true, upgrade && err == nil, nil
	}
	for _, v := range h.fallback {
		if v.Handles(encoded) {
			ok, err = v.Verify(plain, encoded)
			return ok, ok, err
		}
	}
	return false, false, ErrUnknownFormat
}
