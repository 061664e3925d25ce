package session

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sensorgate/internal/keys"
	"github.com/MrEthical07/sensorgate/store"
)

// ErrNotFound is returned when a session or its index entry is gone.
var ErrNotFound = errors.New("session not found")

// Store reads and writes Session, SessionIndex and LoginCooldown entries.
type Store struct {
	store    store.Store
	window   time.Duration
	cooldown time.Duration
}

// NewStore builds a Store with the session window and login cooldown.
func NewStore(s store.Store, window, cooldown time.Duration) *Store {
	return &Store{store: s, window: window, cooldown: cooldown}
}

// Window is the session lifetime after creation or the last validation.
func (s *Store) Window() time.Duration { return s.window }

// Create writes the session and its index entry with matching TTLs.
func (s *Store) Create(ctx context.Context, userID, sessionID string, p *Profile) error {
	raw, err := Encode(p)
	if err != nil {
		return err
	}
	return s.store.SetMany(ctx,
		store.Entry{Key: keys.Session(userID, sessionID), Value: raw, TTL: s.window},
		store.Entry{Key: keys.SessionMap(sessionID), Value: userID, TTL: s.window},
	)
}

// Lookup resolves sessionID to its owner through the index.
func (s *Store) Lookup(ctx context.Context, sessionID string) (string, error) {
	userID, err := s.store.Get(ctx, keys.SessionMap(sessionID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return userID, nil
}

// Get reads a session without sliding it.
func (s *Store) Get(ctx context.Context, userID, sessionID string) (*Profile, error) {
	raw, err := s.store.Get(ctx, keys.Session(userID, sessionID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return Decode(raw)
}

// Resolve performs the two point reads and slides both TTLs to the full
// window. EXPIRE never creates a key, so a session that expires between the
// read and the slide is reported as not found rather than resurrected.
func (s *Store) Resolve(ctx context.Context, sessionID string) (*Record, error) {
	userID, err := s.Lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.Expire(ctx, keys.Session(userID, sessionID), s.window)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	ok, err = s.store.Expire(ctx, keys.SessionMap(sessionID), s.window)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	return &Record{SessionID: sessionID, UserID: userID, Profile: p}, nil
}

// TTL reports the remaining lifetime of a session record.
func (s *Store) TTL(ctx context.Context, userID, sessionID string) (time.Duration, error) {
	return s.store.TTL(ctx, keys.Session(userID, sessionID))
}

// SessionIDs lists the live session ids of userID by pattern scan.
func (s *Store) SessionIDs(ctx context.Context, userID string) ([]string, error) {
	found, err := s.store.Keys(ctx, keys.SessionPattern(store.EscapePattern(userID)))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(found))
	for _, k := range found {
		if id, ok := keys.SessionIDFromKey(userID, k); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// DeleteAllForUser removes every session of userID and its index entry and
// returns the ids it removed.
//
// ATOMICITY NOTE: the scan and the delete are separate round trips, so a
// session written by a concurrent login after the scan survives. Logins for
// one account are serialized by the login cooldown, which leaves the race
// open only across logins that straddle its expiry.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.SessionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	toDelete := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		toDelete = append(toDelete, keys.Session(userID, id), keys.SessionMap(id))
	}
	if _, err := s.store.Delete(ctx, toDelete...); err != nil {
		return nil, err
	}
	return ids, nil
}

// Delete removes one session and its index entry. Missing keys are not an
// error.
func (s *Store) Delete(ctx context.Context, userID, sessionID string) error {
	_, err := s.store.Delete(ctx, keys.Session(userID, sessionID), keys.SessionMap(sessionID))
	return err
}

// AcquireLoginCooldown sets the cooldown for userID if absent. When it is
// already held, acquired is false and remaining is the seconds left.
func (s *Store) AcquireLoginCooldown(ctx context.Context, userID string) (acquired bool, remaining int64, err error) {
	key := keys.LoginCooldown(userID)
	ok, err := s.store.SetNX(ctx, key, "1", s.cooldown)
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := s.store.TTL(ctx, key)
	if err != nil {
		return false, 0, err
	}
	remaining = store.RemainingSeconds(ttl)
	if remaining == 0 {
		remaining = 1
	}
	return false, remaining, nil
}

// ReleaseLoginCooldown removes the cooldown for userID.
func (s *Store) ReleaseLoginCooldown(ctx context.Context, userID string) error {
	_, err := s.store.Delete(ctx, keys.LoginCooldown(userID))
	return err
}
