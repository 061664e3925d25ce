package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/sensorgate/session"
)

// ValidateDeps captures session validation dependencies.
type ValidateDeps struct {
	Resolve          func(ctx context.Context, sessionID string) (*session.Record, error)
	IsNotFound       func(error) bool
	NotAuthenticated error
}

// RunValidate resolves and slides a session. Missing or expired sessions
// map to NotAuthenticated; store failures are returned as-is.
func RunValidate(ctx context.Context, sessionID string, deps ValidateDeps) (*session.Record, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, deps.NotAuthenticated
	}
	rec, err := deps.Resolve(ctx, sessionID)
	if err != nil {
		if deps.IsNotFound(err) || errors.Is(err, session.ErrCorrupt) {
			return nil, deps.NotAuthenticated
		}
		return nil, err
	}
	return rec, nil
}
