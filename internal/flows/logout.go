package flows

import (
	"context"
	"strings"
)

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Lookup          func(ctx context.Context, sessionID string) (string, error)
	IsNotFound      func(error) bool
	DeleteSession   func(ctx context.Context, userID, sessionID string) error
	ReleaseCooldown func(ctx context.Context, userID string) error
	Report          Reporter
}

// RunLogout deletes the session, its index entry and the owner's login
// cooldown. Logging out an unknown or expired session succeeds.
func RunLogout(ctx context.Context, sessionID string, deps LogoutDeps) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}

	userID, err := deps.Lookup(ctx, sessionID)
	if err != nil {
		if deps.IsNotFound(err) {
			return nil
		}
		return err
	}

	if err := deps.DeleteSession(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := deps.ReleaseCooldown(ctx, userID); err != nil {
		return err
	}

	deps.Report.report(ctx, Outcome{Event: EventLogout, Success: true, UserID: userID, SessionID: sessionID})
	return nil
}
