package sensorgate

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/sensorgate/internal/captcha"
	"github.com/MrEthical07/sensorgate/internal/flows"
)

// IssueChallenge creates an image challenge scoped to identity. Each
// identity may request Challenge.RefreshLimit challenges per
// Challenge.RefreshWindow; past that it gets a retry-after error.
func (e *Engine) IssueChallenge(ctx context.Context, identity string) (*Challenge, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, ErrMissingFields
	}
	ch, err := e.challenges.Issue(ctx, identity)
	if err != nil {
		e.report(ctx, flows.Outcome{Event: EventChallenge, Subject: identity, Reason: "issue"})
		return nil, e.fail(EventChallenge, err)
	}
	return &Challenge{ID: ch.ID, Image: ch.Image, ContentType: ch.ContentType}, nil
}

// VerifyChallenge redeems a challenge. The result distinguishes an expired
// or exhausted challenge (ErrChallengeExpired) from a wrong answer
// (ErrChallengeFailed).
func (e *Engine) VerifyChallenge(ctx context.Context, id, code string) error {
	if err := e.challenges.Verify(ctx, id, code); err != nil {
		return e.fail(EventChallenge, err)
	}
	return nil
}

// challengeRejected separates a wrong, missing or stale answer from a store
// failure during challenge redemption.
func challengeRejected(err error) bool {
	return errors.Is(err, captcha.ErrMismatch) ||
		errors.Is(err, captcha.ErrMissing) ||
		errors.Is(err, captcha.ErrExpired)
}
