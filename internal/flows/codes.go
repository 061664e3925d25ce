package flows

import (
	"context"
	"strings"
)

// CodeErrors carries host sentinels used by the code delivery flows.
type CodeErrors struct {
	InvalidAddress error
	MissingCode    error
	CodeMismatch   error
	DeliveryFailed error
}

// SendCodeDeps captures one delivery channel (email or SMS).
type SendCodeDeps struct {
	ValidAddress  func(string) bool
	CheckCooldown func(ctx context.Context, address string) error
	Generate      func() (string, error)
	Store         func(ctx context.Context, address, code string) error
	Deliver       func(ctx context.Context, address, code string) error
	Revoke        func(ctx context.Context, address string) error

	Report Reporter
	Errors CodeErrors
}

// RunSendCode runs cooldown check, generate and store, then delivery. A
// failed delivery revokes the stored code and cooldown so the user can retry
// immediately.
func RunSendCode(ctx context.Context, address string, deps SendCodeDeps) error {
	address = strings.TrimSpace(address)
	if address == "" || !deps.ValidAddress(address) {
		return deps.Errors.InvalidAddress
	}

	if err := deps.CheckCooldown(ctx, address); err != nil {
		deps.Report.report(ctx, Outcome{Event: EventSendCode, Subject: address, Reason: "cooldown"})
		return err
	}

	code, err := deps.Generate()
	if err != nil {
		return err
	}
	if err := deps.Store(ctx, address, code); err != nil {
		return err
	}

	if err := deps.Deliver(ctx, address, code); err != nil {
		reason := "delivery"
		if rerr := deps.Revoke(ctx, address); rerr != nil {
			reason = "delivery_rollback"
		}
		deps.Report.report(ctx, Outcome{Event: EventSendCode, Subject: address, Reason: reason})
		return deps.Errors.DeliveryFailed
	}

	deps.Report.report(ctx, Outcome{Event: EventSendCode, Success: true, Subject: address})
	return nil
}

// VerifyCodeDeps captures one verification channel.
type VerifyCodeDeps struct {
	ValidAddress func(string) bool
	Verify       func(ctx context.Context, address, code string) (bool, error)
	MarkVerified func(ctx context.Context, address string) error

	Report Reporter
	Errors CodeErrors
}

// RunVerifyCode redeems a code and, on success, records the address as
// verified for a later registration.
func RunVerifyCode(ctx context.Context, address, code string, deps VerifyCodeDeps) error {
	address = strings.TrimSpace(address)
	if address == "" || !deps.ValidAddress(address) {
		return deps.Errors.InvalidAddress
	}
	if strings.TrimSpace(code) == "" {
		return deps.Errors.MissingCode
	}

	ok, err := deps.Verify(ctx, address, code)
	if err != nil {
		deps.Report.report(ctx, Outcome{Event: EventVerifyCode, Subject: address, Reason: "locked"})
		return err
	}
	if !ok {
		deps.Report.report(ctx, Outcome{Event: EventVerifyCode, Subject: address, Reason: "mismatch"})
		return deps.Errors.CodeMismatch
	}

	if err := deps.MarkVerified(ctx, address); err != nil {
		return err
	}
	deps.Report.report(ctx, Outcome{Event: EventVerifyCode, Success: true, Subject: address})
	return nil
}
