// Package notify tells staff systems about documents that passed
// verification. Delivery is best-effort: callers log failures and move on.
package notify

import (
	"context"
	"errors"
	"time"
)

type VerificationEvent struct {
	SessionID    string    `json:"sessionId"`
	ExpectedType string    `json:"expectedType"`
	Filename     string    `json:"filename"`
	VerifiedAt   time.Time `json:"verifiedAt"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
}

type Notifier interface {
	DocumentVerified(ctx context.Context, ev VerificationEvent) error
}

type Nop struct{}

func (Nop) DocumentVerified(context.Context, VerificationEvent) error { return nil }

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) DocumentVerified(ctx context.Context, ev VerificationEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.DocumentVerified(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
