package planmanager

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provisioner manages the underlying server account backing a plan.
// Implementations should be idempotent where feasible: removing an absent
// account is not an error the core treats as fatal.
type Provisioner interface {
	CreateResource(ctx context.Context, owner, secret string) error
	RemoveResource(ctx context.Context, owner string) error
	RotateCredential(ctx context.Context, owner string) (string, error)
	ResourceExists(ctx context.Context, owner string) (bool, error)
}

// RecipientKind distinguishes owner-facing messages from operator prompts.
type RecipientKind string

const (
	// RecipientOwner addresses the identity linked to a plan.
	RecipientOwner RecipientKind = "owner"
	// RecipientOperator addresses the operator channel.
	RecipientOperator RecipientKind = "operator"
)

// Recipient identifies a notification target.
type Recipient struct {
	Kind RecipientKind
	ID   string
}

// Notifier sends a message to a recipient. Failures are non-fatal to the
// caller: notification is a side effect, never a precondition of state
// correctness.
type Notifier func(ctx context.Context, recipient Recipient, message string) error

// RateLookup converts one unit of the given currency into the reference
// currency.
type RateLookup func(currency string) (decimal.Decimal, error)

// Clock provides time functions for deterministic scheduling.
type Clock struct {
	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}
