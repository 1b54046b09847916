package planmanager

import (
	"fmt"
	"time"
)

// NotFoundError reports an operation on an unknown or terminated owner.
type NotFoundError struct {
	Owner string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("plan %q not found", e.Owner)
}

// DuplicateOwnerError reports a creation collision on an owner key.
type DuplicateOwnerError struct {
	Owner string
}

func (e DuplicateOwnerError) Error() string {
	return fmt.Sprintf("plan %q already exists", e.Owner)
}

// WouldExpireImmediatelyError reports a reduction that would move the expiry
// to or past the current time. The record is left untouched.
type WouldExpireImmediatelyError struct {
	Owner           string
	RequestedExpiry time.Time
	Now             time.Time
}

func (e WouldExpireImmediatelyError) Error() string {
	return fmt.Sprintf("reducing plan %q to %s would expire it immediately (now %s)",
		e.Owner,
		e.RequestedExpiry.UTC().Format(time.RFC3339),
		e.Now.UTC().Format(time.RFC3339))
}

// IdentityAlreadyLinkedError reports a second link attempt on a plan whose
// identity binding is already set.
type IdentityAlreadyLinkedError struct {
	Owner    string
	Identity string
}

func (e IdentityAlreadyLinkedError) Error() string {
	return fmt.Sprintf("plan %q already has identity %q linked", e.Owner, e.Identity)
}

// ProvisionError reports a failed operation on the underlying account. The
// plan record is never modified when the provisioner fails, so the operation
// can be retried safely.
type ProvisionError struct {
	Op    string
	Owner string
	Err   error
}

func (e ProvisionError) Error() string {
	return fmt.Sprintf("provision %s for %q: %v", e.Op, e.Owner, e.Err)
}

func (e ProvisionError) Unwrap() error {
	return e.Err
}
