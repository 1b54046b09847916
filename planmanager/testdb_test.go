package planmanager

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

var testDBSeq atomic.Int64

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:planmanager_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// A single connection keeps the shared in-memory database alive and
	// avoids SQLITE_BUSY between the manager and the reconciler.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now().Add(d)
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stubProvisioner struct {
	mu           sync.Mutex
	created      []string
	removed      []string
	rotated      []string
	createErr    error
	removeErr    error
	rotateErr    error
	rotateSecret string
}

func (s *stubProvisioner) CreateResource(ctx context.Context, owner, secret string) error {
	_ = ctx
	_ = secret
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, owner)
	return nil
}

func (s *stubProvisioner) RemoveResource(ctx context.Context, owner string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	s.removed = append(s.removed, owner)
	return nil
}

func (s *stubProvisioner) RotateCredential(ctx context.Context, owner string) (string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rotateErr != nil {
		return "", s.rotateErr
	}
	s.rotated = append(s.rotated, owner)
	if s.rotateSecret != "" {
		return s.rotateSecret, nil
	}
	return "rotated0000", nil
}

func (s *stubProvisioner) ResourceExists(ctx context.Context, owner string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, created := range s.created {
		if created == owner {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubProvisioner) removedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.removed)
}

type notifyCall struct {
	recipient Recipient
	message   string
}

type stubNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

func (n *stubNotifier) Notify(ctx context.Context, recipient Recipient, message string) error {
	_ = ctx
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.calls = append(n.calls, notifyCall{recipient: recipient, message: message})
	return nil
}

func (n *stubNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *stubNotifier) callsFor(kind RecipientKind) []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	matched := []notifyCall{}
	for _, call := range n.calls {
		if call.recipient.Kind == kind {
			matched = append(matched, call)
		}
	}
	return matched
}

func stubRates(currency string) (decimal.Decimal, error) {
	switch currency {
	case "INR":
		return decimal.NewFromInt(1), nil
	case "USD":
		return decimal.NewFromInt(83), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown currency %q", currency)
	}
}

func newTestManager(t *testing.T, clock *fakeClock) (*Manager, *stubProvisioner, *stubNotifier) {
	t.Helper()
	db := newTestDB(t)
	provisioner := &stubProvisioner{}
	notifier := &stubNotifier{}
	manager, err := NewManager(provisioner, notifier.Notify, stubRates, Clock{Now: clock.Now, After: clock.After}, db)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return manager, provisioner, notifier
}

func createTestPlan(t *testing.T, manager *Manager, owner, duration string) {
	t.Helper()
	_, err := manager.CreatePlan(context.Background(), CreatePlanParams{Owner: owner, Duration: duration})
	if err != nil {
		t.Fatalf("create plan %q: %v", owner, err)
	}
}
