package planmanager

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Shra1V32/server-rental-assistant/plan"
)

// Manager orchestrates plan operations issued by the operator: creation,
// extension, reduction, termination, credential rotation, identity linking
// and ledger bookkeeping. It shares its store with the Reconciler; every
// mutation is a single-row atomic write, so the two activity sources race
// benignly (a stale reconciler write is a lost update the next tick will not
// repeat, because due-predicates are recomputed from scratch).
type Manager struct {
	store       *sqlStore
	provisioner Provisioner
	notifier    Notifier
	rate        RateLookup
	clock       Clock
	metrics     *Metrics

	// terminateMu serializes termination so a duplicate request racing a
	// first one observes active=0 and becomes a no-op instead of a second
	// provisioner call.
	terminateMu sync.Mutex
}

// CreatePlanParams carries the inputs for plan creation.
type CreatePlanParams struct {
	Owner          string
	Duration       string
	LinkedIdentity string
	// Amount and Currency record the initial payment. A zero amount means
	// provisioning only; no ledger entry is written.
	Amount   decimal.Decimal
	Currency string
}

// NewManager constructs a Manager with the provided ports and SQL store.
func NewManager(provisioner Provisioner, notifier Notifier, rate RateLookup, clock Clock, db *sql.DB) (*Manager, error) {
	if provisioner == nil {
		return nil, errors.New("provisioner is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if rate == nil {
		return nil, errors.New("rate lookup is required")
	}
	if clock.Now == nil {
		clock.Now = time.Now
	}
	if clock.After == nil {
		clock.After = time.After
	}

	store, err := newSQLStore(db)
	if err != nil {
		return nil, err
	}
	return &Manager{
		store:       store,
		provisioner: provisioner,
		notifier:    notifier,
		rate:        rate,
		clock:       clock,
	}, nil
}

// SetMetrics assigns a metrics registry to the manager.
func (m *Manager) SetMetrics(metrics *Metrics) {
	if m == nil {
		return
	}
	m.metrics = metrics
}

// CreatePlan generates a credential, provisions the account, inserts the
// record and writes the initial ledger entry when an amount is given.
func (m *Manager) CreatePlan(ctx context.Context, params CreatePlanParams) (plan.Plan, error) {
	owner := strings.TrimSpace(params.Owner)
	if owner == "" {
		return plan.Plan{}, errors.New("owner is required")
	}
	seconds, err := plan.ParseDuration(params.Duration)
	if err != nil {
		return plan.Plan{}, err
	}
	if seconds <= 0 {
		return plan.Plan{}, plan.InvalidDurationError{Text: params.Duration}
	}

	// Resolve the rate before any side effect so a bad currency rejects the
	// whole request instead of leaving a provisioned, unpaid plan behind.
	var normalized decimal.Decimal
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if !params.Amount.IsZero() {
		rate, err := m.rate(currency)
		if err != nil {
			return plan.Plan{}, err
		}
		normalized = params.Amount.Mul(rate)
	}

	if _, found, err := m.store.loadPlan(ctx, owner); err != nil {
		return plan.Plan{}, err
	} else if found {
		return plan.Plan{}, DuplicateOwnerError{Owner: owner}
	}

	now := m.clock.Now()
	newPlan := plan.Plan{
		Owner:          owner,
		Secret:         plan.GenerateSecret(),
		LinkedIdentity: strings.TrimSpace(params.LinkedIdentity),
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Duration(seconds) * time.Second),
		Active:         true,
	}

	if err := m.provisioner.CreateResource(ctx, owner, newPlan.Secret); err != nil {
		return plan.Plan{}, ProvisionError{Op: "create", Owner: owner, Err: err}
	}
	if err := m.store.insertPlan(ctx, newPlan); err != nil {
		return plan.Plan{}, err
	}

	if !params.Amount.IsZero() {
		entry := LedgerEntry{
			EntryID:        uuid.NewString(),
			Owner:          owner,
			Amount:         normalized,
			OriginalAmount: params.Amount,
			Currency:       currency,
			EnteredAt:      now,
		}
		if err := m.store.insertLedgerEntry(ctx, entry); err != nil {
			return plan.Plan{}, err
		}
		if m.metrics != nil {
			m.metrics.ObservePaymentRecorded()
		}
	}

	log.Printf("owner=%q action=create expires_at=%s", owner, newPlan.ExpiresAt.UTC().Format(time.RFC3339))
	if m.metrics != nil {
		m.metrics.ObservePlanCreated()
	}
	return newPlan, nil
}

// GetPlan returns the plan for an owner, including terminated history.
func (m *Manager) GetPlan(ctx context.Context, owner string) (plan.Plan, error) {
	trimmed := strings.TrimSpace(owner)
	p, found, err := m.store.loadPlan(ctx, trimmed)
	if err != nil {
		return plan.Plan{}, err
	}
	if !found {
		return plan.Plan{}, NotFoundError{Owner: trimmed}
	}
	return p, nil
}

// ListPlans returns every plan record, terminated ones included.
func (m *Manager) ListPlans(ctx context.Context) ([]plan.Plan, error) {
	return m.store.listPlans(ctx)
}

// ExtendPlan moves the expiry forward by the parsed duration. When the new
// expiry lands in the future relative to now, the notice and expired flags
// are cleared in the same write, reopening an expired plan.
func (m *Manager) ExtendPlan(ctx context.Context, owner, duration string) (plan.Plan, error) {
	delta, err := parsePositiveDuration(duration)
	if err != nil {
		return plan.Plan{}, err
	}
	trimmed := strings.TrimSpace(owner)
	p, err := m.loadActivePlan(ctx, trimmed)
	if err != nil {
		return plan.Plan{}, err
	}

	now := m.clock.Now()
	newExpiry := p.ExpiresAt.Add(time.Duration(delta) * time.Second)
	resetFlags := newExpiry.After(now)
	applied, err := m.store.updateExpiry(ctx, trimmed, newExpiry, resetFlags)
	if err != nil {
		return plan.Plan{}, err
	}
	if !applied {
		return plan.Plan{}, NotFoundError{Owner: trimmed}
	}

	p.ExpiresAt = newExpiry
	if resetFlags {
		p.NoticeSent = false
		p.Expired = false
	}
	log.Printf("owner=%q action=extend delta=%s expires_at=%s", trimmed, plan.FormatDuration(delta), newExpiry.UTC().Format(time.RFC3339))
	if m.metrics != nil {
		m.metrics.ObservePlanExtended()
	}
	return p, nil
}

// ExtendAll extends every active plan by the same duration. Failures are
// isolated per plan: one bad record never aborts the fan-out.
func (m *Manager) ExtendAll(ctx context.Context, duration string) ([]plan.Plan, error) {
	if _, err := parsePositiveDuration(duration); err != nil {
		return nil, err
	}
	plans, err := m.store.listPlans(ctx)
	if err != nil {
		return nil, err
	}
	extended := []plan.Plan{}
	for _, p := range plans {
		if !p.Active {
			continue
		}
		updated, err := m.ExtendPlan(ctx, p.Owner, duration)
		if err != nil {
			log.Printf("owner=%q action=extend_all error=%v", p.Owner, err)
			continue
		}
		extended = append(extended, updated)
	}
	return extended, nil
}

// ReducePlan moves the expiry backward. A reduction that would land the
// expiry at or before now is rejected whole; the record is untouched.
func (m *Manager) ReducePlan(ctx context.Context, owner, duration string) (plan.Plan, error) {
	delta, err := parsePositiveDuration(duration)
	if err != nil {
		return plan.Plan{}, err
	}
	trimmed := strings.TrimSpace(owner)
	p, err := m.loadActivePlan(ctx, trimmed)
	if err != nil {
		return plan.Plan{}, err
	}

	now := m.clock.Now()
	newExpiry := p.ExpiresAt.Add(-time.Duration(delta) * time.Second)
	if !newExpiry.After(now) {
		return plan.Plan{}, WouldExpireImmediatelyError{
			Owner:           trimmed,
			RequestedExpiry: newExpiry,
			Now:             now,
		}
	}
	applied, err := m.store.updateExpiry(ctx, trimmed, newExpiry, false)
	if err != nil {
		return plan.Plan{}, err
	}
	if !applied {
		return plan.Plan{}, NotFoundError{Owner: trimmed}
	}

	p.ExpiresAt = newExpiry
	log.Printf("owner=%q action=reduce delta=%s expires_at=%s", trimmed, plan.FormatDuration(delta), newExpiry.UTC().Format(time.RFC3339))
	if m.metrics != nil {
		m.metrics.ObservePlanReduced()
	}
	return p, nil
}

// TerminatePlan removes the underlying account and marks the plan inactive.
// Terminating an already-terminated plan is a success no-op that never
// reaches the provisioner. When the provisioner fails, the record is left in
// its prior state so the operation can be retried.
func (m *Manager) TerminatePlan(ctx context.Context, owner string) error {
	trimmed := strings.TrimSpace(owner)

	m.terminateMu.Lock()
	defer m.terminateMu.Unlock()

	p, found, err := m.store.loadPlan(ctx, trimmed)
	if err != nil {
		return err
	}
	if !found {
		return NotFoundError{Owner: trimmed}
	}
	if !p.Active {
		return nil
	}

	if err := m.provisioner.RemoveResource(ctx, trimmed); err != nil {
		return ProvisionError{Op: "remove", Owner: trimmed, Err: err}
	}
	if _, err := m.store.markTerminated(ctx, trimmed); err != nil {
		return err
	}
	log.Printf("owner=%q action=terminate", trimmed)
	if m.metrics != nil {
		m.metrics.ObservePlanTerminated()
	}
	return nil
}

// RotateSecret replaces the plan credential wholesale via the provisioner.
func (m *Manager) RotateSecret(ctx context.Context, owner string) (plan.Plan, error) {
	trimmed := strings.TrimSpace(owner)
	p, err := m.loadActivePlan(ctx, trimmed)
	if err != nil {
		return plan.Plan{}, err
	}

	secret, err := m.provisioner.RotateCredential(ctx, trimmed)
	if err != nil {
		return plan.Plan{}, ProvisionError{Op: "rotate", Owner: trimmed, Err: err}
	}
	applied, err := m.store.updateSecret(ctx, trimmed, secret)
	if err != nil {
		return plan.Plan{}, err
	}
	if !applied {
		return plan.Plan{}, NotFoundError{Owner: trimmed}
	}
	p.Secret = secret
	log.Printf("owner=%q action=rotate", trimmed)
	return p, nil
}

// LinkIdentity binds an external identity to a plan. The binding is set at
// most once; it must be cleared explicitly before it can change.
func (m *Manager) LinkIdentity(ctx context.Context, owner, identity string) error {
	trimmed := strings.TrimSpace(owner)
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return errors.New("identity is required")
	}
	p, err := m.loadActivePlan(ctx, trimmed)
	if err != nil {
		return err
	}
	if p.LinkedIdentity != "" {
		return IdentityAlreadyLinkedError{Owner: trimmed, Identity: p.LinkedIdentity}
	}
	applied, err := m.store.setLinkedIdentity(ctx, trimmed, identity)
	if err != nil {
		return err
	}
	if !applied {
		return IdentityAlreadyLinkedError{Owner: trimmed, Identity: identity}
	}
	return nil
}

// ClearIdentity removes the identity binding.
func (m *Manager) ClearIdentity(ctx context.Context, owner string) error {
	trimmed := strings.TrimSpace(owner)
	if _, err := m.loadActivePlan(ctx, trimmed); err != nil {
		return err
	}
	_, err := m.store.clearLinkedIdentity(ctx, trimmed)
	return err
}

// RecordPayment appends a ledger entry for the owner. Balances are never
// checked: the ledger is a running account, not a credit limit.
func (m *Manager) RecordPayment(ctx context.Context, owner string, amount decimal.Decimal, currency string) (LedgerEntry, error) {
	trimmed := strings.TrimSpace(owner)
	if _, found, err := m.store.loadPlan(ctx, trimmed); err != nil {
		return LedgerEntry{}, err
	} else if !found {
		return LedgerEntry{}, NotFoundError{Owner: trimmed}
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	rate, err := m.rate(currency)
	if err != nil {
		return LedgerEntry{}, err
	}

	entry := LedgerEntry{
		EntryID:        uuid.NewString(),
		Owner:          trimmed,
		Amount:         amount.Mul(rate),
		OriginalAmount: amount,
		Currency:       currency,
		EnteredAt:      m.clock.Now(),
	}
	if err := m.store.insertLedgerEntry(ctx, entry); err != nil {
		return LedgerEntry{}, err
	}
	log.Printf("owner=%q action=payment amount=%s currency=%s normalized=%s", trimmed, amount.String(), currency, entry.Amount.String())
	if m.metrics != nil {
		m.metrics.ObservePaymentRecorded()
	}
	return entry, nil
}

// BalanceFor folds the owner's ledger entries into a balance.
func (m *Manager) BalanceFor(ctx context.Context, owner string) (decimal.Decimal, error) {
	return m.store.totalForOwner(ctx, strings.TrimSpace(owner))
}

// TotalAll folds every ledger entry across all owners.
func (m *Manager) TotalAll(ctx context.Context) (decimal.Decimal, error) {
	return m.store.totalAll(ctx)
}

// LedgerFor returns the owner's ledger entries in insertion order.
func (m *Manager) LedgerFor(ctx context.Context, owner string) ([]LedgerEntry, error) {
	return m.store.listLedgerEntries(ctx, strings.TrimSpace(owner))
}

// loadActivePlan fetches a plan that must still be live. Terminated plans
// are history: mutating operations report them as not found.
func (m *Manager) loadActivePlan(ctx context.Context, owner string) (plan.Plan, error) {
	p, found, err := m.store.loadPlan(ctx, owner)
	if err != nil {
		return plan.Plan{}, err
	}
	if !found || !p.Active {
		return plan.Plan{}, NotFoundError{Owner: owner}
	}
	return p, nil
}

func parsePositiveDuration(text string) (int64, error) {
	seconds, err := plan.ParseDuration(text)
	if err != nil {
		return 0, err
	}
	if seconds <= 0 {
		return 0, plan.InvalidDurationError{Text: text}
	}
	return seconds, nil
}
