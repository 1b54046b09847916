package planmanager

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Shra1V32/server-rental-assistant/plan"
)

const (
	defaultInterval      = 60 * time.Second
	defaultNoticeHorizon = 12 * time.Hour
	defaultItemTimeout   = 10 * time.Second
)

// ReconcilerConfig defines the scan interval, notice horizon and dispatch
// policy for the reconciliation loop.
type ReconcilerConfig struct {
	Interval      time.Duration
	NoticeHorizon time.Duration
	// ItemTimeout bounds the external calls for one plan so a hanging
	// notifier or provisioner cannot stall the rest of the tick.
	ItemTimeout time.Duration
	// OperatorChannel receives action-required prompts and owner notices
	// for plans without a linked identity.
	OperatorChannel string
	// RotateOnExpiry rotates the account credential when a plan expires.
	// Rotation is idempotent; notification is not, which is why only the
	// flag flip guards dispatch.
	RotateOnExpiry bool
}

// Reconciler is the unattended loop that drives plan transitions forward:
// it flags plans entering the notice horizon, flags newly expired plans and
// emits the corresponding notifications. It never deletes a plan and never
// moves an expiry; those are operator decisions.
type Reconciler struct {
	store       *sqlStore
	provisioner Provisioner
	notifier    Notifier
	clock       Clock
	cfg         ReconcilerConfig
	metrics     *Metrics
}

// NewReconcilerFromManager builds a Reconciler sharing the manager's store,
// ports and clock.
func NewReconcilerFromManager(manager *Manager, cfg ReconcilerConfig) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.NoticeHorizon <= 0 {
		cfg.NoticeHorizon = defaultNoticeHorizon
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = defaultItemTimeout
	}
	return &Reconciler{
		store:       manager.store,
		provisioner: manager.provisioner,
		notifier:    manager.notifier,
		clock:       manager.clock,
		cfg:         cfg,
		metrics:     manager.metrics,
	}
}

// SetMetrics assigns a metrics registry to the reconciler.
func (r *Reconciler) SetMetrics(metrics *Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

// Run executes ticks on the configured interval until the context is
// canceled. Ticks are monotonically spaced, not wall-clock aligned. A tick
// whose store queries fail is logged and retried on the next interval.
func (r *Reconciler) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		if err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("reconcile_tick_failed error=%v", err)
		}
		if !sleepWithContext(ctx, r.cfg.Interval) {
			return
		}
	}
}

// RunOnce executes a single reconciliation tick: the notice pass, then the
// expiry pass. Per-plan failures are logged and skipped; only a failed list
// query aborts the tick.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	start := r.clock.Now()
	if r.metrics != nil {
		defer func() {
			r.metrics.ObserveTick(r.clock.Now().Sub(start))
		}()
	}

	if err := r.noticePass(ctx, start); err != nil {
		return err
	}
	return r.expiryPass(ctx, start)
}

func (r *Reconciler) noticePass(ctx context.Context, now time.Time) error {
	due, err := r.store.listDueForNotice(ctx, now, r.cfg.NoticeHorizon)
	if err != nil {
		return fmt.Errorf("list due for notice: %w", err)
	}

	for _, p := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Items run on a detached context so shutdown finishes the one in
		// flight instead of leaving a flipped flag without its notification.
		itemCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ItemTimeout)

		applied, err := r.store.markNoticeSent(itemCtx, p.Owner)
		if err != nil {
			log.Printf("owner=%q action=notice error=%v", p.Owner, err)
			cancel()
			continue
		}
		if !applied {
			// Raced with an extension or another flip; membership is
			// recomputed next tick, nothing to retry here.
			cancel()
			continue
		}

		message := fmt.Sprintf("Your plan expires in %s. Renew soon to keep access.", plan.FormatDuration(p.Remaining(now)))
		r.notify(itemCtx, r.ownerRecipient(p), message)
		if r.metrics != nil {
			r.metrics.ObserveNoticeSent()
		}
		log.Printf("owner=%q action=notice expires_at=%s", p.Owner, p.ExpiresAt.UTC().Format(time.RFC3339))
		cancel()
	}
	return nil
}

func (r *Reconciler) expiryPass(ctx context.Context, now time.Time) error {
	expired, err := r.store.listNewlyExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("list newly expired: %w", err)
	}

	for _, p := range expired {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		itemCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ItemTimeout)

		applied, err := r.store.markExpired(itemCtx, p.Owner)
		if err != nil {
			log.Printf("owner=%q action=expire error=%v", p.Owner, err)
			cancel()
			continue
		}
		if !applied {
			cancel()
			continue
		}

		r.notify(itemCtx, r.ownerRecipient(p), fmt.Sprintf("Your plan has expired, %s! Please renew soon.", p.Owner))
		if r.cfg.OperatorChannel != "" {
			prompt := fmt.Sprintf("Plan for owner=%s expired at %s. Action required: extend or terminate.", p.Owner, p.ExpiresAt.UTC().Format(time.RFC3339))
			r.notify(itemCtx, Recipient{Kind: RecipientOperator, ID: r.cfg.OperatorChannel}, prompt)
		}
		if r.cfg.RotateOnExpiry {
			r.rotateExpired(itemCtx, p.Owner)
		}
		if r.metrics != nil {
			r.metrics.ObserveExpiryDetected()
		}
		log.Printf("owner=%q action=expire expires_at=%s", p.Owner, p.ExpiresAt.UTC().Format(time.RFC3339))
		cancel()
	}
	return nil
}

func (r *Reconciler) rotateExpired(ctx context.Context, owner string) {
	secret, err := r.provisioner.RotateCredential(ctx, owner)
	if err != nil {
		log.Printf("owner=%q action=expire_rotate error=%v", owner, err)
		return
	}
	if _, err := r.store.updateSecret(ctx, owner, secret); err != nil {
		log.Printf("owner=%q action=expire_rotate error=%v", owner, err)
	}
}

func (r *Reconciler) notify(ctx context.Context, recipient Recipient, message string) {
	if err := r.notifier(ctx, recipient, message); err != nil {
		if r.metrics != nil {
			r.metrics.ObserveNotifyFailure()
		}
		log.Printf("recipient=%q kind=%s action=notify error=%v", recipient.ID, recipient.Kind, err)
	}
}

// ownerRecipient routes owner-facing messages to the linked identity, or to
// the operator channel when no identity is bound, so the notice is still
// surfaced somewhere an operator can see it.
func (r *Reconciler) ownerRecipient(p plan.Plan) Recipient {
	if p.LinkedIdentity != "" {
		return Recipient{Kind: RecipientOwner, ID: p.LinkedIdentity}
	}
	return Recipient{Kind: RecipientOperator, ID: r.cfg.OperatorChannel}
}

func sleepWithContext(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
