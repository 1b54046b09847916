package plan

import "time"

// State represents the lifecycle state of a Plan.
type State string

const (
	// StateActive means the plan is live and has not crossed the notice horizon.
	StateActive State = "active"
	// StateNoticeSent means the expiring-soon notice has fired for the current expiry.
	StateNoticeSent State = "notice_sent"
	// StateExpired means reconciliation has recognized the plan as past due.
	StateExpired State = "expired"
	// StateTerminated means the underlying account is gone; the record is history.
	StateTerminated State = "terminated"
)

// Plan is the persisted record for one rented server account.
type Plan struct {
	Owner          string
	Secret         string
	LinkedIdentity string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	NoticeSent     bool
	Expired        bool
	Active         bool
}

// State derives the lifecycle state from the persisted flags. Terminated
// dominates: an inactive plan is history regardless of the other flags.
func (p Plan) State() State {
	switch {
	case !p.Active:
		return StateTerminated
	case p.Expired:
		return StateExpired
	case p.NoticeSent:
		return StateNoticeSent
	default:
		return StateActive
	}
}

// Remaining returns whole seconds until expiry; zero or negative means past due.
func (p Plan) Remaining(now time.Time) int64 {
	return p.ExpiresAt.Unix() - now.Unix()
}

// Action is a transition the reconciler must drive for a plan.
type Action string

const (
	// ActionNone means the plan needs nothing this tick.
	ActionNone Action = "none"
	// ActionSendNotice means the expiring-soon notice is due.
	ActionSendNotice Action = "send_notice"
	// ActionMarkExpired means the plan crossed its expiry and must be flagged.
	ActionMarkExpired Action = "mark_expired"
)

// NextAction decides the due transition for a plan at the given instant.
// It is pure: persistence and notification dispatch belong to the caller.
// Both the notice and the expired transition are one-shot per expiry value,
// guarded by their flags; extension clears the flags and re-arms them.
func NextAction(p Plan, now time.Time, noticeHorizon time.Duration) Action {
	if !p.Active {
		return ActionNone
	}
	if !now.Before(p.ExpiresAt) {
		if p.Expired {
			return ActionNone
		}
		return ActionMarkExpired
	}
	if p.NoticeSent || p.Expired {
		return ActionNone
	}
	if now.Before(p.ExpiresAt.Add(-noticeHorizon)) {
		return ActionNone
	}
	return ActionSendNotice
}
