package planmanager

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one append-only signed amount recorded against an owner.
// Amount is normalized to the reference currency; OriginalAmount and
// Currency are kept for audit display only.
type LedgerEntry struct {
	EntryID        string
	Owner          string
	Amount         decimal.Decimal
	OriginalAmount decimal.Decimal
	Currency       string
	EnteredAt      time.Time
}
