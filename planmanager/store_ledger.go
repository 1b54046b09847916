package planmanager

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// The ledger is append-only: insert and select are the only statements that
// exist for the table. Balances are folds over entries, never stored.

func (s *sqlStore) insertLedgerEntry(ctx context.Context, entry LedgerEntry) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO ledger_entries (
      entry_id, owner, amount, original_amount, currency, entered_at
    ) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.EntryID,
		entry.Owner,
		entry.Amount.String(),
		entry.OriginalAmount.String(),
		entry.Currency,
		entry.EnteredAt.Unix(),
	)
	return err
}

func (s *sqlStore) listLedgerEntries(ctx context.Context, owner string) ([]LedgerEntry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT entry_id, owner, amount, original_amount, currency, entered_at
     FROM ledger_entries
     WHERE owner = ?
     ORDER BY entered_at, entry_id`,
		owner,
	)
	if err != nil {
		return nil, err
	}
	return collectLedgerEntries(rows)
}

func (s *sqlStore) totalForOwner(ctx context.Context, owner string) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT amount FROM ledger_entries WHERE owner = ?`,
		owner,
	)
	if err != nil {
		return decimal.Zero, err
	}
	return foldAmounts(rows)
}

func (s *sqlStore) totalAll(ctx context.Context) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT amount FROM ledger_entries`)
	if err != nil {
		return decimal.Zero, err
	}
	return foldAmounts(rows)
}

func collectLedgerEntries(rows *sql.Rows) ([]LedgerEntry, error) {
	defer rows.Close()
	entries := []LedgerEntry{}
	for rows.Next() {
		var (
			entryID        string
			owner          string
			amountText     string
			originalText   string
			currency       string
			enteredAtEpoch int64
		)
		if err := rows.Scan(&entryID, &owner, &amountText, &originalText, &currency, &enteredAtEpoch); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, fmt.Errorf("ledger entry %q amount: %w", entryID, err)
		}
		original, err := decimal.NewFromString(originalText)
		if err != nil {
			return nil, fmt.Errorf("ledger entry %q original amount: %w", entryID, err)
		}
		entries = append(entries, LedgerEntry{
			EntryID:        entryID,
			Owner:          owner,
			Amount:         amount,
			OriginalAmount: original,
			Currency:       currency,
			EnteredAt:      time.Unix(enteredAtEpoch, 0).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func foldAmounts(rows *sql.Rows) (decimal.Decimal, error) {
	defer rows.Close()
	total := decimal.Zero
	for rows.Next() {
		var amountText string
		if err := rows.Scan(&amountText); err != nil {
			return decimal.Zero, err
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
