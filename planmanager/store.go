package planmanager

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Shra1V32/server-rental-assistant/plan"
)

type sqlStore struct {
	db *sql.DB
}

func newSQLStore(db *sql.DB) (*sqlStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	store := &sqlStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *sqlStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS plans (
	owner TEXT PRIMARY KEY,
	secret TEXT NOT NULL,
	linked_identity TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	notice_sent INTEGER NOT NULL DEFAULT 0,
	expired INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	entry_id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	amount TEXT NOT NULL,
	original_amount TEXT NOT NULL,
	currency TEXT NOT NULL,
	entered_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_owner ON ledger_entries(owner);
`)
	return err
}

func (s *sqlStore) insertPlan(ctx context.Context, p plan.Plan) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO plans (
      owner, secret, linked_identity, created_at, expires_at, notice_sent, expired, active
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Owner,
		p.Secret,
		p.LinkedIdentity,
		p.CreatedAt.Unix(),
		p.ExpiresAt.Unix(),
		boolInt(p.NoticeSent),
		boolInt(p.Expired),
		boolInt(p.Active),
	)
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return DuplicateOwnerError{Owner: p.Owner}
	}
	return err
}

func (s *sqlStore) loadPlan(ctx context.Context, owner string) (plan.Plan, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT owner, secret, linked_identity, created_at, expires_at, notice_sent, expired, active
     FROM plans
     WHERE owner = ?`,
		owner,
	)
	return scanPlanRow(row.Scan)
}

func (s *sqlStore) listPlans(ctx context.Context) ([]plan.Plan, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT owner, secret, linked_identity, created_at, expires_at, notice_sent, expired, active
     FROM plans
     ORDER BY owner`,
	)
	if err != nil {
		return nil, err
	}
	return collectPlans(rows)
}

// listDueForNotice returns active plans with an expiry in (now, now+horizon]
// whose notice has not fired for the current expiry value.
func (s *sqlStore) listDueForNotice(ctx context.Context, now time.Time, horizon time.Duration) ([]plan.Plan, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT owner, secret, linked_identity, created_at, expires_at, notice_sent, expired, active
     FROM plans
     WHERE active = 1
       AND notice_sent = 0
       AND expired = 0
       AND expires_at > ?
       AND expires_at <= ?
     ORDER BY expires_at, owner`,
		now.Unix(),
		now.Add(horizon).Unix(),
	)
	if err != nil {
		return nil, err
	}
	return collectPlans(rows)
}

// listNewlyExpired returns active plans past due that have not yet been
// flagged expired.
func (s *sqlStore) listNewlyExpired(ctx context.Context, now time.Time) ([]plan.Plan, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT owner, secret, linked_identity, created_at, expires_at, notice_sent, expired, active
     FROM plans
     WHERE active = 1
       AND expired = 0
       AND expires_at <= ?
     ORDER BY expires_at, owner`,
		now.Unix(),
	)
	if err != nil {
		return nil, err
	}
	return collectPlans(rows)
}

// updateExpiry replaces expires_at in one atomic write. When resetFlags is
// set, the notice and expired flags are cleared in the same statement so an
// extension can never leave a half-reopened plan behind.
func (s *sqlStore) updateExpiry(ctx context.Context, owner string, newExpiry time.Time, resetFlags bool) (bool, error) {
	var result sql.Result
	var err error
	if resetFlags {
		result, err = s.db.ExecContext(
			ctx,
			`UPDATE plans SET expires_at = ?, notice_sent = 0, expired = 0 WHERE owner = ? AND active = 1`,
			newExpiry.Unix(),
			owner,
		)
	} else {
		result, err = s.db.ExecContext(
			ctx,
			`UPDATE plans SET expires_at = ? WHERE owner = ? AND active = 1`,
			newExpiry.Unix(),
			owner,
		)
	}
	return rowsAffected(result, err)
}

// markNoticeSent flips the notice flag for an active plan. The write is
// guarded on the flag's prior value so a racing tick flips it exactly once.
func (s *sqlStore) markNoticeSent(ctx context.Context, owner string) (bool, error) {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE plans SET notice_sent = 1 WHERE owner = ? AND active = 1 AND notice_sent = 0`,
		owner,
	)
	return rowsAffected(result, err)
}

// markExpired flips the expired flag for an active plan exactly once.
func (s *sqlStore) markExpired(ctx context.Context, owner string) (bool, error) {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE plans SET expired = 1 WHERE owner = ? AND active = 1 AND expired = 0`,
		owner,
	)
	return rowsAffected(result, err)
}

func (s *sqlStore) updateSecret(ctx context.Context, owner, secret string) (bool, error) {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE plans SET secret = ? WHERE owner = ? AND active = 1`,
		secret,
		owner,
	)
	return rowsAffected(result, err)
}

// setLinkedIdentity binds an external identity to a plan at most once.
func (s *sqlStore) setLinkedIdentity(ctx context.Context, owner, identity string) (bool, error) {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE plans SET linked_identity = ? WHERE owner = ? AND active = 1 AND linked_identity = ''`,
		identity,
		owner,
	)
	return rowsAffected(result, err)
}

func (s *sqlStore) clearLinkedIdentity(ctx context.Context, owner string) (bool, error) {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE plans SET linked_identity = '' WHERE owner = ? AND active = 1`,
		owner,
	)
	return rowsAffected(result, err)
}

func (s *sqlStore) markTerminated(ctx context.Context, owner string) (bool, error) {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE plans SET active = 0 WHERE owner = ? AND active = 1`,
		owner,
	)
	return rowsAffected(result, err)
}

func collectPlans(rows *sql.Rows) ([]plan.Plan, error) {
	defer rows.Close()
	plans := []plan.Plan{}
	for rows.Next() {
		p, _, err := scanPlanRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}

func scanPlanRow(scan func(...any) error) (plan.Plan, bool, error) {
	var (
		owner          string
		secret         string
		linkedIdentity string
		createdAt      int64
		expiresAt      int64
		noticeSent     int
		expired        int
		active         int
	)
	if err := scan(&owner, &secret, &linkedIdentity, &createdAt, &expiresAt, &noticeSent, &expired, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return plan.Plan{}, false, nil
		}
		return plan.Plan{}, false, err
	}
	return plan.Plan{
		Owner:          owner,
		Secret:         secret,
		LinkedIdentity: linkedIdentity,
		CreatedAt:      time.Unix(createdAt, 0).UTC(),
		ExpiresAt:      time.Unix(expiresAt, 0).UTC(),
		NoticeSent:     noticeSent != 0,
		Expired:        expired != 0,
		Active:         active != 0,
	}, true, nil
}

func rowsAffected(result sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
		sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
