// README: Settlement store. The batch upsert and the review outcomes are
// single transactions; the fraud ruling writes the ban, the penalty invoice
// and the BANNED cascade in the same transaction as the proof verdict.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"naqlo/internal/types"
)

var ErrNotFound = errors.New("settlement: not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const settlementColumns = `
	id, driver_id, week_start, week_end, amount_due, status,
	overdue_at, verified_at, created_at`

func scanSettlement(row pgx.Row) (Settlement, error) {
	var st Settlement
	err := row.Scan(&st.ID, &st.DriverID, &st.WeekStart, &st.WeekEnd, &st.AmountDue,
		&st.Status, &st.OverdueAt, &st.VerifiedAt, &st.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settlement{}, ErrNotFound
	}
	return st, err
}

func (s *Store) Get(ctx context.Context, id types.ID) (Settlement, error) {
	row := s.db.QueryRow(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE id = $1`, string(id))
	return scanSettlement(row)
}

func (s *Store) ListByDriver(ctx context.Context, driverID types.ID) ([]Settlement, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+settlementColumns+` FROM settlements
		WHERE driver_id = $1 ORDER BY week_start DESC`, string(driverID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSettlements(rows)
}

func (s *Store) ListByStatus(ctx context.Context, status Status) ([]Settlement, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+settlementColumns+` FROM settlements
		WHERE status = $1 ORDER BY week_start DESC, driver_id`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSettlements(rows)
}

func collectSettlements(rows pgx.Rows) ([]Settlement, error) {
	var out []Settlement
	for rows.Next() {
		st, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// DriverTotals aggregates UNPAID commissions for orders completed inside
// [start, end), grouped by driver. Zero and negative totals never occur
// (commission amounts are positive) but the HAVING guard keeps the invariant
// explicit.
func (s *Store) DriverTotals(ctx context.Context, start, end time.Time) ([]DriverTotal, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.driver_id, SUM(c.amount)
		FROM commissions c
		JOIN orders o ON o.id = c.order_id
		WHERE c.status = 'UNPAID' AND o.completed_at >= $1 AND o.completed_at < $2
		GROUP BY c.driver_id
		HAVING SUM(c.amount) > 0
		ORDER BY c.driver_id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DriverTotal
	for rows.Next() {
		var dt DriverTotal
		if err := rows.Scan(&dt.DriverID, &dt.Amount); err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}

// UpsertWeekly creates the driver's settlement for the week and moves the
// grouped commissions under it. Re-running for an existing week is a no-op
// for the settlement row; any commission still UNPAID in the window is
// swept in regardless.
func (s *Store) UpsertWeekly(ctx context.Context, driverID types.ID, start, end time.Time, total int64, now time.Time) (types.ID, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO settlements (id, driver_id, week_start, week_end, amount_due, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'OPEN', $6)
		ON CONFLICT (driver_id, week_start, week_end) DO NOTHING`,
		uuid.NewString(), string(driverID), start, end, total, now); err != nil {
		return "", err
	}

	var settlementID string
	if err := tx.QueryRow(ctx, `
		SELECT id FROM settlements
		WHERE driver_id = $1 AND week_start = $2 AND week_end = $3`,
		string(driverID), start, end).Scan(&settlementID); err != nil {
		return "", err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE commissions c SET status = 'IN_SETTLEMENT', settlement_id = $1
		FROM orders o
		WHERE o.id = c.order_id AND c.driver_id = $2 AND c.status = 'UNPAID'
		  AND o.completed_at >= $3 AND o.completed_at < $4`,
		settlementID, string(driverID), start, end); err != nil {
		return "", err
	}

	return types.ID(settlementID), tx.Commit(ctx)
}

// OverdueCandidates lists the week's settlements still awaiting verification.
func (s *Store) OverdueCandidates(ctx context.Context, start, end time.Time) ([]Settlement, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+settlementColumns+` FROM settlements
		WHERE week_start = $1 AND week_end = $2
		  AND status NOT IN ('VERIFIED', 'FRAUD', 'OVERDUE')
		ORDER BY driver_id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSettlements(rows)
}

// MarkOverdueAndSuspend flips one settlement to OVERDUE and suspends the
// driver, leaving BANNED accounts untouched.
func (s *Store) MarkOverdueAndSuspend(ctx context.Context, settlementID, driverID types.ID, now time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE settlements SET status = 'OVERDUE', overdue_at = $1
		WHERE id = $2 AND status NOT IN ('VERIFIED', 'FRAUD', 'OVERDUE')`,
		now, string(settlementID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE users SET status = 'SUSPENDED' WHERE id = $1 AND status <> 'BANNED'`,
		string(driverID)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE driver_profiles SET status = 'SUSPENDED' WHERE user_id = $1 AND status <> 'BANNED'`,
		string(driverID)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetProof(ctx context.Context, id types.ID) (Proof, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, settlement_id, file_url, status, reviewed_by_id, reviewed_at, created_at
		FROM settlement_proofs WHERE id = $1`, string(id))
	var p Proof
	var reviewedBy *string
	err := row.Scan(&p.ID, &p.SettlementID, &p.FileURL, &p.Status, &reviewedBy, &p.ReviewedAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Proof{}, ErrNotFound
	}
	if err != nil {
		return Proof{}, err
	}
	if reviewedBy != nil {
		id := types.ID(*reviewedBy)
		p.ReviewedByID = &id
	}
	return p, nil
}

func (s *Store) ListProofs(ctx context.Context, settlementID types.ID) ([]Proof, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, settlement_id, file_url, status, reviewed_by_id, reviewed_at, created_at
		FROM settlement_proofs WHERE settlement_id = $1 ORDER BY created_at ASC`, string(settlementID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Proof
	for rows.Next() {
		var p Proof
		var reviewedBy *string
		if err := rows.Scan(&p.ID, &p.SettlementID, &p.FileURL, &p.Status, &reviewedBy, &p.ReviewedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		if reviewedBy != nil {
			id := types.ID(*reviewedBy)
			p.ReviewedByID = &id
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateProof inserts the upload and flips an OPEN or OVERDUE settlement to
// PROOF_PENDING.
func (s *Store) CreateProof(ctx context.Context, p *Proof) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO settlement_proofs (id, settlement_id, file_url, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(p.ID), string(p.SettlementID), p.FileURL, string(p.Status), p.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE settlements SET status = 'PROOF_PENDING'
		WHERE id = $1 AND status IN ('OPEN', 'OVERDUE')`,
		string(p.SettlementID)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Approve verifies the settlement: proof APPROVED, settlement VERIFIED,
// linked commissions SETTLED, and a suspension caused by this settlement is
// undone. BANNED accounts are never reactivated here.
func (s *Store) Approve(ctx context.Context, proofID, settlementID, driverID, adminID types.ID, now time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE settlement_proofs SET status = 'APPROVED', reviewed_by_id = $1, reviewed_at = $2
		WHERE id = $3`, string(adminID), now, string(proofID)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE settlements SET status = 'VERIFIED', verified_at = $1 WHERE id = $2`,
		now, string(settlementID)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE commissions SET status = 'SETTLED' WHERE settlement_id = $1`,
		string(settlementID)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE users SET status = 'ACTIVE' WHERE id = $1 AND status = 'SUSPENDED'`,
		string(driverID)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE driver_profiles SET status = 'APPROVED' WHERE user_id = $1 AND status = 'SUSPENDED'`,
		string(driverID)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Reject(ctx context.Context, proofID, adminID types.ID, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE settlement_proofs SET status = 'REJECTED', reviewed_by_id = $1, reviewed_at = $2
		WHERE id = $3`, string(adminID), now, string(proofID))
	return err
}

// FraudRuling bans the driver over a fraudulent payment proof: proof and
// settlement marked FRAUD, an active ban covering the driver's current
// identity hashes, a penalty invoice at the given amount, and the BANNED
// cascade onto the account and profile. One transaction.
func (s *Store) FraudRuling(ctx context.Context, proofID, settlementID, driverID, adminID types.ID, penalty int64, now time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE settlement_proofs SET status = 'FRAUD', reviewed_by_id = $1, reviewed_at = $2
		WHERE id = $3`, string(adminID), now, string(proofID)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE settlements SET status = 'FRAUD' WHERE id = $1`,
		string(settlementID)); err != nil {
		return err
	}

	var licenseHash *string
	if err := tx.QueryRow(ctx, `
		SELECT license_hash FROM driver_profiles WHERE user_id = $1`,
		string(driverID)).Scan(&licenseHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var registrationHash *string
	if err := tx.QueryRow(ctx, `
		SELECT registration_hash FROM vehicles
		WHERE owner_id = $1 AND status = 'ACTIVE'
		ORDER BY created_at DESC LIMIT 1`,
		string(driverID)).Scan(&registrationHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO bans (id, user_id, license_hash, registration_hash, reason, note, is_active, created_at)
		VALUES ($1, $2, $3, $4, 'FRAUD', 'fraudulent settlement proof', TRUE, $5)`,
		uuid.NewString(), string(driverID), licenseHash, registrationHash, now); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO penalty_invoices (id, user_id, settlement_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, 'UNPAID', $5)`,
		uuid.NewString(), string(driverID), string(settlementID), penalty, now); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET status = 'BANNED' WHERE id = $1`, string(driverID)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE driver_profiles SET status = 'BANNED' WHERE user_id = $1`, string(driverID)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
