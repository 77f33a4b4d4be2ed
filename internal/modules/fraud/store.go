// README: Ban and penalty store backed by PostgreSQL. Status cascades onto
// users and driver profiles run inside the same transaction as the ban write.
package fraud

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"naqlo/internal/types"
)

var ErrNotFound = errors.New("fraud: not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetBan(ctx context.Context, id types.ID) (Ban, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, license_hash, registration_hash, device_hash,
		       reason, note, is_active, lifted_at, lifted_by_id, created_at
		FROM bans WHERE id = $1`, string(id))
	return scanBan(row)
}

func scanBan(row pgx.Row) (Ban, error) {
	var b Ban
	var userID, liftedBy *string
	err := row.Scan(&b.ID, &userID, &b.LicenseHash, &b.RegistrationHash, &b.DeviceHash,
		&b.Reason, &b.Note, &b.IsActive, &b.LiftedAt, &liftedBy, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ban{}, ErrNotFound
	}
	if err != nil {
		return Ban{}, err
	}
	if userID != nil {
		id := types.ID(*userID)
		b.UserID = &id
	}
	if liftedBy != nil {
		id := types.ID(*liftedBy)
		b.LiftedByID = &id
	}
	return b, nil
}

// CreateBan inserts the ban and, when it targets a user, cascades BANNED onto
// the user account and driver profile in one transaction.
func (s *Store) CreateBan(ctx context.Context, b *Ban) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertBan(ctx, tx, b); err != nil {
		return err
	}
	if b.UserID != nil {
		if err := banUserRows(ctx, tx, *b.UserID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertBan(ctx context.Context, tx pgx.Tx, b *Ban) error {
	var userID *string
	if b.UserID != nil {
		v := string(*b.UserID)
		userID = &v
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO bans (id, user_id, license_hash, registration_hash, device_hash, reason, note, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)`,
		string(b.ID), userID, b.LicenseHash, b.RegistrationHash, b.DeviceHash,
		string(b.Reason), b.Note, b.CreatedAt,
	)
	return err
}

func banUserRows(ctx context.Context, tx pgx.Tx, userID types.ID) error {
	if _, err := tx.Exec(ctx, `UPDATE users SET status = 'BANNED' WHERE id = $1`, string(userID)); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE driver_profiles SET status = 'BANNED' WHERE user_id = $1`, string(userID))
	return err
}

// Lift marks the ban inactive and reactivates the user only when no other
// active bans remain against them.
func (s *Store) Lift(ctx context.Context, banID, actorID types.ID, now time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var userID *string
	row := tx.QueryRow(ctx, `
		UPDATE bans SET is_active = FALSE, lifted_at = $1, lifted_by_id = $2
		WHERE id = $3
		RETURNING user_id`, now, string(actorID), string(banID))
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if userID != nil {
		var remaining int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM bans WHERE user_id = $1 AND is_active`, *userID).Scan(&remaining); err != nil {
			return err
		}
		if remaining == 0 {
			if _, err := tx.Exec(ctx, `UPDATE users SET status = 'ACTIVE' WHERE id = $1`, *userID); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `UPDATE driver_profiles SET status = 'APPROVED' WHERE user_id = $1`, *userID); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) CountActiveBansForHash(ctx context.Context, column, hash string) (int, error) {
	var q string
	switch column {
	case "license_hash":
		q = `SELECT COUNT(*) FROM bans WHERE license_hash = $1 AND is_active`
	case "registration_hash":
		q = `SELECT COUNT(*) FROM bans WHERE registration_hash = $1 AND is_active`
	case "device_hash":
		q = `SELECT COUNT(*) FROM bans WHERE device_hash = $1 AND is_active`
	default:
		return 0, errors.New("fraud: unknown hash column")
	}
	var n int
	if err := s.db.QueryRow(ctx, q, hash).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) CountUnpaidInvoices(ctx context.Context, userID types.ID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM penalty_invoices WHERE user_id = $1 AND status = 'UNPAID'`,
		string(userID)).Scan(&n)
	return n, err
}

func (s *Store) GetInvoice(ctx context.Context, id types.ID) (PenaltyInvoice, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, settlement_id, amount, status, paid_at, marked_paid_by_id, created_at
		FROM penalty_invoices WHERE id = $1`, string(id))
	var inv PenaltyInvoice
	var markedBy *string
	err := row.Scan(&inv.ID, &inv.UserID, &inv.SettlementID, &inv.Amount, &inv.Status,
		&inv.PaidAt, &markedBy, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PenaltyInvoice{}, ErrNotFound
	}
	if err != nil {
		return PenaltyInvoice{}, err
	}
	if markedBy != nil {
		id := types.ID(*markedBy)
		inv.MarkedPaidByID = &id
	}
	return inv, nil
}

func (s *Store) MarkInvoicePaid(ctx context.Context, id, actorID types.ID, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE penalty_invoices SET status = 'PAID', paid_at = $1, marked_paid_by_id = $2
		WHERE id = $3 AND status = 'UNPAID'`,
		now, string(actorID), string(id),
	)
	return err
}
