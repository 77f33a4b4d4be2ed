// README: DB-backed settlement tests (gated on NAQLO_TEST_DSN): the weekly
// batch, overdue suspension, and proof review rulings end to end.
package settlement

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"naqlo/internal/types"
)

func TestCreateWeeklySettlements(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	loc := algiers(t)
	jobs := NewJobs(store, loc, zap.NewNop())

	seedDriver(t, store, "d1", "ACTIVE", "APPROVED")
	seedDriver(t, store, "d2", "ACTIVE", "APPROVED")
	seedCustomer(t, store, "c1")

	// Sunday 00:05 local; the job sweeps Aug 23 - Aug 30.
	now := time.Date(2026, 8, 30, 0, 5, 0, 0, loc)
	inWeek := time.Date(2026, 8, 26, 12, 0, 0, 0, loc)
	before := time.Date(2026, 8, 20, 12, 0, 0, 0, loc)

	seedCommission(t, store, "d1", 150, inWeek)
	seedCommission(t, store, "d1", 200, inWeek.Add(time.Hour))
	seedCommission(t, store, "d2", 300, inWeek)
	seedCommission(t, store, "d2", 999, before) // outside the window

	if err := jobs.RunCreateWeeklySettlements(ctx, now); err != nil {
		t.Fatalf("run job: %v", err)
	}

	d1 := mustSettlementFor(t, store, "d1")
	if d1.AmountDue != 350 || d1.Status != StatusOpen {
		t.Fatalf("d1 settlement wrong: %+v", d1)
	}
	d2 := mustSettlementFor(t, store, "d2")
	if d2.AmountDue != 300 {
		t.Fatalf("d2 settlement wrong: %+v", d2)
	}

	var linked, unpaid int
	if err := store.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'IN_SETTLEMENT' AND settlement_id IS NOT NULL),
		       COUNT(*) FILTER (WHERE status = 'UNPAID')
		FROM commissions`).Scan(&linked, &unpaid); err != nil {
		t.Fatalf("count commissions: %v", err)
	}
	if linked != 3 || unpaid != 1 {
		t.Fatalf("expected 3 swept and 1 untouched commission, got %d/%d", linked, unpaid)
	}

	// Re-running the same week changes nothing.
	if err := jobs.RunCreateWeeklySettlements(ctx, now.Add(time.Minute)); err != nil {
		t.Fatalf("re-run job: %v", err)
	}
	var n int
	if err := store.db.QueryRow(ctx, `SELECT COUNT(*) FROM settlements`).Scan(&n); err != nil {
		t.Fatalf("count settlements: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 settlements after re-run, got %d", n)
	}
	if again := mustSettlementFor(t, store, "d1"); again.AmountDue != 350 {
		t.Fatalf("re-run must not change amount, got %d", again.AmountDue)
	}
}

func TestSuspendOverdueSettlements(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	loc := algiers(t)
	jobs := NewJobs(store, loc, zap.NewNop())

	seedDriver(t, store, "d1", "ACTIVE", "APPROVED")
	seedDriver(t, store, "d2", "ACTIVE", "APPROVED")
	seedDriver(t, store, "d3", "BANNED", "BANNED")

	start := time.Date(2026, 8, 23, 0, 0, 0, 0, loc)
	end := time.Date(2026, 8, 30, 0, 0, 0, 0, loc)
	seedSettlement(t, store, "s1", "d1", start, end, 350, StatusOpen)
	seedSettlement(t, store, "s2", "d2", start, end, 500, StatusVerified)
	seedSettlement(t, store, "s3", "d3", start, end, 200, StatusOpen)

	// Monday 00:00 local.
	now := time.Date(2026, 8, 31, 0, 0, 10, 0, loc)
	if err := jobs.RunSuspendOverdueSettlements(ctx, now); err != nil {
		t.Fatalf("run job: %v", err)
	}

	s1, _ := store.Get(ctx, "s1")
	if s1.Status != StatusOverdue || s1.OverdueAt == nil {
		t.Fatalf("expected s1 OVERDUE, got %+v", s1)
	}
	if got := userStatus(t, store, "d1"); got != "SUSPENDED" {
		t.Fatalf("expected d1 SUSPENDED, got %s", got)
	}
	if got := profileStatus(t, store, "d1"); got != "SUSPENDED" {
		t.Fatalf("expected d1 profile SUSPENDED, got %s", got)
	}

	s2, _ := store.Get(ctx, "s2")
	if s2.Status != StatusVerified {
		t.Fatalf("verified settlement must stay VERIFIED, got %s", s2.Status)
	}
	if got := userStatus(t, store, "d2"); got != "ACTIVE" {
		t.Fatalf("verified driver must stay ACTIVE, got %s", got)
	}

	// A ban is never downgraded to a suspension.
	if got := userStatus(t, store, "d3"); got != "BANNED" {
		t.Fatalf("banned driver must stay BANNED, got %s", got)
	}
	s3, _ := store.Get(ctx, "s3")
	if s3.Status != StatusOverdue {
		t.Fatalf("the banned driver's settlement still goes OVERDUE, got %s", s3.Status)
	}
}

func TestProofApproveReactivates(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	svc := NewService(store, nil)
	loc := algiers(t)

	seedDriver(t, store, "d1", "SUSPENDED", "SUSPENDED")
	seedCustomer(t, store, "c1")
	start := time.Date(2026, 8, 23, 0, 0, 0, 0, loc)
	end := time.Date(2026, 8, 30, 0, 0, 0, 0, loc)
	seedSettlement(t, store, "s1", "d1", start, end, 350, StatusOverdue)
	seedCommission(t, store, "d1", 350, start.Add(24*time.Hour))
	if _, err := store.db.Exec(ctx, `UPDATE commissions SET status = 'IN_SETTLEMENT', settlement_id = 's1'`); err != nil {
		t.Fatalf("link commission: %v", err)
	}

	// Wrong driver cannot upload.
	if _, err := svc.UploadProof(ctx, "d2", "s1", "https://proofs/x.jpg"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	p, err := svc.UploadProof(ctx, "d1", "s1", "https://proofs/x.jpg")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	st, _ := store.Get(ctx, "s1")
	if st.Status != StatusProofPending {
		t.Fatalf("expected PROOF_PENDING after upload, got %s", st.Status)
	}

	if err := svc.ReviewProof(ctx, "admin", p.ID, DecisionApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}
	st, _ = store.Get(ctx, "s1")
	if st.Status != StatusVerified || st.VerifiedAt == nil {
		t.Fatalf("expected VERIFIED, got %+v", st)
	}
	var commissionStatus string
	if err := store.db.QueryRow(ctx, `SELECT status FROM commissions WHERE settlement_id = 's1'`).Scan(&commissionStatus); err != nil {
		t.Fatalf("commission status: %v", err)
	}
	if commissionStatus != "SETTLED" {
		t.Fatalf("expected SETTLED commission, got %s", commissionStatus)
	}
	if got := userStatus(t, store, "d1"); got != "ACTIVE" {
		t.Fatalf("expected reactivated driver, got %s", got)
	}
	if got := profileStatus(t, store, "d1"); got != "APPROVED" {
		t.Fatalf("expected reapproved profile, got %s", got)
	}

	// VERIFIED settlements take no further uploads.
	if _, err := svc.UploadProof(ctx, "d1", "s1", "https://proofs/y.jpg"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
	// The ruling is final.
	if err := svc.ReviewProof(ctx, "admin", p.ID, DecisionReject); !errors.Is(err, ErrProofReviewed) {
		t.Fatalf("expected ErrProofReviewed, got %v", err)
	}
}

func TestProofFraudRuling(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	svc := NewService(store, nil)
	loc := algiers(t)

	seedDriver(t, store, "d1", "ACTIVE", "APPROVED")
	start := time.Date(2026, 8, 23, 0, 0, 0, 0, loc)
	end := time.Date(2026, 8, 30, 0, 0, 0, 0, loc)
	seedSettlement(t, store, "s1", "d1", start, end, 350, StatusProofPending)

	p, err := svc.UploadProof(ctx, "d1", "s1", "https://proofs/fake.jpg")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := svc.ReviewProof(ctx, "admin", p.ID, DecisionFraud); err != nil {
		t.Fatalf("fraud ruling: %v", err)
	}

	st, _ := store.Get(ctx, "s1")
	if st.Status != StatusFraud {
		t.Fatalf("expected FRAUD settlement, got %s", st.Status)
	}
	if got := userStatus(t, store, "d1"); got != "BANNED" {
		t.Fatalf("expected BANNED driver, got %s", got)
	}
	if got := profileStatus(t, store, "d1"); got != "BANNED" {
		t.Fatalf("expected BANNED profile, got %s", got)
	}

	var bans int
	if err := store.db.QueryRow(ctx, `SELECT COUNT(*) FROM bans WHERE user_id = 'd1' AND is_active`).Scan(&bans); err != nil {
		t.Fatalf("count bans: %v", err)
	}
	if bans != 1 {
		t.Fatalf("expected 1 active ban, got %d", bans)
	}

	var amount int64
	var invoiceStatus string
	if err := store.db.QueryRow(ctx, `
		SELECT amount, status FROM penalty_invoices WHERE user_id = 'd1' AND settlement_id = 's1'`).
		Scan(&amount, &invoiceStatus); err != nil {
		t.Fatalf("invoice row: %v", err)
	}
	if amount != 3500 || invoiceStatus != "UNPAID" {
		t.Fatalf("expected UNPAID invoice of 3500, got %d %s", amount, invoiceStatus)
	}
}

// --- helpers ---

func seedCustomer(t *testing.T, store *Store, id types.ID) {
	t.Helper()
	if _, err := store.db.Exec(context.Background(), `
		INSERT INTO users (id, role, status) VALUES ($1, 'CUSTOMER', 'ACTIVE')
		ON CONFLICT (id) DO NOTHING`, string(id)); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
}

func seedDriver(t *testing.T, store *Store, id types.ID, userStatus, profileStatus string) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.db.Exec(ctx, `
		INSERT INTO users (id, role, status) VALUES ($1, 'DRIVER', $2)
		ON CONFLICT (id) DO NOTHING`, string(id), userStatus); err != nil {
		t.Fatalf("seed driver user: %v", err)
	}
	if _, err := store.db.Exec(ctx, `
		INSERT INTO driver_profiles (user_id, status) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`, string(id), profileStatus); err != nil {
		t.Fatalf("seed driver profile: %v", err)
	}
}

// seedCommission plants a COMPLETED order with an UNPAID commission at the
// given completion time.
func seedCommission(t *testing.T, store *Store, driverID types.ID, amount int64, completedAt time.Time) {
	t.Helper()
	ctx := context.Background()
	seedCustomer(t, store, "c1")
	orderID := uuid.NewString()
	if _, err := store.db.Exec(ctx, `
		INSERT INTO orders (id, customer_id, city_id, truck_type, weight_kg,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			distance_km, estimated_fare, final_fare, assigned_driver_id,
			status, created_at, completed_at)
		VALUES ($1, 'c1', 'algiers', 'SMALL', 400, 36.75, 3.05, 36.72, 3.18,
			7.5, 1000, 1000, $2, 'COMPLETED', $3, $4)`,
		orderID, string(driverID), completedAt.Add(-2*time.Hour), completedAt); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if _, err := store.db.Exec(ctx, `
		INSERT INTO commissions (id, order_id, driver_id, city_id, truck_type,
			final_fare, percent, min_commission, fixed_fee, amount, status, created_at)
		VALUES ($1, $2, $3, 'algiers', 'SMALL', 1000, 0.1, 150, 0, $4, 'UNPAID', $5)`,
		uuid.NewString(), orderID, string(driverID), amount, completedAt); err != nil {
		t.Fatalf("seed commission: %v", err)
	}
}

func seedSettlement(t *testing.T, store *Store, id, driverID types.ID, start, end time.Time, amount int64, status Status) {
	t.Helper()
	if _, err := store.db.Exec(context.Background(), `
		INSERT INTO settlements (id, driver_id, week_start, week_end, amount_due, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(id), string(driverID), start, end, amount, string(status)); err != nil {
		t.Fatalf("seed settlement: %v", err)
	}
}

func mustSettlementFor(t *testing.T, store *Store, driverID types.ID) Settlement {
	t.Helper()
	list, err := store.ListByDriver(context.Background(), driverID)
	if err != nil {
		t.Fatalf("list settlements: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 settlement for %s, got %d", driverID, len(list))
	}
	return list[0]
}

func userStatus(t *testing.T, store *Store, id types.ID) string {
	t.Helper()
	var status string
	if err := store.db.QueryRow(context.Background(), `SELECT status FROM users WHERE id = $1`, string(id)).Scan(&status); err != nil {
		t.Fatalf("user status: %v", err)
	}
	return status
}

func profileStatus(t *testing.T, store *Store, id types.ID) string {
	t.Helper()
	var status string
	if err := store.db.QueryRow(context.Background(), `SELECT status FROM driver_profiles WHERE user_id = $1`, string(id)).Scan(&status); err != nil {
		t.Fatalf("profile status: %v", err)
	}
	return status
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("NAQLO_TEST_DSN")
	if dsn == "" {
		t.Skip("NAQLO_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE bans, penalty_invoices, settlements CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return NewStore(db)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	path := filepath.Join(root, "migrations", "0001_init.sql")
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply %q: %w", stmt[:min(40, len(stmt))], err)
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
