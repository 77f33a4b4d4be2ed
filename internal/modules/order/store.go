// README: Order store backed by PostgreSQL. Offer acceptance and completion
// run as single transactions that re-read the order's lock fields under a row
// lock before writing, which is what makes acceptance single-winner.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"naqlo/internal/types"
)

var ErrNotFound = errors.New("order: not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const orderColumns = `
	id, customer_id, city_id, truck_type, weight_kg,
	pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	distance_km, estimated_fare, final_fare, accepted_offer_id,
	assigned_driver_id, delivery_pin, status,
	created_at, arrived_at, delivered_at, completed_at, canceled_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var acceptedOfferID, assignedDriverID *string
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.CityID, &o.TruckType, &o.WeightKg,
		&o.Pickup.Lat, &o.Pickup.Lng, &o.Dropoff.Lat, &o.Dropoff.Lng,
		&o.DistanceKm, &o.EstimatedFare, &o.FinalFare, &acceptedOfferID,
		&assignedDriverID, &o.DeliveryPin, &o.Status,
		&o.CreatedAt, &o.ArrivedAt, &o.DeliveredAt, &o.CompletedAt, &o.CanceledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if acceptedOfferID != nil {
		id := types.ID(*acceptedOfferID)
		o.AcceptedOfferID = &id
	}
	if assignedDriverID != nil {
		id := types.ID(*assignedDriverID)
		o.AssignedDriverID = &id
	}
	return &o, nil
}

// Create inserts the order together with its initial STATUS event.
func (s *Store) Create(ctx context.Context, o *Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, customer_id, city_id, truck_type, weight_kg,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			distance_km, estimated_fare, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		string(o.ID), string(o.CustomerID), string(o.CityID), string(o.TruckType), o.WeightKg,
		o.Pickup.Lat, o.Pickup.Lng, o.Dropoff.Lat, o.Dropoff.Lng,
		o.DistanceKm, o.EstimatedFare, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return err
	}
	if err := appendEvent(ctx, tx, o.ID, EventStatus, types.Meta{"status": string(o.Status)}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	return scanOrder(row)
}

// ListOpen returns orders still negotiating in a city, newest first.
func (s *Store) ListOpen(ctx context.Context, cityID types.ID, truckType types.TruckType, limit int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE city_id = $1 AND truck_type = $2 AND status IN ('SEARCHING', 'OFFERED')
		ORDER BY created_at DESC LIMIT $3`,
		string(cityID), string(truckType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *Store) GetOffer(ctx context.Context, id types.ID) (*Offer, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, order_id, side, driver_id, amount, status, expires_at, created_at
		FROM order_offers WHERE id = $1`, string(id))
	return scanOffer(row)
}

func scanOffer(row pgx.Row) (*Offer, error) {
	var of Offer
	var driverID *string
	err := row.Scan(&of.ID, &of.OrderID, &of.Side, &driverID, &of.Amount, &of.Status, &of.ExpiresAt, &of.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if driverID != nil {
		id := types.ID(*driverID)
		of.DriverID = &id
	}
	return &of, nil
}

func (s *Store) ListOffers(ctx context.Context, orderID types.ID) ([]Offer, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, side, driver_id, amount, status, expires_at, created_at
		FROM order_offers WHERE order_id = $1 ORDER BY created_at ASC`, string(orderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Offer
	for rows.Next() {
		of, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *of)
	}
	return out, rows.Err()
}

func (s *Store) ListEvents(ctx context.Context, orderID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, type, meta, created_at
		FROM order_events WHERE order_id = $1 ORDER BY id ASC`, string(orderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var meta []byte
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Type, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(meta, &e.Meta)
		out = append(out, e)
	}
	return out, rows.Err()
}

// LatestPendingOffer returns the most recent PENDING offer on the order, if any.
func (s *Store) LatestPendingOffer(ctx context.Context, orderID types.ID) (*Offer, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, order_id, side, driver_id, amount, status, expires_at, created_at
		FROM order_offers
		WHERE order_id = $1 AND status = 'PENDING'
		ORDER BY created_at DESC LIMIT 1`, string(orderID))
	of, err := scanOffer(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return of, err
}

func (s *Store) MarkOfferExpired(ctx context.Context, offerID types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE order_offers SET status = 'EXPIRED' WHERE id = $1 AND status = 'PENDING'`,
		string(offerID))
	return err
}

// CountOffersBySide counts every offer the side has ever posted on the order,
// whatever its status; the counter limit is a hard cap, not a sliding window.
func (s *Store) CountOffersBySide(ctx context.Context, orderID types.ID, side OfferSide) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM order_offers WHERE order_id = $1 AND side = $2`,
		string(orderID), string(side)).Scan(&n)
	return n, err
}

// CreateOffer inserts an offer, moves the order to OFFERED and appends the
// OFFER_CREATED event, all in one transaction.
func (s *Store) CreateOffer(ctx context.Context, of *Offer) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// A fresh offer supersedes the poster's own earlier pending one.
	if _, err := tx.Exec(ctx, `
		UPDATE order_offers SET status = 'EXPIRED'
		WHERE order_id = $1 AND side = $2 AND status = 'PENDING'`,
		string(of.OrderID), string(of.Side)); err != nil {
		return err
	}

	var driverID *string
	if of.DriverID != nil {
		v := string(*of.DriverID)
		driverID = &v
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO order_offers (id, order_id, side, driver_id, amount, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(of.ID), string(of.OrderID), string(of.Side), driverID,
		of.Amount, string(of.Status), of.ExpiresAt, of.CreatedAt,
	)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status = 'OFFERED' WHERE id = $1 AND final_fare IS NULL`,
		string(of.OrderID)); err != nil {
		return err
	}
	meta := types.Meta{"side": string(of.Side), "amount": of.Amount}
	if of.DriverID != nil {
		meta["driverId"] = string(*of.DriverID)
	}
	if err := appendEvent(ctx, tx, of.OrderID, EventOfferCreated, meta); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Accept locks the order row, re-checks the lock fields and the target offer,
// then writes the acceptance atomically: winner ACCEPTED, every other PENDING
// offer REJECTED, order assigned. Exactly one concurrent caller can win.
func (s *Store) Accept(ctx context.Context, orderID, offerID, assignedDriverID types.ID, now time.Time) (*Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, string(orderID))
	fresh, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if fresh.FinalFare != nil || fresh.AcceptedOfferID != nil || Terminal(fresh.Status) {
		return nil, ErrOrderLocked
	}

	var offerStatus string
	var offerAmount int64
	var expiresAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT status, amount, expires_at FROM order_offers
		WHERE id = $1 AND order_id = $2 FOR UPDATE`,
		string(offerID), string(orderID)).Scan(&offerStatus, &offerAmount, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if OfferStatus(offerStatus) != OfferPending {
		return nil, ErrOfferNotPending
	}
	if !expiresAt.After(now) {
		if _, err := tx.Exec(ctx, `UPDATE order_offers SET status = 'EXPIRED' WHERE id = $1`, string(offerID)); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return nil, ErrOfferExpired
	}

	if _, err := tx.Exec(ctx, `UPDATE order_offers SET status = 'ACCEPTED' WHERE id = $1`, string(offerID)); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE order_offers SET status = 'REJECTED'
		WHERE order_id = $1 AND status = 'PENDING' AND id <> $2`,
		string(orderID), string(offerID)); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders
		SET final_fare = $1, accepted_offer_id = $2, assigned_driver_id = $3, status = 'ASSIGNED'
		WHERE id = $4`,
		offerAmount, string(offerID), string(assignedDriverID), string(orderID)); err != nil {
		return nil, err
	}
	if err := appendEvent(ctx, tx, orderID, EventOfferAccepted, types.Meta{
		"offerId": string(offerID), "amount": offerAmount, "assignedDriverId": string(assignedDriverID),
	}); err != nil {
		return nil, err
	}
	if err := appendEvent(ctx, tx, orderID, EventStatus, types.Meta{"status": string(StatusAssigned)}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

// UpdateStatus performs a guarded status transition: the write only lands when
// the order is still in the expected `from` status, closing the race between
// read and write. Timestamps and the PIN are stamped alongside, and the given
// events commit with the transition.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, pin *string, now time.Time, events []Event) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    delivery_pin = COALESCE($2, delivery_pin),
		    arrived_at = CASE WHEN $1 = 'ARRIVED' AND arrived_at IS NULL THEN $3 ELSE arrived_at END,
		    delivered_at = CASE WHEN $1 = 'DELIVERED' THEN $3 ELSE delivered_at END,
		    canceled_at = CASE WHEN $1 = 'CANCELED' THEN $3 ELSE canceled_at END
		WHERE id = $4 AND status = $5`,
		string(to), pin, now, string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	for _, e := range events {
		if err := appendEvent(ctx, tx, id, e.Type, e.Meta); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

// CommissionSnapshot carries the rule values frozen onto the commission row
// at completion time.
type CommissionSnapshot struct {
	Percent       float64
	MinCommission int64
	FixedFee      int64
	Amount        int64
}

// Complete finishes the order transactionally: cash payment recorded,
// commission upserted, status COMPLETED. Re-running against a COMPLETED order
// is a no-op; any other status but DELIVERED fails.
func (s *Store) Complete(ctx context.Context, orderID types.ID, snap CommissionSnapshot, now time.Time) (*Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, string(orderID))
	fresh, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if fresh.Status == StatusCompleted {
		return fresh, tx.Commit(ctx)
	}
	if fresh.Status != StatusDelivered {
		return nil, ErrNotDelivered
	}
	if fresh.FinalFare == nil || fresh.AssignedDriverID == nil {
		return nil, ErrOrderLocked
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO cash_payments (order_id, amount, collected_at, customer_confirmed)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (order_id) DO UPDATE SET customer_confirmed = TRUE`,
		string(orderID), *fresh.FinalFare, now); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO commissions (
			id, order_id, driver_id, city_id, truck_type,
			final_fare, percent, min_commission, fixed_fee, amount, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'UNPAID', $11)
		ON CONFLICT (order_id) DO UPDATE SET amount = EXCLUDED.amount`,
		uuid.NewString(), string(orderID), string(*fresh.AssignedDriverID),
		string(fresh.CityID), string(fresh.TruckType),
		*fresh.FinalFare, snap.Percent, snap.MinCommission, snap.FixedFee, snap.Amount, now); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status = 'COMPLETED', completed_at = $1 WHERE id = $2`,
		now, string(orderID)); err != nil {
		return nil, err
	}

	for _, e := range []Event{
		{Type: EventCashCollected, Meta: types.Meta{"amount": *fresh.FinalFare}},
		{Type: EventCommissionCreated, Meta: types.Meta{"amount": snap.Amount}},
		{Type: EventStatus, Meta: types.Meta{"status": string(StatusCompleted)}},
	} {
		if err := appendEvent(ctx, tx, orderID, e.Type, e.Meta); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

func appendEvent(ctx context.Context, tx pgx.Tx, orderID types.ID, eventType string, meta types.Meta) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		payload = []byte("{}")
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO order_events (order_id, type, meta, created_at)
		VALUES ($1, $2, $3, $4)`,
		string(orderID), eventType, payload, time.Now().UTC())
	return err
}
