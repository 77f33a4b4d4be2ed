// README: Pricing store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"naqlo/internal/types"
)

var ErrNotFound = errors.New("pricing: not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetProfile(ctx context.Context, cityID types.ID, truckType types.TruckType) (Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT city_id, truck_type, base_fee, rate_km, rate_kg, min_fare, max_fare,
		       negotiate_min_pct, negotiate_max_pct, offer_timeout_sec, max_counters_per_side
		FROM pricing_profiles
		WHERE city_id = $1 AND truck_type = $2`,
		string(cityID), string(truckType),
	)

	var p Profile
	err := row.Scan(
		&p.CityID, &p.TruckType, &p.BaseFee, &p.RateKm, &p.RateKg, &p.MinFare, &p.MaxFare,
		&p.NegotiateMinPct, &p.NegotiateMaxPct, &p.OfferTimeoutSec, &p.MaxCountersPerSide,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Store) GetCommissionRule(ctx context.Context, cityID types.ID, truckType types.TruckType) (CommissionRule, error) {
	row := s.db.QueryRow(ctx, `
		SELECT city_id, truck_type, percent, min_commission, fixed_fee
		FROM commission_rules
		WHERE city_id = $1 AND truck_type = $2`,
		string(cityID), string(truckType),
	)

	var r CommissionRule
	err := row.Scan(&r.CityID, &r.TruckType, &r.Percent, &r.MinCommission, &r.FixedFee)
	if errors.Is(err, pgx.ErrNoRows) {
		return CommissionRule{}, ErrNotFound
	}
	if err != nil {
		return CommissionRule{}, err
	}
	return r, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p Profile) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO pricing_profiles (
			city_id, truck_type, base_fee, rate_km, rate_kg, min_fare, max_fare,
			negotiate_min_pct, negotiate_max_pct, offer_timeout_sec, max_counters_per_side
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (city_id, truck_type) DO UPDATE SET
			base_fee = EXCLUDED.base_fee,
			rate_km = EXCLUDED.rate_km,
			rate_kg = EXCLUDED.rate_kg,
			min_fare = EXCLUDED.min_fare,
			max_fare = EXCLUDED.max_fare,
			negotiate_min_pct = EXCLUDED.negotiate_min_pct,
			negotiate_max_pct = EXCLUDED.negotiate_max_pct,
			offer_timeout_sec = EXCLUDED.offer_timeout_sec,
			max_counters_per_side = EXCLUDED.max_counters_per_side`,
		string(p.CityID), string(p.TruckType), p.BaseFee, p.RateKm, p.RateKg, p.MinFare, p.MaxFare,
		p.NegotiateMinPct, p.NegotiateMaxPct, p.OfferTimeoutSec, p.MaxCountersPerSide,
	)
	return err
}

func (s *Store) UpsertCommissionRule(ctx context.Context, r CommissionRule) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO commission_rules (city_id, truck_type, percent, min_commission, fixed_fee)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (city_id, truck_type) DO UPDATE SET
			percent = EXCLUDED.percent,
			min_commission = EXCLUDED.min_commission,
			fixed_fee = EXCLUDED.fixed_fee`,
		string(r.CityID), string(r.TruckType), r.Percent, r.MinCommission, r.FixedFee,
	)
	return err
}
