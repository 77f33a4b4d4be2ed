// README: Pricing service computes clamped fare estimates from city profiles.
package pricing

import (
	"context"
	"math"

	"naqlo/internal/geo"
	"naqlo/internal/types"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Estimate prices a prospective order. Distance is great-circle, rounded to
// 0.1 km before entering the fare formula.
func (s *Service) Estimate(ctx context.Context, cityID types.ID, truckType types.TruckType, weightKg int, pickup, dropoff types.Point) (Estimate, error) {
	profile, err := s.store.GetProfile(ctx, cityID, truckType)
	if err != nil {
		return Estimate{}, err
	}

	distanceKm := geo.Round1(geo.HaversineKm(pickup.Lat, pickup.Lng, dropoff.Lat, dropoff.Lng))
	return Estimate{
		Profile:    profile,
		DistanceKm: distanceKm,
		Fare:       fareFromProfile(profile, distanceKm, weightKg),
	}, nil
}

// Profile exposes the raw city profile, negotiation parameters included.
func (s *Service) Profile(ctx context.Context, cityID types.ID, truckType types.TruckType) (Profile, error) {
	return s.store.GetProfile(ctx, cityID, truckType)
}

// Rule returns the commission rule for (cityID, truckType), ErrNotFound when
// absent.
func (s *Service) Rule(ctx context.Context, cityID types.ID, truckType types.TruckType) (CommissionRule, error) {
	return s.store.GetCommissionRule(ctx, cityID, truckType)
}

// fareFromProfile applies baseFee + round(distanceKm*rateKm) + weightKg*rateKg,
// then clamps into [minFare, maxFare] after rounding to the nearest unit.
func fareFromProfile(p Profile, distanceKm float64, weightKg int) int64 {
	raw := float64(p.BaseFee) + math.Round(distanceKm*float64(p.RateKm)) + float64(int64(weightKg)*p.RateKg)
	fare := int64(math.Round(raw))
	if fare < p.MinFare {
		return p.MinFare
	}
	if fare > p.MaxFare {
		return p.MaxFare
	}
	return fare
}

// CommissionAmount computes the platform cut for a locked fare: the ceiled
// percentage component is floored by minCommission before the fixed fee is
// added. The ordering is load-bearing for the weekly settlement totals.
func CommissionAmount(finalFare int64, rule CommissionRule) int64 {
	pct := int64(math.Ceil(float64(finalFare) * rule.Percent))
	if pct < rule.MinCommission {
		pct = rule.MinCommission
	}
	return pct + rule.FixedFee
}

// NegotiationBounds returns the inclusive [min, max] offer window around an
// estimated fare.
func NegotiationBounds(estimatedFare int64, minPct, maxPct float64) (int64, int64) {
	low := int64(math.Floor(float64(estimatedFare) * (1 - minPct)))
	high := int64(math.Ceil(float64(estimatedFare) * (1 + maxPct)))
	return low, high
}
