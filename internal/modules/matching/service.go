// README: Matching service ranks eligible nearby drivers for an order. This
// is informational only: no driver is reserved, conflicts resolve later
// through offer acceptance.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"naqlo/internal/geo"
	"naqlo/internal/types"
)

var (
	ErrNoActiveVehicle = errors.New("matching: no active vehicle")
	ErrBadRequest      = errors.New("matching: bad request")
)

// OnlineState is the keyed volatile store for membership and locations,
// implemented by the Redis Store and by an in-memory fake in tests.
type OnlineState interface {
	AddOnline(ctx context.Context, cityID types.ID, truckType types.TruckType, driverID types.ID) error
	RemoveOnline(ctx context.Context, cityID types.ID, truckType types.TruckType, driverID types.ID) error
	OnlineMembers(ctx context.Context, cityID types.ID, truckType types.TruckType) ([]types.ID, error)
	SetLocation(ctx context.Context, driverID types.ID, loc Location) error
	GetLocation(ctx context.Context, driverID types.ID) (Location, bool, error)
}

// Fleet is the slice of the driver repository matching needs. Eligibility is
// re-read on every call; matching never caches ban or status state.
type Fleet interface {
	// ActiveVehicleTruckType returns the truck type of the driver's active
	// vehicle, or an error when they own none.
	ActiveVehicleTruckType(ctx context.Context, driverID types.ID) (types.TruckType, error)
	EligibleDrivers(ctx context.Context, ids []types.ID, truckType types.TruckType, weightKg int) ([]types.ID, error)
}

type Service struct {
	state OnlineState
	fleet Fleet
}

func NewService(state OnlineState, fleet Fleet) *Service {
	return &Service{state: state, fleet: fleet}
}

// SetOnline toggles a driver's membership in the city set keyed by their
// active vehicle's truck type. Drivers without an active vehicle cannot go
// online.
func (s *Service) SetOnline(ctx context.Context, driverID, cityID types.ID, online bool) (types.TruckType, error) {
	truckType, err := s.fleet.ActiveVehicleTruckType(ctx, driverID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoActiveVehicle, err)
	}
	if online {
		return truckType, s.state.AddOnline(ctx, cityID, truckType, driverID)
	}
	return truckType, s.state.RemoveOnline(ctx, cityID, truckType, driverID)
}

// UpdateLocation upserts the driver's last known position.
func (s *Service) UpdateLocation(ctx context.Context, driverID types.ID, lat, lng float64) error {
	if !geo.IsFinite(lat, lng) {
		return fmt.Errorf("%w: coordinates must be finite", ErrBadRequest)
	}
	return s.state.SetLocation(ctx, driverID, Location{Lat: lat, Lng: lng, TS: time.Now().UTC()})
}

// Match returns up to limit eligible driver IDs ordered by distance from the
// pickup point. Drivers with no known location are excluded.
func (s *Service) Match(ctx context.Context, cityID types.ID, truckType types.TruckType, weightKg int, pickup types.Point, limit int) ([]types.ID, error) {
	if limit <= 0 {
		limit = 10
	}
	online, err := s.state.OnlineMembers(ctx, cityID, truckType)
	if err != nil {
		return nil, err
	}
	if len(online) == 0 {
		return nil, nil
	}

	eligible, err := s.fleet.EligibleDrivers(ctx, online, truckType, weightKg)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedCandidate, 0, len(eligible))
	for _, id := range eligible {
		loc, ok, err := s.state.GetLocation(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ranked = append(ranked, rankedCandidate{
			DriverID:   id,
			DistanceKm: geo.HaversineKm(pickup.Lat, pickup.Lng, loc.Lat, loc.Lng),
		})
	}

	geo.SortByDistance(ranked, func(c rankedCandidate) float64 { return c.DistanceKm })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]types.ID, len(ranked))
	for i, c := range ranked {
		out[i] = c.DriverID
	}
	return out, nil
}
