// README: Matching store backed by Redis sets and hashes. Online membership
// is keyed per (city, truckType); locations are one hash per driver.
package matching

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"naqlo/internal/types"
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func onlineSetKey(cityID types.ID, truckType types.TruckType) string {
	return fmt.Sprintf("naqlo:online:%s:%s", cityID, truckType)
}

func locKey(driverID types.ID) string {
	return fmt.Sprintf("naqlo:loc:%s", driverID)
}

func (s *Store) AddOnline(ctx context.Context, cityID types.ID, truckType types.TruckType, driverID types.ID) error {
	return s.redis.SAdd(ctx, onlineSetKey(cityID, truckType), string(driverID)).Err()
}

func (s *Store) RemoveOnline(ctx context.Context, cityID types.ID, truckType types.TruckType, driverID types.ID) error {
	return s.redis.SRem(ctx, onlineSetKey(cityID, truckType), string(driverID)).Err()
}

func (s *Store) OnlineMembers(ctx context.Context, cityID types.ID, truckType types.TruckType) ([]types.ID, error) {
	members, err := s.redis.SMembers(ctx, onlineSetKey(cityID, truckType)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids, nil
}

func (s *Store) SetLocation(ctx context.Context, driverID types.ID, loc Location) error {
	return s.redis.HSet(ctx, locKey(driverID), map[string]any{
		"lat": strconv.FormatFloat(loc.Lat, 'f', -1, 64),
		"lng": strconv.FormatFloat(loc.Lng, 'f', -1, 64),
		"ts":  loc.TS.UTC().Format(time.RFC3339),
	}).Err()
}

// GetLocation returns the last known location; ok is false when the driver
// has never reported one.
func (s *Store) GetLocation(ctx context.Context, driverID types.ID) (Location, bool, error) {
	fields, err := s.redis.HGetAll(ctx, locKey(driverID)).Result()
	if err != nil {
		return Location{}, false, err
	}
	if len(fields) == 0 {
		return Location{}, false, nil
	}
	lat, err := strconv.ParseFloat(fields["lat"], 64)
	if err != nil {
		return Location{}, false, err
	}
	lng, err := strconv.ParseFloat(fields["lng"], 64)
	if err != nil {
		return Location{}, false, err
	}
	ts, _ := time.Parse(time.RFC3339, fields["ts"])
	return Location{Lat: lat, Lng: lng, TS: ts}, true, nil
}
