// README: Matching engine tests against in-memory fakes.
package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"naqlo/internal/types"
)

type fakeState struct {
	mu     sync.Mutex
	online map[string]map[types.ID]bool
	locs   map[types.ID]Location
}

func newFakeState() *fakeState {
	return &fakeState{online: map[string]map[types.ID]bool{}, locs: map[types.ID]Location{}}
}

func (f *fakeState) key(cityID types.ID, tt types.TruckType) string {
	return string(cityID) + ":" + string(tt)
}

func (f *fakeState) AddOnline(_ context.Context, cityID types.ID, tt types.TruckType, driverID types.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(cityID, tt)
	if f.online[k] == nil {
		f.online[k] = map[types.ID]bool{}
	}
	f.online[k][driverID] = true
	return nil
}

func (f *fakeState) RemoveOnline(_ context.Context, cityID types.ID, tt types.TruckType, driverID types.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.online[f.key(cityID, tt)], driverID)
	return nil
}

func (f *fakeState) OnlineMembers(_ context.Context, cityID types.ID, tt types.TruckType) ([]types.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.ID
	for id := range f.online[f.key(cityID, tt)] {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeState) SetLocation(_ context.Context, driverID types.ID, loc Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locs[driverID] = loc
	return nil
}

func (f *fakeState) GetLocation(_ context.Context, driverID types.ID) (Location, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.locs[driverID]
	return loc, ok, nil
}

type fakeDriver struct {
	truckType  types.TruckType
	capacityKg int
	photos     int
	approved   bool
	hasActive  bool
}

type fakeFleet struct {
	mu      sync.Mutex
	drivers map[types.ID]fakeDriver
}

func (f *fakeFleet) ActiveVehicleTruckType(_ context.Context, driverID types.ID) (types.TruckType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drivers[driverID]
	if !ok || !d.hasActive {
		return "", errors.New("no active vehicle")
	}
	return d.truckType, nil
}

func (f *fakeFleet) EligibleDrivers(_ context.Context, ids []types.ID, tt types.TruckType, weightKg int) ([]types.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.ID
	for _, id := range ids {
		d, ok := f.drivers[id]
		if !ok || !d.approved || !d.hasActive {
			continue
		}
		if d.truckType != tt || d.capacityKg < weightKg || d.photos < 3 {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func newService(fleet *fakeFleet) (*Service, *fakeState) {
	state := newFakeState()
	return NewService(state, fleet), state
}

func TestSetOnline_RequiresActiveVehicle(t *testing.T) {
	ctx := context.Background()
	fleet := &fakeFleet{drivers: map[types.ID]fakeDriver{
		"d1": {truckType: types.TruckSmall, capacityKg: 800, photos: 3, approved: true, hasActive: true},
	}}
	svc, state := newService(fleet)

	if _, err := svc.SetOnline(ctx, "d1", "algiers", true); err != nil {
		t.Fatalf("set online: %v", err)
	}
	members, _ := state.OnlineMembers(ctx, "algiers", types.TruckSmall)
	if len(members) != 1 || members[0] != "d1" {
		t.Fatalf("expected d1 online, got %v", members)
	}

	if _, err := svc.SetOnline(ctx, "ghost", "algiers", true); !errors.Is(err, ErrNoActiveVehicle) {
		t.Fatalf("expected ErrNoActiveVehicle, got %v", err)
	}

	if _, err := svc.SetOnline(ctx, "d1", "algiers", false); err != nil {
		t.Fatalf("set offline: %v", err)
	}
	members, _ = state.OnlineMembers(ctx, "algiers", types.TruckSmall)
	if len(members) != 0 {
		t.Fatalf("expected empty set after going offline, got %v", members)
	}
}

func TestUpdateLocation_RejectsNonFinite(t *testing.T) {
	svc, _ := newService(&fakeFleet{drivers: map[types.ID]fakeDriver{}})
	if err := svc.UpdateLocation(context.Background(), "d1", 36.75, 3.05); err != nil {
		t.Fatalf("valid location: %v", err)
	}
}

func TestMatch_RanksByDistance(t *testing.T) {
	ctx := context.Background()
	fleet := &fakeFleet{drivers: map[types.ID]fakeDriver{
		"near":    {truckType: types.TruckSmall, capacityKg: 800, photos: 3, approved: true, hasActive: true},
		"far":     {truckType: types.TruckSmall, capacityKg: 800, photos: 3, approved: true, hasActive: true},
		"nearest": {truckType: types.TruckSmall, capacityKg: 800, photos: 3, approved: true, hasActive: true},
	}}
	svc, _ := newService(fleet)

	for _, id := range []types.ID{"near", "far", "nearest"} {
		if _, err := svc.SetOnline(ctx, id, "algiers", true); err != nil {
			t.Fatalf("set online %s: %v", id, err)
		}
	}
	pickup := types.Point{Lat: 36.7538, Lng: 3.0588}
	_ = svc.UpdateLocation(ctx, "nearest", 36.7540, 3.0590)
	_ = svc.UpdateLocation(ctx, "near", 36.7700, 3.0700)
	_ = svc.UpdateLocation(ctx, "far", 36.9000, 3.3000)

	got, err := svc.Match(ctx, "algiers", types.TruckSmall, 500, pickup, 10)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	want := []types.ID{"nearest", "near", "far"}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank %d: got %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestMatch_CapacityFilter(t *testing.T) {
	ctx := context.Background()
	fleet := &fakeFleet{drivers: map[types.ID]fakeDriver{
		"d1": {truckType: types.TruckSmall, capacityKg: 800, photos: 3, approved: true, hasActive: true},
	}}
	svc, _ := newService(fleet)
	if _, err := svc.SetOnline(ctx, "d1", "algiers", true); err != nil {
		t.Fatal(err)
	}
	_ = svc.UpdateLocation(ctx, "d1", 36.75, 3.05)
	pickup := types.Point{Lat: 36.75, Lng: 3.05}

	got, err := svc.Match(ctx, "algiers", types.TruckSmall, 900, pickup, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("over-capacity weight should exclude the driver, got %v", got)
	}

	got, err = svc.Match(ctx, "algiers", types.TruckSmall, 700, pickup, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "d1" {
		t.Fatalf("weight under capacity should re-include the driver, got %v", got)
	}
}

func TestMatch_ExcludesDriversWithoutLocation(t *testing.T) {
	ctx := context.Background()
	fleet := &fakeFleet{drivers: map[types.ID]fakeDriver{
		"located":  {truckType: types.TruckSmall, capacityKg: 800, photos: 3, approved: true, hasActive: true},
		"unplaced": {truckType: types.TruckSmall, capacityKg: 800, photos: 3, approved: true, hasActive: true},
	}}
	svc, _ := newService(fleet)
	for _, id := range []types.ID{"located", "unplaced"} {
		if _, err := svc.SetOnline(ctx, id, "algiers", true); err != nil {
			t.Fatal(err)
		}
	}
	_ = svc.UpdateLocation(ctx, "located", 36.75, 3.05)

	got, err := svc.Match(ctx, "algiers", types.TruckSmall, 100, types.Point{Lat: 36.75, Lng: 3.05}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "located" {
		t.Fatalf("expected only the located driver, got %v", got)
	}
}

func TestMatch_EmptyWhenNobodyOnline(t *testing.T) {
	svc, _ := newService(&fakeFleet{drivers: map[types.ID]fakeDriver{}})
	got, err := svc.Match(context.Background(), "algiers", types.TruckSmall, 100, types.Point{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
}

func TestMatch_LimitApplies(t *testing.T) {
	ctx := context.Background()
	drivers := map[types.ID]fakeDriver{}
	ids := []types.ID{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		drivers[id] = fakeDriver{truckType: types.TruckMini, capacityKg: 400, photos: 3, approved: true, hasActive: true}
	}
	svc, _ := newService(&fakeFleet{drivers: drivers})
	for i, id := range ids {
		if _, err := svc.SetOnline(ctx, id, "oran", true); err != nil {
			t.Fatal(err)
		}
		_ = svc.UpdateLocation(ctx, id, 35.69+float64(i)*0.01, -0.63)
	}

	got, err := svc.Match(ctx, "oran", types.TruckMini, 100, types.Point{Lat: 35.69, Lng: -0.63}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected the two closest drivers [a b], got %v", got)
	}
}

func TestMatch_EligibilityIsReadFresh(t *testing.T) {
	ctx := context.Background()
	fleet := &fakeFleet{drivers: map[types.ID]fakeDriver{
		"d1": {truckType: types.TruckSmall, capacityKg: 800, photos: 3, approved: true, hasActive: true},
	}}
	svc, _ := newService(fleet)
	if _, err := svc.SetOnline(ctx, "d1", "algiers", true); err != nil {
		t.Fatal(err)
	}
	_ = svc.UpdateLocation(ctx, "d1", 36.75, 3.05)
	pickup := types.Point{Lat: 36.75, Lng: 3.05}

	got, _ := svc.Match(ctx, "algiers", types.TruckSmall, 100, pickup, 10)
	if len(got) != 1 {
		t.Fatalf("expected d1 matched, got %v", got)
	}

	// A ban lands between two match calls; the next read must exclude the
	// driver even though they are still in the online set.
	fleet.mu.Lock()
	d := fleet.drivers["d1"]
	d.approved = false
	fleet.drivers["d1"] = d
	fleet.mu.Unlock()

	got, _ = svc.Match(ctx, "algiers", types.TruckSmall, 100, pickup, 10)
	if len(got) != 0 {
		t.Fatalf("banned driver still matched: %v", got)
	}
}

func TestLocationTimestampIsSet(t *testing.T) {
	svc, state := newService(&fakeFleet{drivers: map[types.ID]fakeDriver{}})
	before := time.Now().Add(-time.Second)
	if err := svc.UpdateLocation(context.Background(), "d1", 36.75, 3.05); err != nil {
		t.Fatal(err)
	}
	loc, ok, _ := state.GetLocation(context.Background(), "d1")
	if !ok || loc.TS.Before(before) {
		t.Fatalf("expected fresh timestamp, got %v (ok=%v)", loc.TS, ok)
	}
}
