// README: Matching engine value types.
package matching

import (
	"time"

	"naqlo/internal/types"
)

// Location is a driver's last known position.
type Location struct {
	Lat float64
	Lng float64
	TS  time.Time
}

// rankedCandidate pairs a driver with their distance from a pickup point.
type rankedCandidate struct {
	DriverID   types.ID
	DistanceKm float64
}
