// README: Pricing profile and commission rule definitions per (city, truck type).
package pricing

import "naqlo/internal/types"

// Profile carries fare parameters and the negotiation envelope for one
// (city, truckType) pair. Amounts are integer currency units.
type Profile struct {
	CityID             types.ID
	TruckType          types.TruckType
	BaseFee            int64
	RateKm             int64
	RateKg             int64
	MinFare            int64
	MaxFare            int64
	NegotiateMinPct    float64
	NegotiateMaxPct    float64
	OfferTimeoutSec    int
	MaxCountersPerSide int
}

// CommissionRule is the platform-cut rule snapshotted onto commissions at
// order completion.
type CommissionRule struct {
	CityID        types.ID
	TruckType     types.TruckType
	Percent       float64
	MinCommission int64
	FixedFee      int64
}

// Estimate is the result of a fare estimation.
type Estimate struct {
	Profile    Profile
	DistanceKm float64
	Fare       int64
}
