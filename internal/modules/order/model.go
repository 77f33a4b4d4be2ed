// README: Order aggregate, offers, events, and status definitions.
package order

import (
	"time"

	"naqlo/internal/types"
)

type Status string

const (
	StatusSearching Status = "SEARCHING"
	StatusOffered   Status = "OFFERED"
	StatusAssigned  Status = "ASSIGNED"
	StatusEnRoute   Status = "EN_ROUTE"
	StatusArrived   Status = "ARRIVED"
	StatusLoading   Status = "LOADING"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

type Order struct {
	ID               types.ID
	CustomerID       types.ID
	CityID           types.ID
	TruckType        types.TruckType
	WeightKg         int
	Pickup           types.Point
	Dropoff          types.Point
	DistanceKm       float64
	EstimatedFare    int64
	FinalFare        *int64
	AcceptedOfferID  *types.ID
	AssignedDriverID *types.ID
	DeliveryPin      *string
	Status           Status
	CreatedAt        time.Time
	ArrivedAt        *time.Time
	DeliveredAt      *time.Time
	CompletedAt      *time.Time
	CanceledAt       *time.Time
}

type OfferSide string

const (
	SideCustomer OfferSide = "CUSTOMER"
	SideDriver   OfferSide = "DRIVER"
)

type OfferStatus string

const (
	OfferPending  OfferStatus = "PENDING"
	OfferAccepted OfferStatus = "ACCEPTED"
	OfferRejected OfferStatus = "REJECTED"
	OfferExpired  OfferStatus = "EXPIRED"
)

// Offer is a proposed fare from either negotiating side. At most one offer
// per order ever reaches ACCEPTED.
type Offer struct {
	ID        types.ID
	OrderID   types.ID
	Side      OfferSide
	DriverID  *types.ID // set only for DRIVER side
	Amount    int64
	Status    OfferStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Event is an append-only audit entry; entries commit in the same order as
// the state changes they record.
type Event struct {
	ID        int64
	OrderID   types.ID
	Type      string
	Meta      types.Meta
	CreatedAt time.Time
}

const (
	EventStatus            = "STATUS"
	EventOfferCreated      = "OFFER_CREATED"
	EventOfferAccepted     = "OFFER_ACCEPTED"
	EventPodPinGenerated   = "POD_PIN_GENERATED"
	EventPodPinVerified    = "POD_PIN_VERIFIED"
	EventCanceled          = "CANCELED"
	EventCashCollected     = "CASH_COLLECTED"
	EventCommissionCreated = "COMMISSION_CREATED"
)

// driverTransitions is the post-assignment state flow a driver may walk.
// DELIVERED is deliberately absent: it is reachable only through the PIN flow.
var driverTransitions = map[Status][]Status{
	StatusAssigned:  {StatusEnRoute, StatusCanceled},
	StatusEnRoute:   {StatusArrived, StatusCanceled},
	StatusArrived:   {StatusLoading, StatusCanceled},
	StatusLoading:   {StatusInTransit, StatusCanceled},
	StatusInTransit: {StatusCanceled},
}

// CanDriverTransition reports whether a driver-initiated move from one status
// to another is legal.
func CanDriverTransition(from, to Status) bool {
	for _, s := range driverTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist.
func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusCanceled
}
