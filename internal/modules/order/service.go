// README: Order service. Owns the order lifecycle and the offer negotiation
// rules; the store carries the transactional writes, the service enforces who
// may do what and when.
package order

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"naqlo/internal/audit"
	"naqlo/internal/modules/pricing"
	"naqlo/internal/types"
)

var (
	ErrBadRequest = errors.New("order: bad request")
	ErrForbidden  = errors.New("order: forbidden")
	// ErrOrderLocked means the fare is already locked (an offer was accepted)
	// or the order reached a terminal state; negotiation is over.
	ErrOrderLocked       = errors.New("order: fare locked")
	ErrOutOfBounds       = errors.New("order: offer outside negotiation bounds")
	ErrCounterLimit      = errors.New("order: counter-offer limit reached")
	ErrOfferExpired      = errors.New("order: offer expired")
	ErrOfferNotPending   = errors.New("order: offer is not pending")
	ErrInvalidTransition = errors.New("order: invalid status transition")
	ErrPinNotReady       = errors.New("order: delivery pin not issued yet")
	ErrPinMismatch       = errors.New("order: delivery pin mismatch")
	ErrAlreadyDelivered  = errors.New("order: already delivered")
	ErrNotDelivered      = errors.New("order: not delivered yet")
	// ErrConflict reports a lost guarded update; the caller should re-read
	// and retry.
	ErrConflict = errors.New("order: concurrent update")
)

// Pricing is the pricing-module surface the order flow needs: fare estimation
// at creation, the negotiation envelope while offers fly, and the commission
// rule at completion.
type Pricing interface {
	Estimate(ctx context.Context, cityID types.ID, truckType types.TruckType, weightKg int, pickup, dropoff types.Point) (pricing.Estimate, error)
	Profile(ctx context.Context, cityID types.ID, truckType types.TruckType) (pricing.Profile, error)
	Rule(ctx context.Context, cityID types.ID, truckType types.TruckType) (pricing.CommissionRule, error)
}

// DriverGate filters driver IDs down to those currently eligible for a load.
// Implemented by the fleet store; eligibility is always read fresh.
type DriverGate interface {
	EligibleDrivers(ctx context.Context, ids []types.ID, truckType types.TruckType, weightKg int) ([]types.ID, error)
}

// Matcher surfaces nearby online drivers at order creation. Informational
// only: no reservation is made and a match failure never blocks the order.
type Matcher interface {
	Match(ctx context.Context, cityID types.ID, truckType types.TruckType, weightKg int, pickup types.Point, limit int) ([]types.ID, error)
}

type Service struct {
	store   *Store
	pricing Pricing
	drivers DriverGate
	matcher Matcher
	audit   *audit.Log
}

func NewService(store *Store, p Pricing, drivers DriverGate, matcher Matcher, auditLog *audit.Log) *Service {
	return &Service{store: store, pricing: p, drivers: drivers, matcher: matcher, audit: auditLog}
}

type CreateCommand struct {
	CustomerID types.ID
	CityID     types.ID
	TruckType  types.TruckType
	WeightKg   int
	Pickup     types.Point
	Dropoff    types.Point
}

// CreateResult carries the new order together with the negotiation window
// and an informational list of nearby drivers.
type CreateResult struct {
	Order      *Order
	MinOffer   int64
	MaxOffer   int64
	Candidates []types.ID
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*CreateResult, error) {
	if cmd.WeightKg <= 0 {
		return nil, fmt.Errorf("%w: weightKg must be positive", ErrBadRequest)
	}
	if !cmd.Pickup.Valid() || !cmd.Dropoff.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrBadRequest)
	}

	est, err := s.pricing.Estimate(ctx, cmd.CityID, cmd.TruckType, cmd.WeightKg, cmd.Pickup, cmd.Dropoff)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:            types.ID(uuid.NewString()),
		CustomerID:    cmd.CustomerID,
		CityID:        cmd.CityID,
		TruckType:     cmd.TruckType,
		WeightKg:      cmd.WeightKg,
		Pickup:        cmd.Pickup,
		Dropoff:       cmd.Dropoff,
		DistanceKm:    est.DistanceKm,
		EstimatedFare: est.Fare,
		Status:        StatusSearching,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: cmd.CustomerID, Action: "order.create", Entity: "order", EntityID: o.ID,
		Meta: types.Meta{"estimatedFare": est.Fare, "distanceKm": est.DistanceKm},
	})

	low, high := pricing.NegotiationBounds(est.Fare, est.Profile.NegotiateMinPct, est.Profile.NegotiateMaxPct)
	res := &CreateResult{Order: o, MinOffer: low, MaxOffer: high}
	if s.matcher != nil {
		// Best effort; the order stands whether or not anyone is nearby.
		if candidates, err := s.matcher.Match(ctx, cmd.CityID, cmd.TruckType, cmd.WeightKg, cmd.Pickup, 0); err == nil {
			res.Candidates = candidates
		}
	}
	return res, nil
}

// Get applies visibility: customers see their own orders, the assigned driver
// sees theirs, any driver may inspect an order whose fare is still open (to
// bid on it), admins see everything.
func (s *Service) Get(ctx context.Context, actorID types.ID, role types.Role, orderID types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := canView(o, actorID, role); err != nil {
		return nil, err
	}
	return o, nil
}

func canView(o *Order, actorID types.ID, role types.Role) error {
	switch role {
	case types.RoleAdmin:
		return nil
	case types.RoleCustomer:
		if o.CustomerID == actorID {
			return nil
		}
	case types.RoleDriver:
		if o.AssignedDriverID != nil && *o.AssignedDriverID == actorID {
			return nil
		}
		if o.FinalFare == nil && !Terminal(o.Status) {
			return nil
		}
	}
	return ErrForbidden
}

// ListOpen is the driver's browse surface: orders in a city whose fare is
// still up for negotiation.
func (s *Service) ListOpen(ctx context.Context, cityID types.ID, truckType types.TruckType, limit int) ([]Order, error) {
	return s.store.ListOpen(ctx, cityID, truckType, limit)
}

func (s *Service) Offers(ctx context.Context, actorID types.ID, role types.Role, orderID types.ID) ([]Offer, error) {
	if _, err := s.Get(ctx, actorID, role, orderID); err != nil {
		return nil, err
	}
	return s.store.ListOffers(ctx, orderID)
}

func (s *Service) Events(ctx context.Context, actorID types.ID, role types.Role, orderID types.ID) ([]Event, error) {
	if _, err := s.Get(ctx, actorID, role, orderID); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, orderID)
}

type PlaceOfferCommand struct {
	ActorID types.ID
	Role    types.Role
	OrderID types.ID
	Amount  int64
}

// PlaceOffer posts a counter-offer from either side. The amount must sit
// inside the city profile's negotiation window around the estimate, and each
// side has a hard cap on how many offers it may ever post on one order.
func (s *Service) PlaceOffer(ctx context.Context, cmd PlaceOfferCommand) (*Offer, error) {
	if cmd.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrBadRequest)
	}
	var side OfferSide
	switch cmd.Role {
	case types.RoleCustomer:
		side = SideCustomer
	case types.RoleDriver:
		side = SideDriver
	default:
		return nil, ErrForbidden
	}

	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.FinalFare != nil || Terminal(o.Status) {
		return nil, ErrOrderLocked
	}
	if side == SideCustomer && o.CustomerID != cmd.ActorID {
		return nil, ErrForbidden
	}
	if side == SideDriver {
		eligible, err := s.drivers.EligibleDrivers(ctx, []types.ID{cmd.ActorID}, o.TruckType, o.WeightKg)
		if err != nil {
			return nil, err
		}
		if len(eligible) == 0 {
			return nil, ErrForbidden
		}
	}

	now := time.Now().UTC()
	// A stale pending offer ends the current round; the caller may open a
	// fresh one by retrying.
	if pending, err := s.store.LatestPendingOffer(ctx, cmd.OrderID); err != nil {
		return nil, err
	} else if pending != nil && !pending.ExpiresAt.After(now) {
		if err := s.store.MarkOfferExpired(ctx, pending.ID); err != nil {
			return nil, err
		}
		return nil, ErrOfferExpired
	}

	profile, err := s.pricing.Profile(ctx, o.CityID, o.TruckType)
	if err != nil {
		return nil, err
	}
	low, high := pricing.NegotiationBounds(o.EstimatedFare, profile.NegotiateMinPct, profile.NegotiateMaxPct)
	if cmd.Amount < low || cmd.Amount > high {
		return nil, fmt.Errorf("%w: amount %d not in [%d, %d]", ErrOutOfBounds, cmd.Amount, low, high)
	}

	posted, err := s.store.CountOffersBySide(ctx, cmd.OrderID, side)
	if err != nil {
		return nil, err
	}
	if posted >= profile.MaxCountersPerSide {
		return nil, ErrCounterLimit
	}

	of := &Offer{
		ID:        types.ID(uuid.NewString()),
		OrderID:   cmd.OrderID,
		Side:      side,
		Amount:    cmd.Amount,
		Status:    OfferPending,
		ExpiresAt: now.Add(time.Duration(profile.OfferTimeoutSec) * time.Second),
		CreatedAt: now,
	}
	if side == SideDriver {
		of.DriverID = &cmd.ActorID
	}
	if err := s.store.CreateOffer(ctx, of); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: cmd.ActorID, Action: "order.offer", Entity: "order", EntityID: cmd.OrderID,
		Meta: types.Meta{"offerId": string(of.ID), "side": string(side), "amount": cmd.Amount},
	})
	return of, nil
}

// AcceptOffer locks the fare. Acceptance is strictly cross-side: customers
// accept driver offers, drivers accept customer offers and become the
// assigned driver by doing so. The store re-checks everything under a row
// lock; whatever this precheck sees, only one acceptance ever commits.
func (s *Service) AcceptOffer(ctx context.Context, actorID types.ID, role types.Role, orderID, offerID types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	of, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if of.OrderID != orderID {
		return nil, ErrNotFound
	}

	var assigned types.ID
	switch role {
	case types.RoleCustomer:
		if o.CustomerID != actorID {
			return nil, ErrForbidden
		}
		if of.Side != SideDriver || of.DriverID == nil {
			return nil, fmt.Errorf("%w: customers accept driver offers only", ErrBadRequest)
		}
		assigned = *of.DriverID
	case types.RoleDriver:
		if of.Side != SideCustomer {
			return nil, fmt.Errorf("%w: drivers accept customer offers only", ErrBadRequest)
		}
		eligible, err := s.drivers.EligibleDrivers(ctx, []types.ID{actorID}, o.TruckType, o.WeightKg)
		if err != nil {
			return nil, err
		}
		if len(eligible) == 0 {
			return nil, ErrForbidden
		}
		assigned = actorID
	default:
		return nil, ErrForbidden
	}

	accepted, err := s.store.Accept(ctx, orderID, offerID, assigned, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: actorID, Action: "order.accept_offer", Entity: "order", EntityID: orderID,
		Meta: types.Meta{"offerId": string(offerID), "finalFare": of.Amount},
	})
	return accepted, nil
}

// UpdateDriverStatus walks the assigned driver through the post-assignment
// flow. Reaching ARRIVED mints the delivery PIN; the PIN itself never appears
// in the event log.
func (s *Service) UpdateDriverStatus(ctx context.Context, driverID, orderID types.ID, to Status) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.AssignedDriverID == nil || *o.AssignedDriverID != driverID {
		return nil, ErrForbidden
	}
	if !CanDriverTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}

	var pin *string
	events := []Event{}
	if to == StatusArrived && o.DeliveryPin == nil {
		p, err := newDeliveryPin()
		if err != nil {
			return nil, err
		}
		pin = &p
		events = append(events, Event{Type: EventPodPinGenerated, Meta: types.Meta{}})
	}
	if to == StatusCanceled {
		events = append(events, Event{Type: EventCanceled, Meta: types.Meta{"by": "driver"}})
	}
	events = append(events, Event{Type: EventStatus, Meta: types.Meta{"status": string(to)}})

	ok, err := s.store.UpdateStatus(ctx, orderID, o.Status, to, pin, time.Now().UTC(), events)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: driverID, Action: "order.status", Entity: "order", EntityID: orderID,
		Meta: types.Meta{"from": string(o.Status), "to": string(to)},
	})
	return s.store.Get(ctx, orderID)
}

// Cancel is the customer/admin cancellation path. Customers may back out any
// time before loading starts; admins before delivery.
func (s *Service) Cancel(ctx context.Context, actorID types.ID, role types.Role, orderID types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch role {
	case types.RoleCustomer:
		if o.CustomerID != actorID {
			return nil, ErrForbidden
		}
		switch o.Status {
		case StatusSearching, StatusOffered, StatusAssigned, StatusEnRoute, StatusArrived:
		default:
			return nil, fmt.Errorf("%w: cannot cancel from %s", ErrInvalidTransition, o.Status)
		}
	case types.RoleAdmin:
		if Terminal(o.Status) || o.Status == StatusDelivered {
			return nil, fmt.Errorf("%w: cannot cancel from %s", ErrInvalidTransition, o.Status)
		}
	default:
		return nil, ErrForbidden
	}

	events := []Event{
		{Type: EventCanceled, Meta: types.Meta{"by": string(role)}},
		{Type: EventStatus, Meta: types.Meta{"status": string(StatusCanceled)}},
	}
	ok, err := s.store.UpdateStatus(ctx, orderID, o.Status, StatusCanceled, nil, time.Now().UTC(), events)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: actorID, Action: "order.cancel", Entity: "order", EntityID: orderID,
		Meta: types.Meta{"from": string(o.Status)},
	})
	return s.store.Get(ctx, orderID)
}

// PodPin discloses the delivery PIN to the ordering customer once the driver
// has arrived.
func (s *Service) PodPin(ctx context.Context, customerID, orderID types.ID) (string, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o.CustomerID != customerID {
		return "", ErrForbidden
	}
	// A canceled order may still carry a PIN from an earlier arrival; it is
	// no longer redeemable.
	if o.DeliveryPin == nil || o.Status == StatusCanceled {
		return "", ErrPinNotReady
	}
	return *o.DeliveryPin, nil
}

// DeliverWithPin marks the order DELIVERED when the assigned driver submits
// the exact PIN the customer read out.
func (s *Service) DeliverWithPin(ctx context.Context, driverID, orderID types.ID, pin string) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.AssignedDriverID == nil || *o.AssignedDriverID != driverID {
		return nil, ErrForbidden
	}
	if o.Status == StatusDelivered || o.Status == StatusCompleted {
		return nil, ErrAlreadyDelivered
	}
	if Terminal(o.Status) {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
	}
	if o.DeliveryPin == nil {
		return nil, ErrPinNotReady
	}
	if *o.DeliveryPin != pin {
		return nil, ErrPinMismatch
	}

	events := []Event{
		{Type: EventPodPinVerified, Meta: types.Meta{}},
		{Type: EventStatus, Meta: types.Meta{"status": string(StatusDelivered)}},
	}
	ok, err := s.store.UpdateStatus(ctx, orderID, o.Status, StatusDelivered, nil, time.Now().UTC(), events)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: driverID, Action: "order.deliver", Entity: "order", EntityID: orderID,
	})
	return s.store.Get(ctx, orderID)
}

// ConfirmCompletion settles a delivered order: cash recorded at the locked
// fare, commission created from the current rule, status COMPLETED.
// Confirming an already-completed order returns it unchanged.
func (s *Service) ConfirmCompletion(ctx context.Context, actorID types.ID, role types.Role, orderID types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch role {
	case types.RoleAdmin:
	case types.RoleCustomer:
		if o.CustomerID != actorID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}
	if o.Status == StatusCompleted {
		return o, nil
	}
	if o.Status != StatusDelivered {
		return nil, ErrNotDelivered
	}
	if o.FinalFare == nil {
		return nil, ErrOrderLocked
	}

	rule, err := s.pricing.Rule(ctx, o.CityID, o.TruckType)
	if err != nil {
		return nil, err
	}
	snap := CommissionSnapshot{
		Percent:       rule.Percent,
		MinCommission: rule.MinCommission,
		FixedFee:      rule.FixedFee,
		Amount:        pricing.CommissionAmount(*o.FinalFare, rule),
	}
	completed, err := s.store.Complete(ctx, orderID, snap, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: actorID, Action: "order.complete", Entity: "order", EntityID: orderID,
		Meta: types.Meta{"finalFare": *o.FinalFare, "commission": snap.Amount},
	})
	return completed, nil
}

func newDeliveryPin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
