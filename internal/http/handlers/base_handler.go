// README: Shared handler utilities: identity accessors, JSON helpers and the
// module-error to HTTP-status mapping.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"naqlo/internal/http/middleware"
	"naqlo/internal/modules/fleet"
	"naqlo/internal/modules/fraud"
	"naqlo/internal/modules/matching"
	"naqlo/internal/modules/order"
	"naqlo/internal/modules/pricing"
	"naqlo/internal/modules/settlement"
	"naqlo/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func actor(c *gin.Context) (types.ID, types.Role) {
	id, _ := c.Get(middleware.ContextUserID)
	role, _ := c.Get(middleware.ContextRole)
	return id.(types.ID), role.(types.Role)
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps module sentinels onto HTTP statuses. Bounds and PIN
// mismatches are 400s (the caller must fix their input); the rest of the
// negotiation failures are 409 conflicts.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, pricing.ErrNotFound),
		errors.Is(err, fleet.ErrNotFound),
		errors.Is(err, fraud.ErrNotFound),
		errors.Is(err, settlement.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrForbidden),
		errors.Is(err, fleet.ErrForbidden),
		errors.Is(err, settlement.ErrForbidden),
		errors.Is(err, fleet.ErrIdentityBanned):
		writeError(c, http.StatusForbidden, err.Error())

	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, order.ErrOutOfBounds),
		errors.Is(err, order.ErrPinMismatch),
		errors.Is(err, fleet.ErrBadRequest),
		errors.Is(err, fraud.ErrBadRequest),
		errors.Is(err, settlement.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())

	case errors.Is(err, order.ErrOrderLocked),
		errors.Is(err, order.ErrOfferExpired),
		errors.Is(err, order.ErrOfferNotPending),
		errors.Is(err, order.ErrCounterLimit),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrPinNotReady),
		errors.Is(err, order.ErrAlreadyDelivered),
		errors.Is(err, order.ErrNotDelivered),
		errors.Is(err, order.ErrConflict),
		errors.Is(err, settlement.ErrProofReviewed),
		errors.Is(err, fraud.ErrUnpaidPenalties),
		errors.Is(err, matching.ErrNoActiveVehicle):
		writeError(c, http.StatusConflict, err.Error())

	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

type orderResponse struct {
	ID               types.ID        `json:"id"`
	CustomerID       types.ID        `json:"customerId"`
	CityID           types.ID        `json:"cityId"`
	TruckType        types.TruckType `json:"truckType"`
	WeightKg         int             `json:"weightKg"`
	DistanceKm       float64         `json:"distanceKm"`
	EstimatedFare    int64           `json:"estimatedFare"`
	FinalFare        *int64          `json:"finalFare,omitempty"`
	AssignedDriverID *types.ID       `json:"assignedDriverId,omitempty"`
	Status           order.Status    `json:"status"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:               o.ID,
		CustomerID:       o.CustomerID,
		CityID:           o.CityID,
		TruckType:        o.TruckType,
		WeightKg:         o.WeightKg,
		DistanceKm:       o.DistanceKm,
		EstimatedFare:    o.EstimatedFare,
		FinalFare:        o.FinalFare,
		AssignedDriverID: o.AssignedDriverID,
		Status:           o.Status,
	}
}
