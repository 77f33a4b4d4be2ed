// README: Order endpoints shared by customers and drivers; the service layer
// decides what each role may do.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"naqlo/internal/modules/order"
	"naqlo/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

type createOrderReq struct {
	CityID     string          `json:"cityId"`
	TruckType  types.TruckType `json:"truckType"`
	WeightKg   int             `json:"weightKg"`
	PickupLat  float64         `json:"pickupLat"`
	PickupLng  float64         `json:"pickupLng"`
	DropoffLat float64         `json:"dropoffLat"`
	DropoffLng float64         `json:"dropoffLng"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	actorID, role := actor(c)
	if role != types.RoleCustomer {
		writeError(c, http.StatusForbidden, "customers only")
		return
	}
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.CityID == "" || req.TruckType == "" {
		writeError(c, http.StatusBadRequest, "cityId and truckType required")
		return
	}
	res, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		CustomerID: actorID,
		CityID:     types.ID(req.CityID),
		TruckType:  req.TruckType,
		WeightKg:   req.WeightKg,
		Pickup:     types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Dropoff:    types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"order":      toOrderResponse(res.Order),
		"minOffer":   res.MinOffer,
		"maxOffer":   res.MaxOffer,
		"candidates": res.Candidates,
	})
}

func (h *OrderHandler) Get(c *gin.Context) {
	actorID, role := actor(c)
	o, err := h.order.Get(c.Request.Context(), actorID, role, types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) Offers(c *gin.Context) {
	actorID, role := actor(c)
	offers, err := h.order.Offers(c.Request.Context(), actorID, role, types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"offers": offers})
}

func (h *OrderHandler) Events(c *gin.Context) {
	actorID, role := actor(c)
	events, err := h.order.Events(c.Request.Context(), actorID, role, types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"events": events})
}

type placeOfferReq struct {
	Amount int64 `json:"amount"`
}

func (h *OrderHandler) PlaceOffer(c *gin.Context) {
	actorID, role := actor(c)
	var req placeOfferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	of, err := h.order.PlaceOffer(c.Request.Context(), order.PlaceOfferCommand{
		ActorID: actorID,
		Role:    role,
		OrderID: types.ID(c.Param("id")),
		Amount:  req.Amount,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"offer": of})
}

func (h *OrderHandler) AcceptOffer(c *gin.Context) {
	actorID, role := actor(c)
	o, err := h.order.AcceptOffer(c.Request.Context(), actorID, role,
		types.ID(c.Param("id")), types.ID(c.Param("offerId")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	actorID, role := actor(c)
	o, err := h.order.Cancel(c.Request.Context(), actorID, role, types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) PodPin(c *gin.Context) {
	actorID, role := actor(c)
	if role != types.RoleCustomer {
		writeError(c, http.StatusForbidden, "customers only")
		return
	}
	pin, err := h.order.PodPin(c.Request.Context(), actorID, types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"pin": pin})
}

func (h *OrderHandler) Complete(c *gin.Context) {
	actorID, role := actor(c)
	o, err := h.order.ConfirmCompletion(c.Request.Context(), actorID, role, types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderResponse(o))
}
