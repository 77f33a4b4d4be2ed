// README: Driver endpoints: availability and location, load browsing, trip
// status, PIN delivery, vehicles/documents, and weekly settlements.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"naqlo/internal/modules/fleet"
	"naqlo/internal/modules/matching"
	"naqlo/internal/modules/order"
	"naqlo/internal/modules/settlement"
	"naqlo/internal/types"
)

type DriverHandler struct {
	order      *order.Service
	matching   *matching.Service
	fleet      *fleet.Service
	settlement *settlement.Service
}

func NewDriverHandler(orderSvc *order.Service, matchingSvc *matching.Service, fleetSvc *fleet.Service, settlementSvc *settlement.Service) *DriverHandler {
	return &DriverHandler{order: orderSvc, matching: matchingSvc, fleet: fleetSvc, settlement: settlementSvc}
}

type availabilityReq struct {
	CityID string `json:"cityId"`
	Online bool   `json:"online"`
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	driverID, _ := actor(c)
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.CityID == "" {
		writeError(c, http.StatusBadRequest, "cityId required")
		return
	}
	truckType, err := h.matching.SetOnline(c.Request.Context(), driverID, types.ID(req.CityID), req.Online)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"online": req.Online, "truckType": truckType})
}

type locationReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	driverID, _ := actor(c)
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.matching.UpdateLocation(c.Request.Context(), driverID, req.Lat, req.Lng); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListOpenOrders lets a driver browse loads still up for negotiation.
func (h *DriverHandler) ListOpenOrders(c *gin.Context) {
	cityID := c.Query("cityId")
	truckType := types.TruckType(c.Query("truckType"))
	if cityID == "" || truckType == "" {
		writeError(c, http.StatusBadRequest, "cityId and truckType required")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	orders, err := h.order.ListOpen(c.Request.Context(), types.ID(cityID), truckType, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": out})
}

type statusReq struct {
	Status order.Status `json:"status"`
}

func (h *DriverHandler) UpdateStatus(c *gin.Context) {
	driverID, _ := actor(c)
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.order.UpdateDriverStatus(c.Request.Context(), driverID, types.ID(c.Param("id")), req.Status)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderResponse(o))
}

type deliverReq struct {
	Pin string `json:"pin"`
}

func (h *DriverHandler) Deliver(c *gin.Context) {
	driverID, _ := actor(c)
	var req deliverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.order.DeliverWithPin(c.Request.Context(), driverID, types.ID(c.Param("id")), req.Pin)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderResponse(o))
}

type createVehicleReq struct {
	TruckType  types.TruckType `json:"truckType"`
	CapacityKg int             `json:"capacityKg"`
	Brand      string          `json:"brand"`
	Model      string          `json:"model"`
}

func (h *DriverHandler) CreateVehicle(c *gin.Context) {
	driverID, _ := actor(c)
	var req createVehicleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	v, err := h.fleet.CreateVehicle(c.Request.Context(), fleet.CreateVehicleCommand{
		OwnerID:    driverID,
		TruckType:  req.TruckType,
		CapacityKg: req.CapacityKg,
		Brand:      req.Brand,
		Model:      req.Model,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"vehicle": v})
}

type addPhotosReq struct {
	FileURLs []string `json:"fileUrls"`
}

func (h *DriverHandler) AddVehiclePhotos(c *gin.Context) {
	driverID, _ := actor(c)
	var req addPhotosReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.fleet.AddPhotos(c.Request.Context(), driverID, types.ID(c.Param("id")), req.FileURLs); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DriverHandler) SubmitVehicle(c *gin.Context) {
	driverID, _ := actor(c)
	if err := h.fleet.SubmitForVerification(c.Request.Context(), driverID, types.ID(c.Param("id"))); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type uploadDocumentReq struct {
	Type    fleet.DocumentType `json:"type"`
	FileURL string             `json:"fileUrl"`
}

func (h *DriverHandler) UploadDocument(c *gin.Context) {
	driverID, _ := actor(c)
	var req uploadDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	d, err := h.fleet.UploadDocument(c.Request.Context(), fleet.UploadDocumentCommand{
		OwnerID: driverID,
		Type:    req.Type,
		FileURL: req.FileURL,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"document": d})
}

func (h *DriverHandler) ListSettlements(c *gin.Context) {
	driverID, _ := actor(c)
	list, err := h.settlement.ListMine(c.Request.Context(), driverID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"settlements": list})
}

type uploadProofReq struct {
	FileURL string `json:"fileUrl"`
}

func (h *DriverHandler) UploadProof(c *gin.Context) {
	driverID, _ := actor(c)
	var req uploadProofReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.settlement.UploadProof(c.Request.Context(), driverID, types.ID(c.Param("id")), req.FileURL)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"proof": p})
}
