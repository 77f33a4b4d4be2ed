// README: Admin endpoints: settlement review and job triggers, bans and
// penalties, vehicle and document decisions.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"naqlo/internal/modules/fleet"
	"naqlo/internal/modules/fraud"
	"naqlo/internal/modules/settlement"
	"naqlo/internal/types"
)

type AdminHandler struct {
	settlement *settlement.Service
	jobs       *settlement.Jobs
	fraud      *fraud.Service
	fleet      *fleet.Service
}

func NewAdminHandler(settlementSvc *settlement.Service, jobs *settlement.Jobs, fraudSvc *fraud.Service, fleetSvc *fleet.Service) *AdminHandler {
	return &AdminHandler{settlement: settlementSvc, jobs: jobs, fraud: fraudSvc, fleet: fleetSvc}
}

// TriggerCreateSettlements runs the weekly batch for the week preceding now.
// The scheduler does this on its own; the endpoint exists for replays.
func (h *AdminHandler) TriggerCreateSettlements(c *gin.Context) {
	if err := h.jobs.RunCreateWeeklySettlements(c.Request.Context(), time.Now()); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) TriggerSuspendOverdue(c *gin.Context) {
	if err := h.jobs.RunSuspendOverdueSettlements(c.Request.Context(), time.Now()); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListSettlements(c *gin.Context) {
	status := settlement.Status(c.Query("status"))
	if status == "" {
		writeError(c, http.StatusBadRequest, "status required")
		return
	}
	list, err := h.settlement.ListByStatus(c.Request.Context(), status)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"settlements": list})
}

func (h *AdminHandler) ListProofs(c *gin.Context) {
	adminID, role := actor(c)
	proofs, err := h.settlement.Proofs(c.Request.Context(), adminID, role, types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"proofs": proofs})
}

type reviewProofReq struct {
	Decision settlement.Decision `json:"decision"`
}

func (h *AdminHandler) ReviewProof(c *gin.Context) {
	adminID, _ := actor(c)
	var req reviewProofReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.settlement.ReviewProof(c.Request.Context(), adminID, types.ID(c.Param("id")), req.Decision); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createBanReq struct {
	UserID           string `json:"userId"`
	LicenseHash      string `json:"licenseHash"`
	RegistrationHash string `json:"registrationHash"`
	DeviceHash       string `json:"deviceHash"`
	Reason           string `json:"reason"`
	Note             string `json:"note"`
}

func (h *AdminHandler) CreateBan(c *gin.Context) {
	adminID, _ := actor(c)
	var req createBanReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.fraud.CreateBan(c.Request.Context(), adminID, fraud.CreateBanCommand{
		UserID:           types.ID(req.UserID),
		LicenseHash:      req.LicenseHash,
		RegistrationHash: req.RegistrationHash,
		DeviceHash:       req.DeviceHash,
		Reason:           fraud.BanReason(req.Reason),
		Note:             req.Note,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"ban": b})
}

func (h *AdminHandler) LiftBan(c *gin.Context) {
	adminID, _ := actor(c)
	if err := h.fraud.LiftBan(c.Request.Context(), adminID, types.ID(c.Param("id"))); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) MarkPenaltyPaid(c *gin.Context) {
	adminID, _ := actor(c)
	if err := h.fraud.MarkPenaltyPaid(c.Request.Context(), adminID, types.ID(c.Param("id"))); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type vehicleDecisionReq struct {
	Decision fleet.VehicleDecision `json:"decision"`
}

func (h *AdminHandler) DecideVehicle(c *gin.Context) {
	adminID, _ := actor(c)
	var req vehicleDecisionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.fleet.DecideVehicle(c.Request.Context(), adminID, types.ID(c.Param("id")), req.Decision); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reviewDocumentReq struct {
	Decision           fleet.DocumentStatus `json:"decision"`
	LicenseNumber      string               `json:"licenseNumber"`
	RegistrationNumber string               `json:"registrationNumber"`
	VehicleID          string               `json:"vehicleId"`
}

func (h *AdminHandler) ReviewDocument(c *gin.Context) {
	adminID, _ := actor(c)
	var req reviewDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.fleet.ReviewDocument(c.Request.Context(), fleet.ReviewDocumentCommand{
		AdminID:            adminID,
		DocumentID:         types.ID(c.Param("id")),
		Decision:           req.Decision,
		LicenseNumber:      req.LicenseNumber,
		RegistrationNumber: req.RegistrationNumber,
		VehicleID:          types.ID(req.VehicleID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
