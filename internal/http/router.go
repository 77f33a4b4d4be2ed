// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"naqlo/internal/http/handlers"
	"naqlo/internal/http/middleware"
	"naqlo/internal/modules/fleet"
	"naqlo/internal/modules/fraud"
	"naqlo/internal/modules/matching"
	"naqlo/internal/modules/order"
	"naqlo/internal/modules/settlement"
	"naqlo/internal/types"
)

type RouterDeps struct {
	Order          *order.Service
	Matching       *matching.Service
	Fleet          *fleet.Service
	Fraud          *fraud.Service
	Settlement     *settlement.Service
	SettlementJobs *settlement.Jobs
	Log            *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Identity())

	orderHandler := handlers.NewOrderHandler(deps.Order)
	orders := api.Group("/orders")
	orders.POST("", orderHandler.Create)
	orders.GET("/:id", orderHandler.Get)
	orders.GET("/:id/offers", orderHandler.Offers)
	orders.GET("/:id/events", orderHandler.Events)
	orders.POST("/:id/offers", orderHandler.PlaceOffer)
	orders.POST("/:id/offers/:offerId/accept", orderHandler.AcceptOffer)
	orders.POST("/:id/cancel", orderHandler.Cancel)
	orders.GET("/:id/pin", orderHandler.PodPin)
	orders.POST("/:id/complete", orderHandler.Complete)

	driverHandler := handlers.NewDriverHandler(deps.Order, deps.Matching, deps.Fleet, deps.Settlement)
	drivers := api.Group("/drivers", middleware.RequireRole(types.RoleDriver))
	drivers.POST("/availability", driverHandler.SetAvailability)
	drivers.PUT("/location", driverHandler.UpdateLocation)
	drivers.GET("/orders", driverHandler.ListOpenOrders)
	drivers.POST("/orders/:id/status", driverHandler.UpdateStatus)
	drivers.POST("/orders/:id/deliver", driverHandler.Deliver)
	drivers.POST("/vehicles", driverHandler.CreateVehicle)
	drivers.POST("/vehicles/:id/photos", driverHandler.AddVehiclePhotos)
	drivers.POST("/vehicles/:id/submit", driverHandler.SubmitVehicle)
	drivers.POST("/documents", driverHandler.UploadDocument)
	drivers.GET("/settlements", driverHandler.ListSettlements)
	drivers.POST("/settlements/:id/proofs", driverHandler.UploadProof)

	adminHandler := handlers.NewAdminHandler(deps.Settlement, deps.SettlementJobs, deps.Fraud, deps.Fleet)
	admin := api.Group("/admin", middleware.RequireRole(types.RoleAdmin))
	admin.POST("/jobs/settlements/create", adminHandler.TriggerCreateSettlements)
	admin.POST("/jobs/settlements/suspend", adminHandler.TriggerSuspendOverdue)
	admin.GET("/settlements", adminHandler.ListSettlements)
	admin.GET("/settlements/:id/proofs", adminHandler.ListProofs)
	admin.POST("/proofs/:id/review", adminHandler.ReviewProof)
	admin.POST("/bans", adminHandler.CreateBan)
	admin.POST("/bans/:id/lift", adminHandler.LiftBan)
	admin.POST("/penalties/:id/paid", adminHandler.MarkPenaltyPaid)
	admin.POST("/vehicles/:id/decision", adminHandler.DecideVehicle)
	admin.POST("/documents/:id/review", adminHandler.ReviewDocument)

	return r
}
