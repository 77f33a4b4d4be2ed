// README: Entry point; loads config, wires services, starts the HTTP server
// and the settlement scheduler.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"naqlo/internal/audit"
	"naqlo/internal/config"
	httptransport "naqlo/internal/http"
	"naqlo/internal/infra"
	"naqlo/internal/logging"
	"naqlo/internal/modules/fleet"
	"naqlo/internal/modules/fraud"
	"naqlo/internal/modules/matching"
	"naqlo/internal/modules/order"
	"naqlo/internal/modules/pricing"
	"naqlo/internal/modules/settlement"
	"naqlo/internal/types"
)

// matchPreview adapts the matching service to the order module's Matcher
// with the configured candidate limit.
type matchPreview struct {
	svc   *matching.Service
	limit int
}

func (m matchPreview) Match(ctx context.Context, cityID types.ID, truckType types.TruckType, weightKg int, pickup types.Point, limit int) ([]types.ID, error) {
	if limit <= 0 {
		limit = m.limit
	}
	return m.svc.Match(ctx, cityID, truckType, weightKg, pickup, limit)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	loc, err := time.LoadLocation(cfg.Jobs.Timezone)
	if err != nil {
		logger.Fatal("load timezone", zap.Error(err))
	}

	auditLog := audit.NewLog(dbPool, logger)
	hasher := fraud.NewIdentityHasher(cfg.Security.HashPepper)

	pricingSvc := pricing.NewService(pricing.NewStore(dbPool))

	fraudSvc := fraud.NewService(fraud.NewStore(dbPool), auditLog)

	fleetStore := fleet.NewStore(dbPool)
	fleetSvc := fleet.NewService(fleetStore, fraudSvc, hasher, auditLog)

	matchingSvc := matching.NewService(matching.NewStore(redisClient), fleetStore)

	orderSvc := order.NewService(order.NewStore(dbPool), pricingSvc, fleetStore,
		matchPreview{svc: matchingSvc, limit: cfg.Matching.Limit}, auditLog)

	settlementStore := settlement.NewStore(dbPool)
	settlementSvc := settlement.NewService(settlementStore, auditLog)
	settlementJobs := settlement.NewJobs(settlementStore, loc, logger)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Order:          orderSvc,
		Matching:       matchingSvc,
		Fleet:          fleetSvc,
		Fraud:          fraudSvc,
		Settlement:     settlementSvc,
		SettlementJobs: settlementJobs,
		Log:            logger,
	})

	if cfg.Jobs.Enabled {
		scheduler := settlement.NewScheduler(settlementJobs, loc,
			time.Duration(cfg.Jobs.TickSeconds)*time.Second, logger)
		go scheduler.Run(ctx)
	}

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("http server", zap.Error(err))
	}
}
