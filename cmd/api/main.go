package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/Wildnerds/korrectNG-sub003/internal/api/http"
	"github.com/Wildnerds/korrectNG-sub003/internal/api/http/handlers"
	"github.com/Wildnerds/korrectNG-sub003/internal/auth"
	"github.com/Wildnerds/korrectNG-sub003/internal/config"
	"github.com/Wildnerds/korrectNG-sub003/internal/events"
	"github.com/Wildnerds/korrectNG-sub003/internal/observability"
	"github.com/Wildnerds/korrectNG-sub003/internal/persistence"
	"github.com/Wildnerds/korrectNG-sub003/internal/repository"
	"github.com/Wildnerds/korrectNG-sub003/internal/service"
	"github.com/Wildnerds/korrectNG-sub003/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	pool := pg.PoolHandle()
	disputeRepo := repository.NewDisputeRepository(pool)
	evidenceRepo := repository.NewEvidenceRepository(pool)
	timelineRepo := repository.NewTimelineRepository(pool)
	contractRepo := repository.NewContractRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	artisanRepo := repository.NewArtisanRepository(pool)

	var locker service.DisputeLocker
	var settleKeys service.SettlementKeyStore
	if rdb.Ping(ctx) == nil {
		locker = service.NewRedisDisputeLocker(rdb.Client)
		settleKeys = service.NewRedisSettlementKeyStore(rdb.Client)
	} else {
		logger.Warn("redis unreachable, using in-process locks and settlement keys")
		locker = service.NewLocalDisputeLocker()
		settleKeys = service.NewMemorySettlementKeyStore()
	}

	dispatcher := events.NewInMemoryDispatcher()
	escrowService := service.NewEscrowService(cfg.Escrow, settleKeys, logger)
	uploadService := service.NewUploadService(cfg.Upload, logger)

	disputeService := service.NewDisputeService(service.DisputeDependencies{
		DisputeRepo:  disputeRepo,
		EvidenceRepo: evidenceRepo,
		TimelineRepo: timelineRepo,
		ContractRepo: contractRepo,
		Store:        service.NewEvidenceStore(),
		Uploads:      uploadService,
		Escrow:       escrowService,
		Locks:        locker,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		CustomerRepo: customerRepo,
		ArtisanRepo:  artisanRepo,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), customerRepo, artisanRepo)

	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notifications.RegisterHandlers()

	escalationWorker := worker.NewEscalationWorker(disputeRepo, timelineRepo, escrowService, dispatcher, logger, cfg.Worker)
	go escalationWorker.Run(ctx)

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: service.MaxEvidenceSizeBytes + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb),
		Auth:           handlers.NewAuthHandler(authService),
		Disputes:       handlers.NewDisputesHandler(disputeService),
		Contracts:      handlers.NewContractsHandler(contractRepo),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
