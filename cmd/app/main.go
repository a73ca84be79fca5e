package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"jaudi-finance-backend/internal/api"
	"jaudi-finance-backend/internal/common/config"
	"jaudi-finance-backend/internal/common/logger"
	"jaudi-finance-backend/internal/handler"
	"jaudi-finance-backend/internal/netmon"
	"jaudi-finance-backend/internal/notifications"
	platformredis "jaudi-finance-backend/internal/platform/redis"
	"jaudi-finance-backend/internal/rates"
	"jaudi-finance-backend/internal/security"
	"jaudi-finance-backend/internal/state"
	redisstore "jaudi-finance-backend/internal/store/redis"
	"jaudi-finance-backend/internal/syncer"
	"jaudi-finance-backend/internal/transfer"
	"jaudi-finance-backend/internal/workers"
)

func main() {
	cfg := config.Load()
	logger.Init("jaudi-finance-backend", cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Bool("debug", cfg.Debug).Msg("starting jaudi finance backend")

	redisClient, err := platformredis.Open(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	records := redisstore.New(redisClient.Client)

	snapshots, err := state.NewFileSnapshotStore(cfg.Storage.SnapshotPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open snapshot store")
	}
	container := state.NewContainer(snapshots, logger.Component("state"))

	apiClient := api.NewHTTPClient(cfg.API.BaseURL, cfg.API.Timeout, logger.Component("api"))

	sync := syncer.New(container, records, apiClient, cfg.Sync.MaxRetries, cfg.Sync.BaseDelay, logger.Component("syncer"))
	container.SetSyncTrigger(func() {
		if err := sync.SyncPendingItems(context.Background()); err != nil {
			logger.Error().Err(err).Msg("reconnect sync failed")
		}
	})

	posture := security.NewPostureCheck(cfg.Security.SigningKey)
	if err := container.Initialize(ctx, posture); err != nil {
		logger.Fatal().Err(err).Msg("startup aborted")
	}

	encrypted, err := security.NewEncryptedFileStore(cfg.Security.SecretsDir, cfg.Security.SigningKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open credential store")
	}
	plain, err := security.NewPlainFileStore(cfg.Security.SecretsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open credential store")
	}
	credentials := security.NewCredentialChain(logger.Component("security"), encrypted, plain)
	pinGuard := security.NewPINGuard()
	signer := security.NewSigner(cfg.Security.SigningKey, cfg.Security.SessionTTL)
	apiClient.SetPayloadSigner(signer)

	probe := netmon.HTTPProbe(cfg.API.BaseURL+"/health", nil)
	monitor := netmon.New(probe, container, cfg.Monitor.Interval, cfg.Monitor.ProbeTimeout, logger.Component("netmon"))
	monitor.Start(ctx)

	rateSvc := rates.NewService(apiClient, records, container, cfg.Rates.BaseCurrency, logger.Component("rates"))
	transferSvc := transfer.NewService(container, records, apiClient, rateSvc, cfg.Rates.BaseCurrency, logger.Component("transfer"))
	notificationSvc := notifications.NewService(container, records, apiClient, logger.Component("notifications"))

	if container.Online() {
		if err := sync.ReconcileProcessing(ctx); err != nil {
			logger.Error().Err(err).Msg("boot reconciliation failed")
		}
	}

	scheduler := workers.NewScheduler(sync, rateSvc, logger.Component("workers"))
	if err := scheduler.Start(ctx, cfg.Sync.Schedule, cfg.Rates.RefreshSchedule); err != nil {
		logger.Fatal().Err(err).Msg("failed to start background jobs")
	}
	defer scheduler.Stop()

	router := handler.NewRouter(handler.Handlers{
		Auth:          handler.NewAuthHandler(container, records, apiClient, credentials, pinGuard, signer, cfg.Security.AuthTimeout, logger.Component("auth")),
		Transactions:  handler.NewTransactionHandler(transferSvc, sync, container, records, logger.Component("transactions")),
		KYC:           handler.NewKYCHandler(container, records, apiClient, logger.Component("kyc")),
		Sync:          handler.NewSyncHandler(sync, container, records, logger.Component("sync")),
		Rates:         handler.NewRatesHandler(rateSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
	}, signer, cfg.Server.Origin, cfg.Debug)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("server exited")
}
