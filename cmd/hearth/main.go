package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"hearth/internal/amqp"
	"hearth/internal/cli"
	apphttp "hearth/internal/http"
	"hearth/internal/identity"
	"hearth/internal/services"
)

func main() {
	logger := cli.SetupLogger()
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// The event broker is optional: without it writes still succeed, the
	// activity worker just never hears about them.
	var events services.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, activity events disabled", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	sessions := identity.NewSessionProvider(repo, cfg.HouseholdPassphrase, cfg.SessionTTL)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Budget:      services.NewBudgetService(repo, events),
		Bills:       services.NewBillService(repo, events),
		Wishlist:    services.NewWishlistService(repo, events),
		Sessions:    sessions,
		Profiles:    repo,
		RecentLimit: cfg.RecentTransactionsLimit,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting hearth server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	slog.Info("Server stopped gracefully")
}
