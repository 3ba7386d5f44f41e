package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/karansanghvi/spendly/internal/amqp"
	"github.com/karansanghvi/spendly/internal/auth"
	"github.com/karansanghvi/spendly/internal/config"
	"github.com/karansanghvi/spendly/internal/feed"
	apphttp "github.com/karansanghvi/spendly/internal/http"
	applog "github.com/karansanghvi/spendly/internal/log"
	"github.com/karansanghvi/spendly/internal/services"
	"github.com/karansanghvi/spendly/internal/sharing"
	"github.com/karansanghvi/spendly/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// AMQP is optional: without it, live feeds still work within this
	// instance, they just don't hear about writes handled elsewhere.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		logger.Info("AMQP fan-out enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	hub := feed.NewHub()

	var publisher services.ChangePublisher
	if amqpClient != nil {
		publisher = amqpClient
	}
	expenses := services.NewExpenseService(repo, hub, publisher)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret)
	authSvc := auth.NewService(repo, tokens)
	registry := sharing.NewRegistry(repo, repo, repo, repo, cfg.BaseURL)

	srv := apphttp.NewServer(":"+cfg.Port, logger, authSvc, tokens, expenses, registry, hub)
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting spendly server", "port", cfg.Port, "base_url", cfg.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if amqpClient != nil {
		// Consume on a dedicated connection so a slow consumer never
		// backs up publishes, and survive broker restarts.
		g.Go(func() error {
			err := amqp.ConsumeWithReconnect(gctx, cfg.AMQPURL, cfg.AMQPExchange, func(msg *amqp.ExpenseChangedMessage) error {
				if hub.Subscribers(msg.OwnerID) == 0 {
					return nil
				}
				return expenses.RefreshFeed(gctx, msg.OwnerID)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
