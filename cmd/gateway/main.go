package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/inspection-dispatch/internal/auth"
	"github.com/example/inspection-dispatch/internal/config"
	"github.com/example/inspection-dispatch/internal/gateway"
	"github.com/example/inspection-dispatch/internal/geo"
	"github.com/example/inspection-dispatch/internal/ingest"
	"github.com/example/inspection-dispatch/internal/logging"
	"github.com/example/inspection-dispatch/internal/payments"
	"github.com/example/inspection-dispatch/internal/storage"
)

func main() {
	cfg, err := config.LoadGatewayConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	var positions geo.Positions
	if cfg.RedisAddr != "" {
		positions = geo.NewRedisGeo(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		positions = geo.NewIndex()
	}

	var notifications storage.NotificationStore
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		notifications = ps
	} else {
		notifications = storage.NewMemoryStore()
	}

	srv := gateway.NewServer(auth.NewManager(cfg.JWTSecret), positions, notifications, logger)

	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { _ = kp.Close() }()
		srv.Kafka = kp
	}
	if os.Getenv("STRIPE_API_KEY") != "" {
		srv.Payments = payments.NewStripeClient()
	}

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("gateway listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("gateway stopped")
}
