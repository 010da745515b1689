package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/inspection-dispatch/internal/channel"
	"github.com/example/inspection-dispatch/internal/config"
	"github.com/example/inspection-dispatch/internal/logging"
	"github.com/example/inspection-dispatch/internal/models"
	"github.com/example/inspection-dispatch/internal/notify"
	"github.com/example/inspection-dispatch/internal/offers"
	"github.com/example/inspection-dispatch/internal/position"
	"github.com/example/inspection-dispatch/internal/presence"
	"github.com/example/inspection-dispatch/internal/rest"
)

func main() {
	cfg, err := config.LoadDriverConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	session := &models.Session{
		UserID:    cfg.UserID,
		Role:      models.Role(cfg.Role),
		AuthToken: cfg.AuthToken,
	}

	api := rest.NewClient(cfg.APIBaseURL, func() string { return cfg.AuthToken })
	conn := channel.New(cfg.GatewayWSURL, logging.Component(logger, "channel"))

	store := notify.NewStore()
	inbox := notify.NewInbox(store, api, logging.Component(logger, "notify"))
	notifSubs := notify.Bind(conn, store, logging.Component(logger, "notify"))

	source := &position.FileSource{Path: os.Getenv("LOCATION_FILE")}
	if source.Path == "" {
		source.Path = "location.json"
	}
	tracker := position.NewTracker(source, conn, logging.Component(logger, "position"))
	tracker.SetCadence(cfg.WatchCadence)

	manager := offers.NewManager(api, conn, tracker, cfg.RadiusKm, logging.Component(logger, "offers"))
	manager.SetRefreshInterval(cfg.RefreshInterval)

	machine := presence.NewMachine(
		cfg.UserID,
		tracker,
		manager,
		api,
		presence.NewFileStore(cfg.PresencePath),
		logging.Component(logger, "presence"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn.Connect(session)
	inbox.Refresh(ctx)
	machine.Resume(ctx)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	logger.Info("driver agent up", "user_id", cfg.UserID, "radius_km", cfg.RadiusKm)
	<-ctx.Done()

	// Logout path: presence down first, then every listener, then the
	// channel itself.
	machine.GoOffline(context.Background())
	notifSubs.Release()
	conn.Disconnect()
	logger.Info("driver agent stopped")
}
