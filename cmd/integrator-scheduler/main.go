// integrator-scheduler — cron-планировщик расписаний.
//
// Читает включённые расписания из хранилища и по срабатыванию
// публикует run.trigger в RabbitMQ. Runs создаёт integrator-api.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Integrator/internal/config"
	"github.com/shaiso/Integrator/internal/mq"
	"github.com/shaiso/Integrator/internal/repo"
	"github.com/shaiso/Integrator/internal/scheduler"
	"github.com/shaiso/Integrator/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("INTEGRATOR_CONFIG_FILE"))
	if err != nil {
		telemetry.SetupLogger(telemetry.LogOptions{}).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(telemetry.LogOptions{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info("starting integrator-scheduler")

	if !cfg.RabbitMQ.Enabled {
		logger.Error("integrator-scheduler requires rabbitmq.enabled; without a broker integrator-api runs schedules itself")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := repo.Open(ctx, repo.StoreConfig{
		Driver:      cfg.Database.Driver,
		PostgresURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		RedisPrefix: cfg.Redis.Prefix,
	})
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	conn, err := mq.NewConnection(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(scheduler.Config{
		Source:       stores.Schedules,
		Trigger:      mq.NewTriggerPublisher(mq.NewPublisher(conn, logger)),
		SyncInterval: cfg.Scheduler.SyncInterval,
		Location:     cfg.Scheduler.Location(),
		Logger:       logger,
	})

	// HTTP: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !conn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "rabbitmq disconnected")
			return
		}
		fmt.Fprintf(w, "ok schedules=%d", sched.Entries())
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Scheduler.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler stopped", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
