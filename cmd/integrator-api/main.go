// integrator-api — HTTP API и исполнитель runs.
//
// Процесс поднимает RunManager (с recovery незавершённых runs),
// обслуживает /api/run-manage/* и /api/business-config/*.
// С rabbitmq.enabled потребляет runs.trigger и публикует runs.finished;
// без брокера расписания выполняются встроенным scheduler.
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

	"github.com/shaiso/Integrator/internal/api"
	"github.com/shaiso/Integrator/internal/artifact"
	"github.com/shaiso/Integrator/internal/config"
	"github.com/shaiso/Integrator/internal/configstore"
	"github.com/shaiso/Integrator/internal/domain"
	"github.com/shaiso/Integrator/internal/engine"
	"github.com/shaiso/Integrator/internal/mq"
	"github.com/shaiso/Integrator/internal/repo"
	"github.com/shaiso/Integrator/internal/runmanager"
	"github.com/shaiso/Integrator/internal/scheduler"
	"github.com/shaiso/Integrator/internal/scm"
	"github.com/shaiso/Integrator/internal/steps"
	"github.com/shaiso/Integrator/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("INTEGRATOR_CONFIG_FILE"))
	if err != nil {
		telemetry.SetupLogger(telemetry.LogOptions{}).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(telemetry.LogOptions{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info("starting integrator-api", "driver", cfg.Database.Driver, "rabbitmq", cfg.RabbitMQ.Enabled)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 1. Хранилища runs и расписаний
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
	logger.Info("stores opened", "driver", cfg.Database.Driver)

	// 2. Бизнес-конфигурация
	source, err := openConfigSource(ctx, cfg.BusinessConfig)
	if err != nil {
		logger.Error("failed to open business config source", "error", err)
		os.Exit(1)
	}
	configs := configstore.New(configstore.Config{
		Source: source,
		TTL:    cfg.BusinessConfig.TTL,
		Logger: logger,
	})

	// 3. Шаги и движок
	registry := steps.DefaultRegistry(steps.Deps{
		Configs: configs,
		SCM: scm.NewGitLabFactory(scm.GitLabOptions{
			HTTPClient: &http.Client{Timeout: cfg.SCM.Timeout},
			RateLimit:  cfg.SCM.RateLimit,
			Burst:      cfg.SCM.Burst,
			Logger:     logger,
		}),
		Artifacts: artifact.NewHTTPRegistry(artifact.Config{
			BaseURL:    cfg.Artifact.BaseURL,
			Token:      cfg.Artifact.Token,
			HTTPClient: &http.Client{Timeout: cfg.Artifact.Timeout},
			Logger:     logger,
		}),
		Logger: logger,
	})
	eng := engine.New(engine.Config{
		Procedures: configs,
		Steps:      registry,
		Logger:     logger,
	})

	// 4. RabbitMQ (опционально)
	var (
		conn     *mq.Connection
		notifier runmanager.Notifier
	)
	if cfg.RabbitMQ.Enabled {
		conn, err = mq.NewConnection(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			logger.Error("failed to setup topology", "error", err)
			os.Exit(1)
		}
		notifier = mq.NewRunNotifier(mq.NewPublisher(conn, logger))
	}

	// 5. RunManager и recovery
	rm := runmanager.New(runmanager.Config{
		Runs:      stores.Runs,
		Schedules: stores.Schedules,
		Engine:    eng,
		Notifier:  notifier,
		Logger:    logger,
	})

	recovered, err := rm.Recover(ctx)
	if err != nil {
		logger.Error("failed to recover runs", "error", err)
		os.Exit(1)
	}
	logger.Info("recovery finished", "recovered", recovered)

	automatic := func(ctx context.Context, input domain.Input, triggerBy string) error {
		_, err := rm.AutomaticTrigger(ctx, input, triggerBy)
		return err
	}

	// 6. Источник автоматических запусков: очередь или встроенный scheduler
	if conn != nil {
		consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
			Queue:   mq.QueueRunsTrigger,
			Handler: mq.TriggerHandler(automatic),
		})
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("trigger consumer stopped", "error", err)
			}
		}()
	} else {
		sched := scheduler.New(scheduler.Config{
			Source:       stores.Schedules,
			Trigger:      scheduler.TriggerFunc(automatic),
			SyncInterval: cfg.Scheduler.SyncInterval,
			Location:     cfg.Scheduler.Location(),
			Logger:       logger,
		})
		go func() {
			if err := sched.Run(ctx); err != nil {
				logger.Error("scheduler stopped", "error", err)
			}
		}()
	}

	// 7. HTTP
	handler := api.NewHandler(api.Config{
		Runs:    rm,
		Configs: configs,
		Logger:  logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
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

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := rm.Stop(shutdownCtx); err != nil {
		logger.Warn("runs still in progress at shutdown", "active", rm.ActiveRuns(), "error", err)
	}

	logger.Info("stopped")
}

// openConfigSource выбирает источник файлов бизнес-конфигурации.
func openConfigSource(ctx context.Context, cfg config.BusinessConfigSource) (configstore.Source, error) {
	if cfg.S3.Bucket != "" {
		src, err := configstore.OpenS3Source(ctx, configstore.S3Config{
			Bucket:   cfg.S3.Bucket,
			Prefix:   cfg.S3.Prefix,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return configstore.NewDirSource(cfg.Dir), nil
}
