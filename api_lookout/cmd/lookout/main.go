package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"frameworks/api_lookout/internal/analysis"
	"frameworks/api_lookout/internal/artifacts"
	"frameworks/api_lookout/internal/capture"
	lookoutconfig "frameworks/api_lookout/internal/config"
	"frameworks/api_lookout/internal/events"
	"frameworks/api_lookout/internal/handlers"
	"frameworks/api_lookout/internal/keys"
	"frameworks/api_lookout/internal/pipeline"
	"frameworks/api_lookout/internal/state"
	"frameworks/api_lookout/internal/viral"
	"frameworks/api_lookout/internal/workflow"
	"frameworks/pkg/config"
	"frameworks/pkg/database"
	"frameworks/pkg/llm"
	"frameworks/pkg/logging"
	"frameworks/pkg/monitoring"
	"frameworks/pkg/redis"
	"frameworks/pkg/server"
	"frameworks/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("lookout")

	// Load environment variables
	config.LoadEnv(logger)

	logger.WithField("version", version.Version).Info("Starting Lookout (search and scoring orchestration API)")

	cfg := lookoutconfig.LoadConfig()
	ctx := context.Background()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("lookout", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("lookout", version.Version, version.GitCommit)

	stateStore, closeState, err := newStateStore(ctx, cfg, healthChecker, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize session state store")
	}
	defer closeState()
	healthChecker.AddCheck("state", monitoring.PingHealthCheck("state store", monitoring.StatusUnhealthy, stateStore.Ping))

	artifactStore, err := newArtifactStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize artifact store")
	}
	healthChecker.AddCheck("artifacts", monitoring.PingHealthCheck("artifact store", monitoring.StatusUnhealthy, artifactStore.Ping))

	registry := keys.LoadFromEnv(keys.DefaultProviders, logger)

	scorer := viral.NewScorer(viral.DefaultCalibration())
	if cfg.CalibrationFile != "" {
		cal, err := viral.LoadCalibration(cfg.CalibrationFile)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load viral calibration")
		}
		scorer = viral.NewScorer(cal)
		logger.WithField("file", cfg.CalibrationFile).Info("Loaded viral calibration")
	}

	var capturer capture.Capturer
	if cfg.CaptureEnabled {
		svc, browser, err := capture.NewRodService(capture.Config{BrowserBin: cfg.BrowserBin, Tabs: cfg.CaptureConcurrent}, artifactStore, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to start headless browser - screenshot capture disabled")
		} else {
			capturer = svc
			defer browser.Close()
		}
	}

	orchestrator, err := pipeline.NewStack(cfg.Stack(), registry, capturer, scorer, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build search pipeline")
	}

	var llmProvider llm.Provider
	llmCfg := llm.LoadConfig()
	if llmCfg.Enabled() {
		llmProvider, err = llm.NewProvider(ctx, llmCfg)
		if err != nil {
			logger.WithError(err).Warn("Failed to create LLM provider - synthesis and generation will fail")
			llmProvider = nil
		}
	} else {
		logger.Warn("LLM_MODEL/LLM_API_KEY not set - synthesis and generation will fail")
	}

	var stageEvents events.Sink = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewPublisher(events.PublisherConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			Source:  "lookout",
			Logger:  logger,
		})
		if err != nil {
			logger.WithError(err).Warn("Failed to create stage event publisher - Kafka events disabled")
		} else {
			stageEvents = publisher
			defer func() { _ = publisher.Close() }()
			healthChecker.AddCheck("kafka", monitoring.KafkaHealthCheck(publisher.Client()))
		}
	} else {
		logger.Info("KAFKA_BROKERS not set - stage events disabled")
	}

	machine, err := workflow.New(workflow.Deps{
		State:       stateStore,
		Artifacts:   artifactStore,
		Collector:   orchestrator,
		Synthesizer: analysis.NewSynthesizer(llmProvider, logger),
		Generator:   analysis.NewGenerator(llmProvider, logger),
		Events:      stageEvents,
		Logger:      logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create workflow")
	}

	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"STATE_BACKEND":    cfg.StateBackend,
		"ARTIFACT_BACKEND": cfg.ArtifactBackend,
	}))
	healthChecker.AddCheck("providers", func() monitoring.CheckResult {
		available := registry.Available()
		if len(available) == 0 {
			return monitoring.CheckResult{Status: monitoring.StatusDegraded, Message: "No search API credentials configured"}
		}
		return monitoring.CheckResult{Status: monitoring.StatusHealthy, Message: fmt.Sprintf("%d providers configured", len(available))}
	})

	serverConfig := server.DefaultConfig("lookout", cfg.Port)
	router := server.SetupServiceRouter(logger, "lookout", healthChecker, metricsCollector)

	h := &handlers.Handler{
		Workflow:          machine,
		Keys:              registry,
		Logger:            logger,
		ModulesToGenerate: analysis.ModuleCount,
	}
	if breakers := orchestrator.Breakers(); breakers != nil {
		h.Breakers = breakers
	}
	h.Register(router)

	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Error("Server startup failed")
		waitForStages(machine, logger)
		os.Exit(1)
	}
	waitForStages(machine, logger)
}

// waitForStages gives running stages a bounded window to persist their
// outcome after the HTTP server stops.
func waitForStages(m *workflow.Machine, logger logging.Logger) {
	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn("Background stages still running at shutdown")
	}
}

func newStateStore(ctx context.Context, cfg lookoutconfig.Config, hc *monitoring.HealthChecker, logger logging.Logger) (state.Store, func(), error) {
	noop := func() {}
	switch cfg.StateBackend {
	case "", "file":
		store, err := state.NewFileStore(cfg.StateDir)
		return store, noop, err
	case "redis":
		client, err := redis.NewUniversalClient(ctx, redis.Config{
			URL:      cfg.RedisURL,
			Addrs:    redis.ParseAddrs(cfg.RedisAddrs),
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Using Redis session state store")
		hc.AddCheck("redis", monitoring.RedisHealthCheck(client))
		return state.NewRedisStore(client, 0), func() { _ = client.Close() }, nil
	case "postgres":
		db, err := database.Connect(ctx, database.DefaultConfig(cfg.DatabaseURL), logger)
		if err != nil {
			return nil, noop, err
		}
		if err := state.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		logger.Info("Using PostgreSQL session state store")
		return state.NewPostgresStore(db), func() { _ = db.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown STATE_BACKEND %q", cfg.StateBackend)
	}
}

func newArtifactStore(ctx context.Context, cfg lookoutconfig.Config, logger logging.Logger) (artifacts.Store, error) {
	switch cfg.ArtifactBackend {
	case "", "file":
		return artifacts.NewFileStore(cfg.ArtifactDir)
	case "s3":
		return artifacts.NewS3Store(ctx, artifacts.S3Config{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown ARTIFACT_BACKEND %q", cfg.ArtifactBackend)
	}
}
