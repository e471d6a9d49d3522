package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"vigil/internal/config"
	"vigil/internal/domain"
	"vigil/internal/infra/artifacts"
	"vigil/internal/infra/db"
	"vigil/internal/infra/drift"
	"vigil/internal/infra/eventlog"
	httpinfra "vigil/internal/infra/http"
	"vigil/internal/infra/metrics"
	"vigil/internal/infra/policy"
	"vigil/internal/infra/providers"
	"vigil/internal/infra/pulse"
	"vigil/internal/infra/reference"
	"vigil/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	registry := providers.NewRegistry()
	mustRegister(registry, providers.NewStub())
	mustRegister(registry, providers.NewOpenAIShim(providers.OpenAIConfig{
		APIKey:       cfg.OpenAIAPIKey,
		SimulateDown: cfg.OpenAISimulateDown,
	}))
	mustRegister(registry, providers.NewStabilityShim(providers.StabilityConfig{
		APIKey:       cfg.StabilityAPIKey,
		SimulateDown: cfg.StabilitySimulateDown,
	}))
	mustRegister(registry, providers.NewComfyUI(providers.ComfyUIConfig{
		URL:     cfg.ComfyUIURL,
		Mode:    cfg.ComfyUIMode,
		Timeout: time.Duration(cfg.ComfyUITimeoutSecs) * time.Second,
	}))

	chain, err := registry.BuildChain(cfg.ProviderChain())
	if err != nil {
		log.Fatalf("invalid provider chain: %v", err)
	}

	reg := metrics.NewRegistry()
	memLog := eventlog.New()
	var events domain.EventLog = memLog
	if store.Enabled() {
		events = eventlog.NewTee(memLog, func(event domain.Event) {
			if _, err := store.Events.Insert(context.Background(), event); err != nil {
				log.Printf("event not mirrored to db: %v", err)
			}
		})
	}

	monitor := pulse.NewMonitor(pulse.Config{
		Window:               cfg.PulseWindow(),
		FailureRateThreshold: cfg.PulseFailRateThreshold,
		MinSamples:           cfg.PulseMinSamples,
		Metrics:              reg,
	}, events)

	var embedder drift.Embedder
	if cfg.GeminiAPIKey != "" {
		gemini, err := drift.NewGeminiEmbedder(ctx, cfg.EmbeddingModel)
		if err != nil {
			log.Printf("gemini embedder unavailable, cascade starts at phash: %v", err)
		} else {
			embedder = gemini
		}
	}
	scorer := usecase.NewDriftScorer(drift.Cascade(embedder), cfg.DriftThreshold, reg, events)

	references, err := reference.NewStore(cfg.ReferenceImagePath)
	if err != nil {
		log.Fatalf("failed to init reference store: %v", err)
	}

	var artifactStore usecase.ArtifactStore
	if cfg.S3Endpoint != "" {
		s3, err := artifacts.NewS3Store(artifacts.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Fatalf("failed to init s3 artifact store: %v", err)
		}
		artifactStore = s3
	} else {
		fs, err := artifacts.NewFSStore(cfg.OutputsDir)
		if err != nil {
			log.Fatalf("failed to init artifact store: %v", err)
		}
		artifactStore = fs
	}

	var policyEngine usecase.PolicyEngine
	if cfg.PolicyBundlePath != "" {
		engine, err := policy.NewEngineFromBundlePath(ctx, cfg.PolicyBundlePath)
		if err != nil {
			log.Fatalf("failed to load policy bundle: %v", err)
		}
		policyEngine = engine
	}

	var images usecase.ImageRepository
	if store.Enabled() {
		images = store.Images
	}

	pipeline := usecase.GenerateImageDeps{
		Router:           usecase.NewProviderRouter(chain, cfg.ProviderTimeout()),
		Scorer:           scorer,
		Metrics:          reg,
		Events:           events,
		Pulse:            monitor,
		Artifacts:        artifactStore,
		References:       references,
		Images:           images,
		Policy:           policyEngine,
		DriftPreference:  domain.DriftMethod(cfg.DriftMethod),
		PulsePerProvider: cfg.PulsePerProvider,
	}

	srv := httpinfra.NewServerWithDeps(cfg, httpinfra.ServerDeps{
		Pipeline: pipeline,
		Registry: registry,
		Metrics:  reg,
		Events:   events,
		Pulse:    monitor,
		Store:    store,
	})
	log.Printf("vigild listening on %s (chain: %v)", cfg.HTTPAddr, cfg.ProviderChain())
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func mustRegister(registry *providers.Registry, p domain.ImageProvider) {
	if err := registry.Register(p); err != nil {
		log.Fatalf("provider registration: %v", err)
	}
}
