package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/soyeon/reflow/internal/api"
	"github.com/soyeon/reflow/internal/blocks"
	"github.com/soyeon/reflow/internal/capability"
	"github.com/soyeon/reflow/internal/config"
	"github.com/soyeon/reflow/internal/engine"
	"github.com/soyeon/reflow/internal/provider"
	"github.com/soyeon/reflow/internal/reasoning"
	"github.com/soyeon/reflow/internal/reflow"
	"github.com/soyeon/reflow/internal/repository"
	"github.com/soyeon/reflow/internal/services"
	"github.com/soyeon/reflow/internal/verification"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		serve()
		return
	}
	fmt.Println("reflow v0.1.0")
	fmt.Println("Usage: reflow serve")
}

func serve() {
	// .env is optional; config files reference keys via ${VAR}.
	_ = godotenv.Load()

	cfg, err := config.LoadDefault()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	providers := provider.NewRegistry()
	for name, pc := range cfg.Providers {
		switch pc.Type {
		case "openai", "":
			providers.Register(provider.NewOpenAIProvider(name, pc.URL, pc.APIKey, pc.MaxContextLength))
		default:
			slog.Warn("skipping provider with unknown type", "provider", name, "type", pc.Type)
		}
	}

	reasoner := reasoning.NewEngine(providers,
		reasoning.WithMaxIterations(cfg.Engine.MaxReactIterations))
	detector := capability.NewDetector(providers)
	verifier := verification.NewManager()

	bus := engine.NewEventBus()
	registry := engine.NewExecutionRegistry()
	registry.StartGC(time.Duration(cfg.Engine.RunRetentionMinutes) * time.Minute)
	defer registry.StopGC()
	blockReg := blocks.DefaultRegistry(blocks.Deps{
		Providers: providers,
		Reasoner:  reasoner,
		Verifier:  verifier,
		Publish:   bus.Publish,
	})
	orch := engine.NewOrchestrator(blockReg, bus, registry)

	runs := services.NewRunManager(time.Duration(cfg.Engine.RunRetentionMinutes) * time.Minute)
	defer runs.Stop()
	bus.Subscribe(runs.Consume)

	limiter := services.NewConcurrencyLimiter(cfg.Engine.Concurrency)
	repo := repository.NewMemoryRepository()

	srv := api.NewServer(repo, orch, runs, limiter, verifier, detector)

	sched := services.NewScheduler(repo, func(ctx context.Context, wf *reflow.ReasoningWorkflow) {
		srv.Launch(wf, nil, false)
	})
	srv.SetScheduler(sched)
	if err := sched.Start(context.Background()); err != nil {
		slog.Error("scheduler error", "err", err)
		os.Exit(1)
	}
	defer sched.Stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("starting reflow server", "addr", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
