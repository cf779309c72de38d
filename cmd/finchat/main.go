// Command finchat runs the financial assistant chat service: a multi-agent
// orchestrator over the batch processing and results retrieval services.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"finchat/pkg/agents"
	"finchat/pkg/config"
	"finchat/pkg/contextstore"
	"finchat/pkg/engine"
	"finchat/pkg/httpapi"
	"finchat/pkg/llm"
	"finchat/pkg/logx"
	"finchat/pkg/metrics"
	"finchat/pkg/persistence"
	"finchat/pkg/planner"
	"finchat/pkg/services"
	"finchat/pkg/supervisor"
	"finchat/pkg/tools"
)

const cleanupInterval = time.Hour

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	logger := logx.NewLogger("finchat")
	if err := run(*configPath, logger); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *logx.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logx.SetDebug(cfg.Debug)

	store, err := persistence.Open(cfg.Database.Path, cfg.Database.ConversationTTL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	client, err := llm.NewClient(cfg)
	if err != nil {
		return err
	}

	invoker := tools.NewInvoker()
	invoker.SetObserver(func(tool string, status tools.Status) {
		recorder.ObserveToolCall(tool, string(status))
	})
	batchClient := services.NewBatchClient(cfg.Services.BatchURL, cfg.HTTPTimeout)
	resultsClient := services.NewResultsClient(cfg.Services.ResultsURL, cfg.HTTPTimeout)
	if err := services.RegisterBatchTools(invoker, batchClient); err != nil {
		return err
	}
	if err := services.RegisterResultsTools(invoker, resultsClient); err != nil {
		return err
	}

	ctxStore := contextstore.New(store, cfg.Features.SharedContext)

	agentClient := llm.Instrument(client, observeLLM(recorder, "agent"))
	agentRegistry := agents.NewRegistry()
	batchAgent, err := agents.NewBatchAgent(agentClient, invoker, ctxStore, cfg.Model.MaxHistoryTokens)
	if err != nil {
		return err
	}
	resultsAgent, err := agents.NewResultsAgent(agentClient, invoker, ctxStore, cfg.Model.MaxHistoryTokens)
	if err != nil {
		return err
	}
	for _, agent := range []*agents.Agent{batchAgent, resultsAgent} {
		if err := agentRegistry.Register(agent); err != nil {
			return err
		}
	}

	plan := planner.New(llm.Instrument(client, observeLLM(recorder, "planner")), agentRegistry)
	plan.SetFallbackHook(recorder.ObservePlanFallback)
	judge := supervisor.New(llm.Instrument(client, observeLLM(recorder, "supervisor")), agentRegistry, cfg.MaxStepRetries)

	eng := engine.New(plan, agentRegistry, judge, store, recorder, cfg)
	api := httpapi.NewServer(eng, store, registry)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go cleanupLoop(ctx, store, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// cleanupLoop removes expired conversations on a fixed interval.
func cleanupLoop(ctx context.Context, store *persistence.Store, logger *logx.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := store.CleanupExpired(ctx); err != nil {
				logger.Warn("conversation cleanup failed: %v", err)
			}
		}
	}
}

func observeLLM(recorder *metrics.Recorder, component string) func(error) {
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		recorder.ObserveLLMCall(component, status)
	}
}
