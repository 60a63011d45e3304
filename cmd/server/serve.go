package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/api"
	"github.com/Harshitk-cp/cognicore/internal/config"
	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/embedding"
	"github.com/Harshitk-cp/cognicore/internal/llm"
	"github.com/Harshitk-cp/cognicore/internal/loop"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/Harshitk-cp/cognicore/internal/store"
	"github.com/Harshitk-cp/cognicore/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var runMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control surface, agent loops and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, logger, runMigrations)
		},
	}
	cmd.Flags().BoolVar(&runMigrations, "migrate", false, "apply migrations before serving")
	return cmd
}

func serve(ctx context.Context, logger *zap.Logger, runMigrations bool) error {
	if endpoint := config.OTLPEndpoint(); endpoint != "" {
		shutdown, err := telemetry.SetupTracing(ctx, endpoint, true)
		if err != nil {
			logger.Warn("tracing disabled", zap.Error(err))
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(sctx)
			}()
			logger.Info("tracing enabled", zap.String("endpoint", endpoint))
		}
	}

	opts := api.Options{
		Logger: logger,
		Loop: loop.Config{
			Interval:           config.LoopInterval(),
			ErrorBackoff:       config.LoopErrorBackoff(),
			PerceiveTimeout:    config.LoopPerceiveTimeout(),
			PhaseTimeout:       config.LoopPhaseTimeout(),
			StopTimeout:        config.LoopStopTimeout(),
			IntentionsPerCycle: config.LoopIntentionsPerCycle(),
			Schedule:           config.StrategicSchedule(),
		},
		RoleRequirements: config.RoleRequirements(),
		Decay:            service.ParseDecayModel(config.BeliefDecayModel()),
		Retry: llm.RetryConfig{
			MaxRetries: config.ReasoningMaxRetries(),
			BaseDelay:  llm.DefaultRetryConfig().BaseDelay,
			MaxDelay:   llm.DefaultRetryConfig().MaxDelay,
		},
		ActionTimeout:   config.LoopExecuteTimeout(),
		WorkingCapacity: config.WorkingMemoryCapacity(),
		RateLimitRPS:    config.RateLimitRPS(),
		RateLimitBurst:  config.RateLimitBurst(),
	}

	triggers, err := loadTriggers(config.GoalTriggersFile())
	if err != nil {
		return err
	}
	opts.Triggers = triggers

	reasoner, err := llm.NewReasoner(config.LLMProvider(), config.LLMAPIKey(), config.LLMModel())
	if err != nil {
		logger.Error("reasoner unavailable", zap.String("provider", config.LLMProvider()), zap.Error(err))
		return err
	}
	opts.Reasoner = llm.NewLimited(reasoner, config.ReasoningRPS(), config.ReasoningBurst(), config.ReasoningTimeout())
	logger.Info("reasoner initialized", zap.String("provider", config.LLMProvider()))

	embedder, err := embedding.NewClient(config.EmbeddingProvider(), config.EmbeddingAPIKey(),
		embedding.WithModel(config.EmbeddingModel()),
		embedding.WithBaseURL(config.EmbeddingBaseURL()),
	)
	if err != nil {
		logger.Warn("embedding client unavailable, recall disabled", zap.String("provider", config.EmbeddingProvider()), zap.Error(err))
	} else {
		cached, err := embedding.NewCachedClient(embedder, config.EmbeddingCacheSize())
		if err != nil {
			return err
		}
		opts.Embedder = cached
	}

	switch config.StoreDriver() {
	case "memory":
		opts.Stores = api.MemoryStores()
		logger.Warn("using in-memory stores; state is lost on exit")
	case "postgres":
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			return errors.New("DATABASE_URL is required")
		}
		if runMigrations {
			if err := store.Migrate(dbURL, logger); err != nil {
				return err
			}
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		logger.Info("connected to database")
		opts.Stores = api.PostgresStores(pool)
		opts.Ping = pool.Ping
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (valid options: postgres, memory)", config.StoreDriver())
	}

	if url := config.RedisURL(); url != "" {
		rdb, err := store.NewRedisClient(url)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()
		opts.Stores.WorkingMemory = store.NewRedisWorkingMemoryStore(rdb)
		logger.Info("working memory backed by redis")
	}

	app, err := api.NewApp(opts)
	if err != nil {
		return err
	}
	app.Consolidation.SetInterval(config.ConsolidationInterval())
	app.Expirer.SetInterval(config.WorkingMemorySweepInterval())
	app.Start()

	srv := &http.Server{
		Addr:              config.ServerAddr(),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.LoopStopTimeout()+10*time.Second)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := app.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("loop shutdown: %w", err))
	}
	logger.Info("server stopped")
	return errors.Join(errs...)
}

func loadTriggers(path string) ([]domain.TriggerRule, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read goal triggers: %w", err)
	}
	var rules []domain.TriggerRule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse goal triggers %s: %w", path, err)
	}
	return rules, nil
}
