package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/api/handlers"
	mw "github.com/Harshitk-cp/cognicore/internal/api/middleware"
	"github.com/Harshitk-cp/cognicore/internal/buildconfig"
	"github.com/Harshitk-cp/cognicore/internal/capability"
	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/embedding"
	"github.com/Harshitk-cp/cognicore/internal/llm"
	"github.com/Harshitk-cp/cognicore/internal/loop"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/Harshitk-cp/cognicore/internal/store"
	"github.com/Harshitk-cp/cognicore/internal/store/memstore"
	"github.com/Harshitk-cp/cognicore/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Stores is every persistence dependency of the app.
type Stores struct {
	Tenants       domain.TenantStore
	Agents        domain.AgentStore
	Beliefs       domain.BeliefStore
	Goals         domain.GoalStore
	Intentions    domain.IntentionStore
	Episodes      domain.EpisodeStore
	Facts         domain.FactStore
	Procedures    domain.ProcedureStore
	WorkingMemory domain.WorkingMemoryStore
	Events        domain.EventStore
}

func PostgresStores(db *pgxpool.Pool) Stores {
	return Stores{
		Tenants:       store.NewTenantStore(db),
		Agents:        store.NewAgentStore(db),
		Beliefs:       store.NewBeliefStore(db),
		Goals:         store.NewGoalStore(db),
		Intentions:    store.NewIntentionStore(db),
		Episodes:      store.NewEpisodeStore(db),
		Facts:         store.NewFactStore(db),
		Procedures:    store.NewProcedureStore(db),
		WorkingMemory: store.NewWorkingMemoryStore(db),
		Events:        store.NewEventStore(db),
	}
}

func MemoryStores() Stores {
	m := memstore.New()
	return Stores{
		Tenants:       m.Tenants,
		Agents:        m.Agents,
		Beliefs:       m.Beliefs,
		Goals:         m.Goals,
		Intentions:    m.Intentions,
		Episodes:      m.Episodes,
		Facts:         m.Facts,
		Procedures:    m.Procedures,
		WorkingMemory: m.WorkingMemory,
		Events:        m.Events,
	}
}

type Options struct {
	Stores   Stores
	Reasoner domain.Reasoner
	Embedder domain.EmbeddingClient
	Logger   *zap.Logger

	// Ping reports backing-store health on /health. Nil means always healthy.
	Ping func(ctx context.Context) error

	Loop             loop.Config
	RoleRequirements map[string][]string
	Triggers         []domain.TriggerRule
	Decay            service.DecayModel
	Retry            llm.RetryConfig
	ActionTimeout    time.Duration
	WorkingCapacity  int

	RateLimitRPS   float64
	RateLimitBurst int
}

// App holds the router and everything with a lifecycle behind it.
type App struct {
	Router        *chi.Mux
	Loops         *loop.Manager
	Inboxes       *capability.InboxHub
	Consolidation *service.ConsolidationWorker
	Expirer       *service.WorkingMemoryExpirer

	Agents     *service.AgentService
	Beliefs    *service.BeliefService
	Goals      *service.GoalService
	Intentions *service.IntentionEngine
	Procedures *service.ProceduralMemory

	logger    *zap.Logger
	ping      func(ctx context.Context) error
	metrics   mw.Metrics
	startTime time.Time
	cancel    context.CancelFunc
}

func NewApp(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	st := opts.Stores

	recorder := telemetry.Fanout{
		telemetry.NewZapRecorder(logger),
		telemetry.NewStoreRecorder(st.Events, logger),
	}

	// Services
	agentSvc := service.NewAgentService(st.Agents)
	episodic := service.NewEpisodicMemory(st.Episodes, opts.Embedder, logger)
	semantic := service.NewSemanticMemory(st.Facts, opts.Embedder, logger)
	procedural := service.NewProceduralMemory(st.Procedures, logger)
	working := service.NewWorkingMemory(st.WorkingMemory, opts.WorkingCapacity, logger)

	beliefs := service.NewBeliefService(st.Beliefs, episodic, opts.Reasoner, recorder, logger)
	if opts.Decay != "" {
		beliefs.Decay = opts.Decay
	}
	goals := service.NewGoalService(st.Goals, st.Intentions, beliefs, recorder, logger)
	goals.Triggers = opts.Triggers
	intentions := service.NewIntentionEngine(st.Intentions, goals, beliefs, procedural, opts.Reasoner, recorder, logger)
	if opts.ActionTimeout > 0 {
		intentions.ActionTimeout = opts.ActionTimeout
	}
	if opts.Retry.MaxRetries > 0 {
		beliefs.Retry = opts.Retry
		intentions.Retry = opts.Retry
	}

	// Capabilities
	hub := capability.NewInboxHub()
	registry := capability.NewRegistry()
	if err := registry.Register(capability.InboxName, hub.Factory()); err != nil {
		return nil, err
	}

	manager := loop.NewManager(agentSvc, registry, opts.Loop, loop.Deps{
		Beliefs:    beliefs,
		Goals:      goals,
		Intentions: intentions,
		Episodes:   episodic,
		Procedures: procedural,
		Working:    working,
		Recorder:   recorder,
		Logger:     logger,
	})
	if opts.RoleRequirements != nil {
		manager.RoleRequirements = opts.RoleRequirements
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Loops:         manager,
		Inboxes:       hub,
		Consolidation: service.NewConsolidationWorker(episodic, st.Agents, logger),
		Expirer:       service.NewWorkingMemoryExpirer(working, logger),
		Agents:        agentSvc,
		Beliefs:       beliefs,
		Goals:         goals,
		Intentions:    intentions,
		Procedures:    procedural,
		logger:        logger,
		ping:          opts.Ping,
		startTime:     time.Now(),
		cancel:        cancel,
	}

	// Handlers
	tenantHandler := handlers.NewTenantHandler(st.Tenants)
	agentHandler := handlers.NewAgentHandler(agentSvc, manager)
	loopHandler := handlers.NewLoopHandler(agentSvc, manager)
	inboxHandler := handlers.NewInboxHandler(agentSvc, hub, st.Events)
	beliefHandler := handlers.NewBeliefHandler(agentSvc, beliefs)
	goalHandler := handlers.NewGoalHandler(agentSvc, goals)
	intentionHandler := handlers.NewIntentionHandler(agentSvc, intentions)
	procedureHandler := handlers.NewProcedureHandler(agentSvc, procedural)
	factHandler := handlers.NewFactHandler(agentSvc, semantic)
	wmHandler := handlers.NewWorkingMemoryHandler(agentSvc, working)
	episodeHandler := handlers.NewEpisodeHandler(agentSvc, episodic)

	r := chi.NewRouter()
	app.Router = r

	rps, burst := opts.RateLimitRPS, opts.RateLimitBurst
	if rps <= 0 {
		rps = 100
	}
	if burst <= 0 {
		burst = 20
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(ctx, rps, burst))

	r.Get("/health", app.healthHandler())
	r.Get("/metrics", app.metricsHandler())

	// Tenant creation (no auth, bootstrap endpoint)
	r.Post("/v1/tenants", tenantHandler.Create)

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(st.Tenants))

		r.Route("/agents", func(r chi.Router) {
			r.Post("/", agentHandler.Create)
			r.Get("/", agentHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", agentHandler.Get)

				r.Route("/loop", func(r chi.Router) {
					r.Post("/start", loopHandler.Start)
					r.Post("/stop", loopHandler.Stop)
					r.Post("/pause", loopHandler.Pause)
					r.Post("/resume", loopHandler.Resume)
					r.Get("/status", loopHandler.Status)
				})

				r.Post("/observations", inboxHandler.Observe)
				r.Get("/actions", inboxHandler.Actions)
				r.Get("/events", inboxHandler.Events)

				r.Get("/beliefs", beliefHandler.List)
				r.Get("/beliefs/about/{entity}", beliefHandler.About)

				r.Route("/goals", func(r chi.Router) {
					r.Post("/", goalHandler.Create)
					r.Get("/", goalHandler.List)
					r.Post("/{goalID}/abandon", goalHandler.Abandon)
					r.Post("/{goalID}/block", goalHandler.Block)
					r.Post("/{goalID}/unblock", goalHandler.Unblock)
				})

				r.Post("/intentions", intentionHandler.Adopt)
				r.Get("/intentions", intentionHandler.List)

				r.Post("/procedures", procedureHandler.Upsert)
				r.Get("/procedures", procedureHandler.List)

				r.Post("/facts", factHandler.Upsert)
				r.Get("/facts/related", factHandler.Related)

				r.Post("/working-memory", wmHandler.Insert)
				r.Get("/working-memory", wmHandler.List)

				r.Get("/episodes/recall", episodeHandler.Recall)
			})
		})
	})

	return app, nil
}

// Start launches the background workers.
func (app *App) Start() {
	app.Consolidation.Start()
	app.Expirer.Start()
}

// Shutdown stops every agent loop, then the workers.
func (app *App) Shutdown(ctx context.Context) error {
	err := app.Loops.Shutdown(ctx)
	app.Consolidation.Stop()
	app.Expirer.Stop()
	app.cancel()
	return err
}

func (app *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok", "build": buildconfig.VersionInfo()}
		status := http.StatusOK
		if app.ping != nil {
			if err := app.ping(r.Context()); err != nil {
				body["status"] = "error"
				body["error"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		loops := app.Loops.List()
		running, paused, cycles, failed := 0, 0, 0, 0
		for _, s := range loops {
			switch s.State {
			case loop.StateRunning:
				running++
			case loop.StatePaused:
				paused++
			}
			cycles += s.Cycles
			failed += s.FailedPhases
		}

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"http":           app.metrics.Snapshot(),
			"loops": map[string]any{
				"running":       running,
				"paused":        paused,
				"cycles":        cycles,
				"failed_phases": failed,
			},
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.TenantStore        = (*store.TenantStore)(nil)
	_ domain.AgentStore         = (*store.AgentStore)(nil)
	_ domain.BeliefStore        = (*store.BeliefStore)(nil)
	_ domain.GoalStore          = (*store.GoalStore)(nil)
	_ domain.IntentionStore     = (*store.IntentionStore)(nil)
	_ domain.EpisodeStore       = (*store.EpisodeStore)(nil)
	_ domain.FactStore          = (*store.FactStore)(nil)
	_ domain.ProcedureStore     = (*store.ProcedureStore)(nil)
	_ domain.WorkingMemoryStore = (*store.WorkingMemoryStore)(nil)
	_ domain.WorkingMemoryStore = (*store.RedisWorkingMemoryStore)(nil)
	_ domain.EventStore         = (*store.EventStore)(nil)
	_ domain.EmbeddingClient    = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient    = (*embedding.MockClient)(nil)
	_ domain.EmbeddingClient    = (*embedding.CachedClient)(nil)
	_ domain.Reasoner           = (*llm.AnthropicReasoner)(nil)
	_ domain.Reasoner           = (*llm.OpenAIReasoner)(nil)
	_ domain.Reasoner           = (*llm.MockReasoner)(nil)
	_ domain.Reasoner           = (*llm.Limited)(nil)
)
