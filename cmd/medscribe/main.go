package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/MedScribe/internal/adapter/calendar"
	"github.com/Strob0t/MedScribe/internal/adapter/entityapi"
	mshttp "github.com/Strob0t/MedScribe/internal/adapter/http"
	"github.com/Strob0t/MedScribe/internal/adapter/litellm"
	msmcp "github.com/Strob0t/MedScribe/internal/adapter/mcp"
	msnats "github.com/Strob0t/MedScribe/internal/adapter/nats"
	"github.com/Strob0t/MedScribe/internal/adapter/natskv"
	msotel "github.com/Strob0t/MedScribe/internal/adapter/otel"
	"github.com/Strob0t/MedScribe/internal/adapter/postgres"
	"github.com/Strob0t/MedScribe/internal/adapter/ristretto"
	"github.com/Strob0t/MedScribe/internal/adapter/tiered"
	"github.com/Strob0t/MedScribe/internal/adapter/ws"
	"github.com/Strob0t/MedScribe/internal/config"
	"github.com/Strob0t/MedScribe/internal/logger"
	"github.com/Strob0t/MedScribe/internal/middleware"
	"github.com/Strob0t/MedScribe/internal/port/cache"
	"github.com/Strob0t/MedScribe/internal/port/extraction"
	"github.com/Strob0t/MedScribe/internal/port/generation"
	port "github.com/Strob0t/MedScribe/internal/port/specialist"
	"github.com/Strob0t/MedScribe/internal/resilience"
	"github.com/Strob0t/MedScribe/internal/service"
	"github.com/Strob0t/MedScribe/internal/specialist"
)

const version = "0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	holder := config.NewHolder(cfg, cfgPath)

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"agents", len(cfg.Agents),
		"max_parallel", cfg.Orchestrator.MaxParallel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownOTEL, err := msotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := msotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	queue, err := msnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// --- External services ---
	newBreaker := func() *resilience.Breaker {
		return resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	}
	poll := resilience.PollConfig{Initial: cfg.Poll.Initial, Max: cfg.Poll.Max, MaxWait: cfg.Poll.MaxWait}

	entityBreaker, llmBreaker, calBreaker := newBreaker(), newBreaker(), newBreaker()

	entityClient := entityapi.NewClient(cfg.Extraction.URL, cfg.Extraction.APIKey, cfg.Extraction.Timeout, poll)
	entityClient.SetBreaker(entityBreaker)

	llmClient := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey, cfg.LiteLLM.Timeout)
	llmClient.SetBreaker(llmBreaker)
	llmClient.SetPoll(poll)

	calClient := calendar.NewClient(cfg.Calendar.URL, cfg.Calendar.CalendarID, cfg.Calendar.Token, cfg.Calendar.Timeout)
	calClient.SetBreaker(calBreaker)

	var extractor extraction.Extractor = entityClient
	if cfg.Cache.Enabled {
		entityCache, closeCache, err := buildCache(ctx, cfg.Cache, queue)
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		defer closeCache()
		extractor = service.NewCachedExtractor(entityClient, entityCache, cfg.Cache.TTL)
	}

	// --- Agents ---
	agents, err := buildAgents(ctx, cfg, llmClient, calClient)
	if err != nil {
		return fmt.Errorf("agents: %w", err)
	}

	// --- Services ---
	hub := ws.NewHub(cfg.Server.CORSOrigin)
	defer hub.Close()

	classifier := service.NewIntentClassifier(llmClient.NewCompleter(cfg.LiteLLM.Model, true))
	orch := service.NewOrchestrator(extractor, classifier, agents, cfg.Orchestrator)
	orch.SetMetrics(metrics)

	store := postgres.NewStore(pool)
	fragments := service.NewFragmentService(orch, store, queue, hub)

	if cfg.NATS.Subscribe {
		cancelSub, err := fragments.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("fragment subscriber: %w", err)
		}
		defer cancelSub()
		slog.Info("consuming fragments.received")
	}

	// --- HTTP ---
	handlers := &mshttp.Handlers{
		Fragments: fragments,
		Agents:    orch,
		Version:   version,
		Checks: map[string]mshttp.Check{
			"postgres": store.Ping,
			"nats": func(context.Context) error {
				if !queue.IsConnected() {
					return errors.New("disconnected")
				}
				return nil
			},
			"extraction": entityClient.Health,
			"litellm": func(ctx context.Context) error {
				ok, err := llmClient.Health(ctx)
				if err == nil && !ok {
					err = errors.New("unhealthy")
				}
				return err
			},
			"breaker.extraction": mshttp.BreakerCheck(entityBreaker),
			"breaker.litellm":    mshttp.BreakerCheck(llmBreaker),
			"breaker.calendar":   mshttp.BreakerCheck(calBreaker),
		},
	}

	idemCache, err := ristretto.New(16 << 20)
	if err != nil {
		return fmt.Errorf("idempotency cache: %w", err)
	}
	defer idemCache.Close()

	auth := middleware.Auth(cfg.Auth)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(mshttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(mshttp.SecurityHeaders)
	r.Use(mshttp.CORS(cfg.Server.CORSOrigin))
	r.Use(msotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(auth)

	// WebSocket endpoint
	r.Get("/ws", hub.HandleWS)

	r.Group(func(r chi.Router) {
		// Agents may take a while; bounded by the orchestrator config plus slack.
		r.Use(chimw.Timeout(requestTimeout(cfg)))
		mshttp.MountRoutes(r, handlers, middleware.Idempotency(idemCache, 24*time.Hour))
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      requestTimeout(cfg) + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// --- MCP ---
	var mcpSrv *msmcp.Server
	if cfg.MCP.Enabled {
		mcpSrv = msmcp.NewServer(msmcp.ServerConfig{
			Addr:       ":" + cfg.MCP.Port,
			Name:       "medscribe",
			Version:    version,
			Middleware: []func(http.Handler) http.Handler{middleware.RequestID, auth},
		}, msmcp.ServerDeps{Fragments: fragments, Agents: orch})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
	}

	// Config reload: only the log level is live; agents are fixed at startup.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			if err := holder.Reload(); err != nil {
				slog.Error("config reload failed", "error", err)
				continue
			}
			logger.SetLevel(holder.Get().Logging.Level)
			slog.Info("config reloaded", "log_level", holder.Get().Logging.Level)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if mcpSrv != nil {
		if err := mcpSrv.Stop(shutdownCtx); err != nil {
			slog.Warn("mcp shutdown", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := queue.Drain(); err != nil {
		slog.Warn("nats drain", "error", err)
	}
	return nil
}

// buildCache assembles the extraction cache: ristretto in process, NATS KV
// shared across replicas.
func buildCache(ctx context.Context, cfg config.Cache, queue *msnats.Queue) (cache.Cache, func(), error) {
	l1, err := ristretto.New(cfg.L1MaxCost)
	if err != nil {
		return nil, nil, fmt.Errorf("l1: %w", err)
	}
	l2, err := natskv.Open(ctx, queue.JetStream(), cfg.Bucket, cfg.TTL)
	if err != nil {
		l1.Close()
		return nil, nil, fmt.Errorf("l2: %w", err)
	}
	slog.Info("extraction cache ready", "bucket", cfg.Bucket, "ttl", cfg.TTL)
	closeL1 := func() {
		slog.Info("extraction cache closed", "l1_hit_ratio", l1.HitRatio())
		l1.Close()
	}
	return tiered.New(l1, l2, cfg.TTL), closeL1, nil
}

// buildAgents creates one remote assistant per document-producing agent and
// builds the declared agents in order.
func buildAgents(ctx context.Context, cfg *config.Config, llmClient *litellm.Client, cal *calendar.Client) ([]port.Agent, error) {
	generators := make(map[string]generation.Generator, len(cfg.Agents))
	for _, a := range cfg.Agents {
		if !specialist.NeedsGenerator(a.Kind) {
			continue
		}
		model := a.Model
		if model == "" {
			model = cfg.LiteLLM.Model
		}
		asst, err := llmClient.CreateAssistant(ctx, litellm.AssistantConfig{
			Name:         "medscribe-" + a.Name,
			Model:        model,
			Instructions: a.Instructions,
		})
		if err != nil {
			return nil, fmt.Errorf("create assistant for %s: %w", a.Name, err)
		}
		generators[a.Name] = asst
		slog.Info("assistant created", "agent", a.Name, "assistant_id", asst.ID(), "model", model)
	}

	specs, err := specialist.Specs(cfg.Agents, specialist.Deps{
		Generators:    generators,
		Calendar:      cal,
		EventDuration: cfg.Calendar.EventDuration,
	})
	if err != nil {
		return nil, err
	}

	reg := port.NewRegistry()
	if err := specialist.Register(reg); err != nil {
		return nil, err
	}
	return reg.Build(specs)
}

// requestTimeout bounds one HTTP request: the extraction poll budget, one
// classification call and the agent stage.
func requestTimeout(cfg *config.Config) time.Duration {
	d := cfg.Poll.MaxWait + cfg.LiteLLM.Timeout
	if cfg.Orchestrator.AgentTimeout > 0 {
		d += cfg.Orchestrator.AgentTimeout
	} else {
		d += cfg.LiteLLM.Timeout + cfg.Poll.MaxWait
	}
	return d
}
