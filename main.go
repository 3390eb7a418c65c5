package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"advisor-core/internal/api"
	"advisor-core/internal/coordinator"
	"advisor-core/internal/events"
	"advisor-core/internal/health"
	"advisor-core/internal/history"
	"advisor-core/internal/llm"
	"advisor-core/internal/mock"
	"advisor-core/internal/monitor"
	"advisor-core/internal/workflow"
	"advisor-core/pkg/config"
	"advisor-core/pkg/db"
	"advisor-core/pkg/hostid"
	"advisor-core/pkg/i18n"
	"advisor-core/pkg/logger"
	"advisor-core/pkg/upstream/market"
	"advisor-core/pkg/upstream/news"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, i18n.Get("ConfigLoadFailed")+"\n", err)
		os.Exit(1)
	}
	i18n.SetLanguage(i18n.Parse(cfg.Language))

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal(fmt.Sprintf(i18n.Get("APIServerError"), err))
	}
	log.Info(i18n.Get("ShutdownComplete"))
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info(i18n.Get("Starting"))
	log.Info(i18n.Get("ConfigLoaded"), zap.String("port", cfg.Port), zap.Bool("mock", cfg.UseMock))

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "v1.0-dev"
	}

	// Chat history
	log.Info(fmt.Sprintf(i18n.Get("UsingDBPath"), cfg.DBPath))
	database, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf(i18n.Get("DBInitFailed"), err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		return fmt.Errorf(i18n.Get("DBMigrationsFailed"), err)
	}
	store := history.NewSQLStore(database)

	bus := events.NewBus()
	metrics := monitor.NewSystemMetrics()
	(&monitor.Monitor{
		Bus:     bus,
		Metrics: metrics,
		Sink:    monitor.LogSink{Logger: log},
		Logger:  log,
	}).Start(ctx)

	coord := coordinator.New(
		coordinator.Config{NewsEnabled: cfg.NewsEnabled, MarketEnabled: cfg.MarketEnabled, RSIPeriod: cfg.RSIPeriod},
		news.NewClient(cfg.NewsBaseURL, cfg.NewsTimeout),
		market.NewClient(cfg.MarketBaseURL, cfg.MarketTimeout),
		coordinator.WithLogger(log),
		coordinator.WithBus(bus),
		coordinator.WithMetrics(metrics),
	)
	log.Info(fmt.Sprintf(i18n.Get("ProvidersEnabled"), coord.NewsBreaker().Enabled(), coord.MarketBreaker().Enabled()))

	advisor, fetcher := collaborators(cfg, coord, log)
	svc := workflow.NewService(advisor, fetcher, cfg.Lookback,
		workflow.WithLogger(log),
		workflow.WithBus(bus),
		workflow.WithMetrics(metrics),
	)

	hostID := hostid.Short()
	if _, err := hostid.ID(); err != nil {
		log.Warn(fmt.Sprintf(i18n.Get("HostIDUnavailable"), err))
	}

	server := api.NewServer(api.Deps{
		Workflow:       svc,
		History:        store,
		Providers:      coord,
		Metrics:        metrics,
		Logger:         log,
		JWTSecret:      cfg.JWTSecret,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Meta:           api.SystemMeta{Version: buildVersion, Mock: cfg.UseMock, HostID: hostID},
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var (
		hs      *health.Server
		grpcLis net.Listener
	)
	if cfg.GRPCHealthAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			return fmt.Errorf(i18n.Get("GRPCHealthFailed"), err)
		}
		hs = health.New(coord.Providers(), log)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(fmt.Sprintf(i18n.Get("ServerListening"), cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info(i18n.Get("ShuttingDown"))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if hs != nil {
		hs.Watch(ctx, bus)
		g.Go(func() error {
			log.Info(fmt.Sprintf(i18n.Get("GRPCHealthListening"), cfg.GRPCHealthAddr))
			return hs.Serve(grpcLis)
		})
		g.Go(func() error {
			<-ctx.Done()
			hs.Stop()
			return nil
		})
	}

	return g.Wait()
}

// collaborators picks the canned pair in mock mode and the LLM advisor over
// live providers otherwise.
func collaborators(cfg *config.Config, coord *coordinator.Coordinator, log *zap.Logger) (workflow.Advisor, workflow.Fetcher) {
	if cfg.UseMock {
		log.Info(i18n.Get("MockModeEnabled"))
		fx := mock.DefaultFixtures()
		if cfg.MockFixtures != "" {
			loaded, err := mock.LoadFixtures(cfg.MockFixtures)
			if err != nil {
				log.Warn(fmt.Sprintf(i18n.Get("FixturesFailed"), err))
			} else {
				fx = loaded
				log.Info(fmt.Sprintf(i18n.Get("FixturesLoaded"), cfg.MockFixtures))
			}
		}
		return mock.NewAdvisor(fx), mock.NewFetcher(fx)
	}

	if cfg.LLMAPIKey == "" {
		log.Warn(i18n.Get("LLMKeyMissing"))
	}
	client := llm.NewClient(llm.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	}, log)
	log.Info(fmt.Sprintf(i18n.Get("LLMConfigured"), cfg.LLMModel))
	return llm.NewAdvisor(client, log), coord
}
