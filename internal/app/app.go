package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"arbwatcher/internal/alerting"
	"arbwatcher/internal/config"
	"arbwatcher/internal/detector"
	"arbwatcher/internal/fetcher"
	"arbwatcher/internal/metrics"
	"arbwatcher/internal/ratelimit"
	"arbwatcher/internal/scheduler"
	"arbwatcher/internal/service"
	"arbwatcher/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetchers(reg *metrics.Registry) (fetcher.PriceFetcher, fetcher.PriceFetcher) {
	nobitexBudget := ratelimit.New(ratelimit.Options{
		MaxPerWindow: a.Config.Nobitex.MaxPerWindow,
		Window:       a.Config.Nobitex.Window,
		MinSpacing:   a.Config.Nobitex.MinSpacing,
	}, a.Logger.With().Str("source", fetcher.SourceNobitex).Logger())

	wallexBudget := ratelimit.New(ratelimit.Options{
		MaxPerWindow: a.Config.Wallex.MaxPerWindow,
		Window:       a.Config.Wallex.Window,
		MinSpacing:   a.Config.Wallex.MinSpacing,
	}, a.Logger.With().Str("source", fetcher.SourceWallex).Logger())

	nobitex := fetcher.NewNobitex(fetcher.NobitexOptions{
		BaseURL:   a.Config.Nobitex.BaseURL,
		Timeout:   a.Config.Nobitex.RequestTimeout,
		UserAgent: a.Config.Nobitex.UserAgent,
		Budget:    nobitexBudget,
		Metrics:   reg,
	}, a.Logger)

	wallex := fetcher.NewWallex(fetcher.WallexOptions{
		BaseURL:   a.Config.Wallex.BaseURL,
		Timeout:   a.Config.Wallex.RequestTimeout,
		UserAgent: a.Config.Wallex.UserAgent,
		Budget:    wallexBudget,
		Metrics:   reg,
	}, a.Logger)

	return nobitex, wallex
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Bale.Enabled {
		cfg := a.Config.Alerting.Bale
		return alerting.NewBaleNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.RequestTimeout, a.Logger)
	}
	return nil
}

func (a *App) newMetrics() *metrics.Registry {
	if !a.Config.Metrics.Enabled {
		return nil
	}
	return metrics.NewRegistry()
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// newService wires the full scan pipeline. store may be nil.
func (a *App) newService(sched *scheduler.Scheduler, store *storage.Store, reg *metrics.Registry) *service.Service {
	nobitex, wallex := a.newFetchers(reg)

	var prices detector.PriceRecorder
	var oppStore storage.OpportunityStore
	var locker storage.AdvisoryLocker
	if store != nil {
		prices = store
		oppStore = store
		locker = store
	}

	det := detector.New(detector.Options{
		Symbols:   a.Config.Arbitrage.Symbols,
		Threshold: a.Config.Arbitrage.Threshold,
	}, nobitex, wallex, prices, reg, a.Logger)

	gate := alerting.NewGate(a.Config.Alerting.Cooldown)
	notifier := a.newNotifier()

	return service.New(a.Config, sched, det, gate, notifier, oppStore, locker, reg, a.Logger)
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	reg := a.newMetrics()
	if reg != nil {
		srv := metrics.NewServer(a.Config.Metrics.ListenAddr, reg, a.Logger)
		srv.Start()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sched := scheduler.New(scheduler.Options{
		Period:       a.Config.Scheduler.Interval,
		PollInterval: a.Config.Scheduler.PollInterval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := a.newService(sched, store, reg)

	a.Logger.Info().Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting price history.
type ExportOptions struct {
	Symbol    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Symbol string
	Limit  int
}
