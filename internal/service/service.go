package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"arbwatcher/internal/alerting"
	"arbwatcher/internal/config"
	"arbwatcher/internal/detector"
	"arbwatcher/internal/metrics"
	"arbwatcher/internal/scheduler"
	"arbwatcher/internal/storage"
)

// State models the service lifecycle.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

// String renders the state for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats accumulates over the service lifetime; reset only on restart.
type Stats struct {
	ScanCount          int64
	TotalOpportunities int64
	LastScanAt         time.Time
	StartedAt          time.Time
}

// Service orchestrates scan cycles: detection, cooldown gating, alert
// dispatch, and persistence.
type Service struct {
	scheduler *scheduler.Scheduler
	detector  *detector.Detector
	gate      *alerting.Gate
	notifier  alerting.Notifier
	store     storage.OpportunityStore
	locker    storage.AdvisoryLocker
	metrics   *metrics.Registry
	logger    zerolog.Logger

	alertsOn bool
	lockKey  int64

	mu       sync.Mutex
	state    State
	stats    Stats
	stopCh   chan struct{}
	stopOnce sync.Once

	now func() time.Time
}

// New constructs the arbitrage monitoring service. notifier, store, and
// locker may be nil when the corresponding collaborator is not configured.
func New(cfg *config.Config, sched *scheduler.Scheduler, det *detector.Detector, gate *alerting.Gate, notifier alerting.Notifier, store storage.OpportunityStore, locker storage.AdvisoryLocker, reg *metrics.Registry, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		detector:  det,
		gate:      gate,
		notifier:  notifier,
		store:     store,
		locker:    locker,
		metrics:   reg,
		logger:    logger.With().Str("component", "service").Logger(),
		alertsOn:  cfg.Alerting.Enabled,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
		state:     StateIdle,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// State reports the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of cumulative statistics.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run transitions Idle→Running and blocks, executing scan cycles until the
// context is cancelled or Stop is called. It can be invoked once per Service.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}

	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("service cannot start from state %s", state)
	}
	s.state = StateRunning
	s.stats.StartedAt = s.now()
	s.mu.Unlock()

	s.logger.Info().
		Int("symbols", len(s.detector.Symbols())).
		Str("threshold_pct", s.detector.ThresholdPct().String()).
		Msg("starting arbitrage monitoring")

	s.sendBestEffort(ctx, s.renderStartup())

	err := s.scheduler.Run(ctx, s.stopCh, s.RunCycle)

	s.mu.Lock()
	s.state = StateStopped
	stats := s.stats
	s.mu.Unlock()

	s.logger.Info().
		Int64("scans", stats.ScanCount).
		Int64("opportunities", stats.TotalOpportunities).
		Str("uptime", formatUptime(s.now().Sub(stats.StartedAt))).
		Msg("arbitrage monitoring stopped")

	// Shutdown notice goes out on a fresh context; the run context is
	// typically already cancelled at this point.
	notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.sendBestEffort(notifyCtx, s.renderShutdown(stats))

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Stop requests a graceful shutdown. The pending next cycle is cancelled; an
// in-flight cycle is allowed to finish. Safe to call from any goroutine and
// idempotent: stopping an already-stopped service is a no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateStopping
	}
	s.mu.Unlock()

	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// RunCycle executes a single scan cycle: scan, then gate + dispatch each
// opportunity. Exported so one-shot CLI commands can reuse the exact cycle
// path without the scheduler.
func (s *Service) RunCycle(ctx context.Context, at time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("at", at).Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	opportunities, scanErr := s.detector.ScanAll(ctx)
	if scanErr != nil && !errors.Is(scanErr, context.Canceled) {
		s.reportCycleError(ctx, scanErr)
	}

	notified := 0
	for _, opp := range opportunities {
		if s.dispatch(ctx, opp) {
			notified++
		}
	}

	s.mu.Lock()
	s.stats.ScanCount++
	s.stats.TotalOpportunities += int64(len(opportunities))
	s.stats.LastScanAt = at
	stats := s.stats
	s.mu.Unlock()

	s.metrics.IncScans()
	if !stats.StartedAt.IsZero() {
		s.metrics.SetUptime(s.now().Sub(stats.StartedAt))
	}

	s.logger.Info().
		Int64("scan", stats.ScanCount).
		Int("opportunities", len(opportunities)).
		Int("notified", notified).
		Msg("scan cycle completed")

	if stats.ScanCount%10 == 0 {
		s.logger.Info().
			Str("uptime", formatUptime(s.now().Sub(stats.StartedAt))).
			Int64("scans", stats.ScanCount).
			Int64("total_opportunities", stats.TotalOpportunities).
			Msg("periodic statistics")
	}

	return scanErr
}

// dispatch persists one opportunity and, when the cooldown admits it, sends
// the alert. The cooldown is only consumed after a confirmed send, so a
// failed dispatch leaves the next cycle free to retry.
func (s *Service) dispatch(ctx context.Context, opp detector.Opportunity) bool {
	if s.store != nil {
		record := storage.OpportunityRecord{
			Symbol:       opp.Symbol,
			NobitexPrice: opp.NobitexPrice,
			WallexPrice:  opp.WallexPrice,
			ProfitPct:    opp.ProfitPct,
			ProfitAmount: opp.ProfitAmount,
			BuyExchange:  opp.BuyExchange,
			SellExchange: opp.SellExchange,
			DetectedAt:   opp.DetectedAt,
		}
		if _, err := s.store.InsertOpportunity(ctx, record); err != nil {
			s.logger.Error().Err(err).Str("symbol", opp.Symbol).Msg("failed to persist opportunity")
		}
	}

	if !s.alertsOn || s.notifier == nil {
		return false
	}

	if !s.gate.Admit(opp.Symbol) {
		s.logger.Info().Str("symbol", opp.Symbol).Msg("notification cooldown active, skipping alert")
		return false
	}

	if err := s.notifier.NotifyOpportunity(ctx, opp); err != nil {
		s.logger.Error().Err(err).Str("symbol", opp.Symbol).Msg("failed to dispatch alert")
		return false
	}

	s.gate.MarkNotified(opp.Symbol)
	s.logger.Info().Str("symbol", opp.Symbol).Msg("alert dispatched")
	return true
}

func (s *Service) reportCycleError(ctx context.Context, cycleErr error) {
	s.logger.Error().Err(cycleErr).Msg("scan cycle failed")
	s.sendBestEffort(ctx, fmt.Sprintf("[Arbwatcher Error]\nScan cycle failed: %v", cycleErr))
}

func (s *Service) sendBestEffort(ctx context.Context, text string) {
	if !s.alertsOn || s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, text); err != nil {
		s.logger.Warn().Err(err).Msg("failed to send service notification")
	}
}

func (s *Service) renderStartup() string {
	builder := strings.Builder{}
	builder.WriteString("[Arbwatcher Started]\n")
	builder.WriteString(fmt.Sprintf("Start time: %s UTC\n", s.now().UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Trading pairs: %d\n", len(s.detector.Symbols())))
	builder.WriteString(fmt.Sprintf("Threshold: %s%%\n", s.detector.ThresholdPct().String()))
	builder.WriteString(fmt.Sprintf("Cooldown: %s\n", s.gate.Cooldown()))
	return builder.String()
}

func (s *Service) renderShutdown(stats Stats) string {
	builder := strings.Builder{}
	builder.WriteString("[Arbwatcher Stopped]\n")
	builder.WriteString(fmt.Sprintf("Stop time: %s UTC\n", s.now().UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Uptime: %s\n", formatUptime(s.now().Sub(stats.StartedAt))))
	builder.WriteString(fmt.Sprintf("Total scans: %d\n", stats.ScanCount))
	builder.WriteString(fmt.Sprintf("Total opportunities: %d\n", stats.TotalOpportunities))
	return builder.String()
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
