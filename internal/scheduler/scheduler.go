package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per scan period.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	// Period is the spacing between cycle starts.
	Period time.Duration
	// PollInterval bounds how long a stop request can go unnoticed while
	// idle between cycles.
	PollInterval time.Duration
	// StartupDelay postpones the first cycle.
	StartupDelay time.Duration
}

// Scheduler drives periodic execution of scan cycles. Instead of sleeping a
// full period it polls readiness at a fine interval, so shutdown is observed
// within PollInterval rather than Period. At most one cycle is in flight: the
// next tick is only considered after the previous one returns.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Period <= 0 {
		panic("scheduler period must be positive")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick every Period until ctx is cancelled or stop is
// closed. The first cycle fires as soon as the startup delay has passed.
// Stopping never aborts an in-flight tick; it cancels the pending next cycle.
// Returns ctx.Err() on cancellation, nil on a stop request.
func (s *Scheduler) Run(ctx context.Context, stop <-chan struct{}, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-stop:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}

	next := time.Now()
	poll := time.NewTicker(s.opts.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case now := <-poll.C:
			if now.Before(next) {
				continue
			}
		}

		started := time.Now()
		s.logger.Debug().Time("at", started).Msg("executing scheduled cycle")

		if err := tick(ctx, started); err != nil {
			s.logger.Error().Err(err).Time("at", started).Msg("cycle execution failed")
		}

		next = started.Add(s.opts.Period)
	}
}
