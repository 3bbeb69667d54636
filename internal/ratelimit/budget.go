package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Options parameterise a request budget.
type Options struct {
	// MaxPerWindow caps admissions inside a single fixed window.
	MaxPerWindow int
	// Window is the length of the fixed budget window.
	Window time.Duration
	// MinSpacing is the minimum gap between consecutive admissions,
	// enforced independently of the window budget. Zero disables it.
	MinSpacing time.Duration
}

// Budget enforces a per-source request quota by blocking callers.
//
// Two independent constraints apply on every Wait: no more than MaxPerWindow
// admissions per Window (an exhausted budget suspends the caller until the
// window has elapsed since its start, then resets), and MinSpacing between
// consecutive admissions. State is owned by a single caller goroutine; the
// budget is not safe for concurrent use.
type Budget struct {
	opts    Options
	logger  zerolog.Logger
	spacing *rate.Limiter

	windowStart time.Time
	inWindow    int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a Budget.
func New(opts Options, logger zerolog.Logger) *Budget {
	b := &Budget{
		opts:   opts,
		logger: logger.With().Str("component", "rate_budget").Logger(),
		now:    time.Now,
		sleep:  sleepContext,
	}
	if opts.MinSpacing > 0 {
		b.spacing = rate.NewLimiter(rate.Every(opts.MinSpacing), 1)
	}
	return b
}

// Wait blocks until one request is admitted or the context is cancelled.
// The window counter is only consumed on admission, so a cancelled wait
// never loses budget.
func (b *Budget) Wait(ctx context.Context) error {
	now := b.now()

	if b.windowStart.IsZero() || now.Sub(b.windowStart) >= b.opts.Window {
		b.windowStart = now
		b.inWindow = 0
	}

	if b.inWindow >= b.opts.MaxPerWindow {
		waitFor := b.opts.Window - now.Sub(b.windowStart)
		if waitFor > 0 {
			b.logger.Info().Dur("wait", waitFor).Msg("request budget exhausted, waiting for window reset")
			if err := b.sleep(ctx, waitFor); err != nil {
				return err
			}
		}
		b.windowStart = b.now()
		b.inWindow = 0
	}

	if b.spacing != nil {
		if err := b.spacing.Wait(ctx); err != nil {
			return err
		}
	}

	b.inWindow++
	return nil
}

// Remaining reports how many admissions are left in the current window.
func (b *Budget) Remaining() int {
	if b.windowStart.IsZero() || b.now().Sub(b.windowStart) >= b.opts.Window {
		return b.opts.MaxPerWindow
	}
	left := b.opts.MaxPerWindow - b.inWindow
	if left < 0 {
		return 0
	}
	return left
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
