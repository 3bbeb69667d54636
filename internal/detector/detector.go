package detector

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"arbwatcher/internal/fetcher"
	"arbwatcher/internal/metrics"
)

// PriceRecorder persists raw price observations. Failures are best-effort.
type PriceRecorder interface {
	InsertPrice(ctx context.Context, symbol, source string, price decimal.Decimal, observedAt time.Time) error
}

// Options parameterise the detector.
type Options struct {
	// Symbols are scanned in the given order each cycle.
	Symbols []string
	// Threshold is a fraction: 0.01 means a 1% spread triggers.
	Threshold float64
}

// Detector runs the per-symbol fetch + spread evaluation across the universe.
type Detector struct {
	nobitex      fetcher.PriceFetcher
	wallex       fetcher.PriceFetcher
	symbols      []string
	thresholdPct decimal.Decimal
	prices       PriceRecorder
	metrics      *metrics.Registry
	logger       zerolog.Logger
	now          func() time.Time
}

// New constructs a Detector. prices and reg may be nil.
func New(opts Options, nobitex, wallex fetcher.PriceFetcher, prices PriceRecorder, reg *metrics.Registry, logger zerolog.Logger) *Detector {
	return &Detector{
		nobitex:      nobitex,
		wallex:       wallex,
		symbols:      opts.Symbols,
		thresholdPct: decimal.NewFromFloat(opts.Threshold).Mul(hundred),
		prices:       prices,
		metrics:      reg,
		logger:       logger.With().Str("component", "detector").Logger(),
		now:          time.Now,
	}
}

// ThresholdPct exposes the configured threshold as a percentage value.
func (d *Detector) ThresholdPct() decimal.Decimal { return d.thresholdPct }

// Symbols returns the configured universe.
func (d *Detector) Symbols() []string { return d.symbols }

// ScanAll walks the configured symbol list in order and returns every
// opportunity found this cycle. A source that is unavailable for a symbol
// skips that symbol only; the scan carries on. The returned error is non-nil
// only when the context is cancelled mid-scan.
func (d *Detector) ScanAll(ctx context.Context) ([]Opportunity, error) {
	opportunities := make([]Opportunity, 0)

	d.logger.Debug().Int("symbols", len(d.symbols)).Msg("scanning universe")

	for _, symbol := range d.symbols {
		select {
		case <-ctx.Done():
			return opportunities, ctx.Err()
		default:
		}

		nobitexPrice, nobitexErr := d.nobitex.FetchLatestPrice(ctx, symbol)
		if nobitexErr != nil && !errors.Is(nobitexErr, fetcher.ErrUnavailable) {
			return opportunities, nobitexErr
		}

		wallexPrice, wallexErr := d.wallex.FetchLatestPrice(ctx, symbol)
		if wallexErr != nil && !errors.Is(wallexErr, fetcher.ErrUnavailable) {
			return opportunities, wallexErr
		}

		observedAt := d.now().UTC()
		d.recordPrice(ctx, symbol, fetcher.SourceNobitex, nobitexPrice, nobitexErr, observedAt)
		d.recordPrice(ctx, symbol, fetcher.SourceWallex, wallexPrice, wallexErr, observedAt)

		if nobitexErr != nil || wallexErr != nil {
			d.logger.Warn().
				Str("symbol", symbol).
				AnErr("nobitex", nobitexErr).
				AnErr("wallex", wallexErr).
				Msg("missing price data, skipping symbol")
			continue
		}

		spreadPct := nobitexPrice.Sub(wallexPrice).Div(wallexPrice).Mul(hundred)
		d.metrics.SetSpread(symbol, spreadPct.InexactFloat64())

		opp, found := Evaluate(symbol, nobitexPrice, wallexPrice, d.thresholdPct, observedAt)
		if !found {
			continue
		}

		d.metrics.RecordOpportunity(opp.Symbol, opp.BuyExchange, opp.SellExchange)
		d.logger.Info().
			Str("symbol", opp.Symbol).
			Str("profit_pct", opp.ProfitPct.StringFixed(6)).
			Str("buy", opp.BuyExchange).
			Str("sell", opp.SellExchange).
			Msg("arbitrage opportunity found")

		opportunities = append(opportunities, opp)
	}

	d.logger.Info().Int("found", len(opportunities)).Msg("scan finished")
	return opportunities, nil
}

func (d *Detector) recordPrice(ctx context.Context, symbol, source string, price decimal.Decimal, fetchErr error, observedAt time.Time) {
	if d.prices == nil || fetchErr != nil {
		return
	}
	if err := d.prices.InsertPrice(ctx, symbol, source, price, observedAt); err != nil {
		d.logger.Error().Err(err).Str("symbol", symbol).Str("source", source).Msg("failed to persist price")
	}
}
