package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"arbwatcher/internal/metrics"
	"arbwatcher/internal/ratelimit"
)

// NobitexOptions parameterise the Nobitex client.
type NobitexOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Budget    *ratelimit.Budget
	Metrics   *metrics.Registry
}

// Nobitex fetches last-trade prices from the Nobitex trade feed.
type Nobitex struct {
	opts    NobitexOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewNobitex constructs a Nobitex fetcher.
func NewNobitex(opts NobitexOptions, logger zerolog.Logger) *Nobitex {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://apiv2.nobitex.ir"
	}

	return &Nobitex{
		opts:    opts,
		logger:  logger.With().Str("component", "nobitex_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Source identifies this fetcher in opportunities and metrics.
func (n *Nobitex) Source() string { return SourceNobitex }

type nobitexTrade struct {
	Time   json.Number     `json:"time"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
	Type   string          `json:"type"`
}

type nobitexTradesResponse struct {
	Status string         `json:"status"`
	Trades []nobitexTrade `json:"trades"`
}

// FetchLatestPrice returns the price of the most recent trade for symbol.
// Every failure mode short of context cancellation maps to ErrUnavailable.
func (n *Nobitex) FetchLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if n.opts.Budget != nil {
		if err := n.opts.Budget.Wait(ctx); err != nil {
			return decimal.Decimal{}, err
		}
	}

	endpoint := fmt.Sprintf("%s/v2/trades/%s", n.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, unavailable("%s", err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(n.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	started := time.Now()
	resp, err := n.client.Do(req)
	elapsed := time.Since(started)
	if err != nil {
		n.opts.Metrics.ObserveRequest(SourceNobitex, false, elapsed)
		n.logger.Warn().Err(err).Str("symbol", symbol).Msg("request failed")
		return decimal.Decimal{}, unavailable("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		n.opts.Metrics.ObserveRequest(SourceNobitex, false, elapsed)
		return decimal.Decimal{}, unavailable("read body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		n.opts.Metrics.ObserveRequest(SourceNobitex, false, elapsed)
		n.logger.Warn().Int("status", resp.StatusCode).Str("symbol", symbol).Msg("non-2xx response")
		return decimal.Decimal{}, unavailable("unexpected status %d", resp.StatusCode)
	}

	var payload nobitexTradesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		n.opts.Metrics.ObserveRequest(SourceNobitex, false, elapsed)
		return decimal.Decimal{}, unavailable("decode body: %v", err)
	}

	if payload.Status != "ok" {
		n.opts.Metrics.ObserveRequest(SourceNobitex, false, elapsed)
		return decimal.Decimal{}, unavailable("api status %q", payload.Status)
	}

	if len(payload.Trades) == 0 {
		n.opts.Metrics.ObserveRequest(SourceNobitex, false, elapsed)
		return decimal.Decimal{}, unavailable("no trades for %s", symbol)
	}

	// Trades are returned newest first.
	price := payload.Trades[0].Price
	if !price.IsPositive() {
		n.opts.Metrics.ObserveRequest(SourceNobitex, false, elapsed)
		return decimal.Decimal{}, unavailable("non-positive price %s for %s", price, symbol)
	}

	n.opts.Metrics.ObserveRequest(SourceNobitex, true, elapsed)
	n.opts.Metrics.SetLastPrice(SourceNobitex, symbol, price.InexactFloat64())
	return price, nil
}

var _ PriceFetcher = (*Nobitex)(nil)
