package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"arbwatcher/internal/metrics"
	"arbwatcher/internal/ratelimit"
)

// WallexOptions parameterise the Wallex client.
type WallexOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Budget    *ratelimit.Budget
	Metrics   *metrics.Registry
}

// Wallex fetches last-trade prices from the Wallex trade feed.
type Wallex struct {
	opts    WallexOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewWallex constructs a Wallex fetcher.
func NewWallex(opts WallexOptions, logger zerolog.Logger) *Wallex {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.wallex.ir"
	}

	return &Wallex{
		opts:    opts,
		logger:  logger.With().Str("component", "wallex_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Source identifies this fetcher in opportunities and metrics.
func (w *Wallex) Source() string { return SourceWallex }

type wallexTrade struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	IsBuyOrder bool            `json:"isBuyOrder"`
	Timestamp  string          `json:"timestamp"`
}

type wallexTradesResponse struct {
	Success bool `json:"success"`
	Result  struct {
		LatestTrades []wallexTrade `json:"latestTrades"`
	} `json:"result"`
	Message string `json:"message"`
}

// FetchLatestPrice returns the price of the most recent trade for symbol.
// Every failure mode short of context cancellation maps to ErrUnavailable.
func (w *Wallex) FetchLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if w.opts.Budget != nil {
		if err := w.opts.Budget.Wait(ctx); err != nil {
			return decimal.Decimal{}, err
		}
	}

	endpoint := w.baseURL + "/v1/trades?symbol=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, unavailable("%s", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(w.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	started := time.Now()
	resp, err := w.client.Do(req)
	elapsed := time.Since(started)
	if err != nil {
		w.opts.Metrics.ObserveRequest(SourceWallex, false, elapsed)
		w.logger.Warn().Err(err).Str("symbol", symbol).Msg("request failed")
		return decimal.Decimal{}, unavailable("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		w.opts.Metrics.ObserveRequest(SourceWallex, false, elapsed)
		return decimal.Decimal{}, unavailable("read body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		w.opts.Metrics.ObserveRequest(SourceWallex, false, elapsed)
		w.logger.Warn().Int("status", resp.StatusCode).Str("symbol", symbol).Msg("non-2xx response")
		return decimal.Decimal{}, unavailable("unexpected status %d", resp.StatusCode)
	}

	var payload wallexTradesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		w.opts.Metrics.ObserveRequest(SourceWallex, false, elapsed)
		return decimal.Decimal{}, unavailable("decode body: %v", err)
	}

	if !payload.Success {
		w.opts.Metrics.ObserveRequest(SourceWallex, false, elapsed)
		return decimal.Decimal{}, unavailable("api success=false: %s", payload.Message)
	}

	trades := payload.Result.LatestTrades
	if len(trades) == 0 {
		w.opts.Metrics.ObserveRequest(SourceWallex, false, elapsed)
		return decimal.Decimal{}, unavailable("no trades for %s", symbol)
	}

	// Trades are returned newest first.
	price := trades[0].Price
	if !price.IsPositive() {
		w.opts.Metrics.ObserveRequest(SourceWallex, false, elapsed)
		return decimal.Decimal{}, unavailable("non-positive price %s for %s", price, symbol)
	}

	w.opts.Metrics.ObserveRequest(SourceWallex, true, elapsed)
	w.opts.Metrics.SetLastPrice(SourceWallex, symbol, price.InexactFloat64())
	return price, nil
}

var _ PriceFetcher = (*Wallex)(nil)
