package fetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Source identifiers used across detection, persistence, and metrics.
const (
	SourceNobitex = "nobitex"
	SourceWallex  = "wallex"
)

// ErrUnavailable marks a soft fetch failure: network error, non-2xx status,
// malformed body, or an empty trade feed. Callers skip the symbol for the
// current cycle instead of aborting the scan.
var ErrUnavailable = errors.New("price source unavailable")

// PriceFetcher retrieves the most recent trade price for a symbol.
type PriceFetcher interface {
	Source() string
	FetchLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}
