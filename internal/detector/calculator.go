package detector

import (
	"time"

	"github.com/shopspring/decimal"

	"arbwatcher/internal/fetcher"
)

var hundred = decimal.NewFromInt(100)

// Evaluate computes both trade directions for one symbol and returns an
// opportunity when either spread reaches thresholdPct (inclusive).
//
// Directions are percentages of the buy-side price: buying on Wallex and
// selling on Nobitex profits by (nobitex − wallex)/wallex × 100, and
// symmetrically for the other side. For positive prices the two values have
// opposite signs, so at most one direction can clear a positive threshold;
// the Wallex-buy direction is checked first.
//
// Non-positive prices never produce an opportunity.
func Evaluate(symbol string, nobitexPrice, wallexPrice, thresholdPct decimal.Decimal, detectedAt time.Time) (Opportunity, bool) {
	if !nobitexPrice.IsPositive() || !wallexPrice.IsPositive() {
		return Opportunity{}, false
	}

	buyWallexPct := nobitexPrice.Sub(wallexPrice).Div(wallexPrice).Mul(hundred)
	buyNobitexPct := wallexPrice.Sub(nobitexPrice).Div(nobitexPrice).Mul(hundred)

	opp := Opportunity{
		Symbol:       symbol,
		NobitexPrice: nobitexPrice,
		WallexPrice:  wallexPrice,
		DetectedAt:   detectedAt,
	}

	switch {
	case buyWallexPct.GreaterThanOrEqual(thresholdPct):
		opp.ProfitPct = buyWallexPct
		opp.ProfitAmount = nobitexPrice.Sub(wallexPrice)
		opp.BuyExchange = fetcher.SourceWallex
		opp.SellExchange = fetcher.SourceNobitex
		return opp, true
	case buyNobitexPct.GreaterThanOrEqual(thresholdPct):
		opp.ProfitPct = buyNobitexPct
		opp.ProfitAmount = wallexPrice.Sub(nobitexPrice)
		opp.BuyExchange = fetcher.SourceNobitex
		opp.SellExchange = fetcher.SourceWallex
		return opp, true
	}

	return Opportunity{}, false
}
