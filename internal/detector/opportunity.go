package detector

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity is a directionally-resolved profitable spread between the two
// exchanges for one symbol. It is immutable once created.
type Opportunity struct {
	Symbol       string
	NobitexPrice decimal.Decimal
	WallexPrice  decimal.Decimal
	// ProfitPct is a percentage value: 1.0 means 1%.
	ProfitPct decimal.Decimal
	// ProfitAmount is the absolute price delta in the selling-side quote
	// currency, assuming a unit trade. No sizing logic is applied.
	ProfitAmount decimal.Decimal
	BuyExchange  string
	SellExchange string
	DetectedAt   time.Time
}
