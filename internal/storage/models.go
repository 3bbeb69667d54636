package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityRecord is a persisted arbitrage detection.
type OpportunityRecord struct {
	ID           int64
	Symbol       string
	NobitexPrice decimal.Decimal
	WallexPrice  decimal.Decimal
	ProfitPct    decimal.Decimal
	ProfitAmount decimal.Decimal
	BuyExchange  string
	SellExchange string
	DetectedAt   time.Time
	CreatedAt    time.Time
}

// PriceRecord is a single raw price observation from one exchange.
type PriceRecord struct {
	ID         int64
	Symbol     string
	Source     string
	Price      decimal.Decimal
	ObservedAt time.Time
	CreatedAt  time.Time
}
