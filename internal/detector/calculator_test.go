package detector

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arbwatcher/internal/fetcher"
)

func pct(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestEvaluateZeroSpread(t *testing.T) {
	price := decimal.NewFromInt(100)
	if _, found := Evaluate("BTCUSDT", price, price, pct(1), time.Now()); found {
		t.Fatal("零价差不应触发机会")
	}
}

func TestEvaluateBuyNobitexDirection(t *testing.T) {
	nobitex := decimal.NewFromInt(45000)
	wallex := decimal.NewFromInt(45500)

	opp, found := Evaluate("BTCUSDT", nobitex, wallex, pct(1), time.Now())
	if !found {
		t.Fatal("1.11% 价差应触发 1% 阈值")
	}
	if opp.BuyExchange != fetcher.SourceNobitex || opp.SellExchange != fetcher.SourceWallex {
		t.Fatalf("方向错误: buy=%s sell=%s", opp.BuyExchange, opp.SellExchange)
	}
	if opp.ProfitPct.StringFixed(4) != "1.1111" {
		t.Fatalf("期望收益率 1.1111%%, 实际 %s", opp.ProfitPct.StringFixed(4))
	}
	if !opp.ProfitAmount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("期望单位收益 500, 实际 %s", opp.ProfitAmount.String())
	}
}

func TestEvaluateBuyWallexDirection(t *testing.T) {
	nobitex := decimal.NewFromInt(45500)
	wallex := decimal.NewFromInt(45000)

	opp, found := Evaluate("BTCUSDT", nobitex, wallex, pct(1), time.Now())
	if !found {
		t.Fatal("expected an opportunity in the wallex-buy direction")
	}
	if opp.BuyExchange != fetcher.SourceWallex || opp.SellExchange != fetcher.SourceNobitex {
		t.Fatalf("wrong direction: buy=%s sell=%s", opp.BuyExchange, opp.SellExchange)
	}
	if !opp.ProfitAmount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected unit profit 500, got %s", opp.ProfitAmount.String())
	}
}

func TestEvaluateThresholdBoundaryInclusive(t *testing.T) {
	// wallex = nobitex * (1 + 1%) puts the spread exactly on the threshold.
	nobitex := decimal.NewFromInt(100)
	wallex := decimal.NewFromInt(101)

	opp, found := Evaluate("ETHUSDT", nobitex, wallex, pct(1), time.Now())
	if !found {
		t.Fatal("阈值边界应为闭区间")
	}
	if !opp.ProfitPct.Equal(pct(1)) {
		t.Fatalf("期望收益率恰为阈值 1%%, 实际 %s", opp.ProfitPct.String())
	}
}

func TestEvaluateBelowThreshold(t *testing.T) {
	nobitex := decimal.NewFromInt(100)
	wallex := decimal.NewFromFloat(100.5)

	if _, found := Evaluate("ETHUSDT", nobitex, wallex, pct(1), time.Now()); found {
		t.Fatal("0.5% spread must not clear a 1% threshold")
	}
}

func TestEvaluateInvalidPrices(t *testing.T) {
	valid := decimal.NewFromInt(100)

	cases := []struct {
		name    string
		nobitex decimal.Decimal
		wallex  decimal.Decimal
	}{
		{"zero nobitex", decimal.Zero, valid},
		{"zero wallex", valid, decimal.Zero},
		{"negative nobitex", decimal.NewFromInt(-1), valid},
		{"negative wallex", valid, decimal.NewFromInt(-1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, found := Evaluate("BTCUSDT", tc.nobitex, tc.wallex, pct(0), time.Now()); found {
				t.Fatal("invalid prices must never produce an opportunity")
			}
		})
	}
}

func TestEvaluateDetectedAtPropagates(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	opp, found := Evaluate("BTCUSDT", decimal.NewFromInt(100), decimal.NewFromInt(110), pct(1), at)
	if !found {
		t.Fatal("expected an opportunity")
	}
	if !opp.DetectedAt.Equal(at) {
		t.Fatalf("DetectedAt mismatch: %s", opp.DetectedAt)
	}
}
