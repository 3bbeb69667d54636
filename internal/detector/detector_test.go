package detector

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"arbwatcher/internal/fetcher"
)

type stubFetcher struct {
	source string
	prices map[string]decimal.Decimal
	calls  []string
}

func (s *stubFetcher) Source() string { return s.source }

func (s *stubFetcher) FetchLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.calls = append(s.calls, symbol)
	price, ok := s.prices[symbol]
	if !ok {
		return decimal.Decimal{}, fetcher.ErrUnavailable
	}
	return price, nil
}

type recordedPrice struct {
	symbol string
	source string
	price  decimal.Decimal
}

type stubPriceRecorder struct {
	records []recordedPrice
}

func (s *stubPriceRecorder) InsertPrice(ctx context.Context, symbol, source string, price decimal.Decimal, observedAt time.Time) error {
	s.records = append(s.records, recordedPrice{symbol: symbol, source: source, price: price})
	return nil
}

func newTestDetector(symbols []string, nobitex, wallex *stubFetcher, prices PriceRecorder) *Detector {
	return New(Options{Symbols: symbols, Threshold: 0.01}, nobitex, wallex, prices, nil, zerolog.Nop())
}

func TestScanAllFindsOpportunitiesInOrder(t *testing.T) {
	nobitex := &stubFetcher{source: fetcher.SourceNobitex, prices: map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(45000),
		"ETHUSDT": decimal.NewFromInt(3000),
		"XRPUSDT": decimal.NewFromInt(2),
	}}
	wallex := &stubFetcher{source: fetcher.SourceWallex, prices: map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(45500),
		"ETHUSDT": decimal.NewFromInt(3001), // below threshold
		"XRPUSDT": decimal.NewFromInt(3),
	}}

	det := newTestDetector([]string{"BTCUSDT", "ETHUSDT", "XRPUSDT"}, nobitex, wallex, nil)

	opportunities, err := det.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll 不应失败: %v", err)
	}

	if len(opportunities) != 2 {
		t.Fatalf("期望 2 个机会, 实际 %d", len(opportunities))
	}
	if opportunities[0].Symbol != "BTCUSDT" || opportunities[1].Symbol != "XRPUSDT" {
		t.Fatalf("机会应按符号配置顺序返回: %s, %s", opportunities[0].Symbol, opportunities[1].Symbol)
	}
}

func TestScanAllSkipsUnavailableSource(t *testing.T) {
	nobitex := &stubFetcher{source: fetcher.SourceNobitex, prices: map[string]decimal.Decimal{
		// BTCUSDT intentionally missing: nobitex unavailable for it.
		"ETHUSDT": decimal.NewFromInt(3000),
	}}
	wallex := &stubFetcher{source: fetcher.SourceWallex, prices: map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(45500),
		"ETHUSDT": decimal.NewFromInt(3100),
	}}

	det := newTestDetector([]string{"BTCUSDT", "ETHUSDT"}, nobitex, wallex, nil)

	opportunities, err := det.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("一侧不可用不应中止扫描: %v", err)
	}

	if len(opportunities) != 1 {
		t.Fatalf("期望 1 个机会, 实际 %d", len(opportunities))
	}
	if opportunities[0].Symbol != "ETHUSDT" {
		t.Fatalf("BTCUSDT 应被跳过, 实际返回 %s", opportunities[0].Symbol)
	}
	if len(wallex.calls) != 2 {
		t.Fatalf("扫描应继续处理剩余符号, wallex 调用数 %d", len(wallex.calls))
	}
}

func TestScanAllPersistsPrices(t *testing.T) {
	nobitex := &stubFetcher{source: fetcher.SourceNobitex, prices: map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(45000),
	}}
	wallex := &stubFetcher{source: fetcher.SourceWallex, prices: map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(45010),
	}}
	recorder := &stubPriceRecorder{}

	det := newTestDetector([]string{"BTCUSDT"}, nobitex, wallex, recorder)

	if _, err := det.ScanAll(context.Background()); err != nil {
		t.Fatalf("ScanAll failed: %v", err)
	}

	if len(recorder.records) != 2 {
		t.Fatalf("expected both prices persisted, got %d", len(recorder.records))
	}
	if recorder.records[0].source != fetcher.SourceNobitex || recorder.records[1].source != fetcher.SourceWallex {
		t.Fatalf("unexpected sources: %s, %s", recorder.records[0].source, recorder.records[1].source)
	}
}

func TestScanAllStopsOnCancelledContext(t *testing.T) {
	nobitex := &stubFetcher{source: fetcher.SourceNobitex, prices: map[string]decimal.Decimal{}}
	wallex := &stubFetcher{source: fetcher.SourceWallex, prices: map[string]decimal.Decimal{}}

	det := newTestDetector([]string{"BTCUSDT", "ETHUSDT"}, nobitex, wallex, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := det.ScanAll(ctx); err == nil {
		t.Fatal("cancelled context must surface an error")
	}
	if len(nobitex.calls) != 0 {
		t.Fatalf("no fetches should happen after cancellation, got %d", len(nobitex.calls))
	}
}
