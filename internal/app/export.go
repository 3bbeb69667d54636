package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"arbwatcher/internal/fetcher"
	"arbwatcher/internal/storage"
)

// pricePair is one moment where both sources were observed for the symbol.
type pricePair struct {
	At        time.Time
	Nobitex   decimal.Decimal
	Wallex    decimal.Decimal
	SpreadPct decimal.Decimal
}

// Export renders price history for one symbol as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Symbol == "" {
		return errors.New("--symbol is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	prices, err := store.ListPricesBetween(ctx, opts.Symbol, from, to)
	if err != nil {
		return err
	}

	pairs := pairPrices(prices)
	if len(pairs) == 0 {
		a.Logger.Info().Str("symbol", opts.Symbol).Msg("no paired observations found for export window")
		return nil
	}

	downsampled := downsamplePairs(pairs, opts.MaxPoints)
	a.Logger.Info().Int("total", len(pairs)).Int("exported", len(downsampled)).Msg("exporting price history")

	if opts.CSVPath != "" {
		if err := writePairsCSV(opts.CSVPath, opts.Symbol, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writePairsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

var exportHundred = decimal.NewFromInt(100)

// pairPrices joins per-source rows on their observation timestamp. Both
// sources are written with the same observed_at inside one cycle, so exact
// equality is the join key; moments where only one source answered are left
// out.
func pairPrices(prices []storage.PriceRecord) []pricePair {
	byMoment := make(map[time.Time]*pricePair)
	order := make([]time.Time, 0)

	for _, rec := range prices {
		at := rec.ObservedAt.UTC()
		pair, ok := byMoment[at]
		if !ok {
			pair = &pricePair{At: at}
			byMoment[at] = pair
			order = append(order, at)
		}
		switch rec.Source {
		case fetcher.SourceNobitex:
			pair.Nobitex = rec.Price
		case fetcher.SourceWallex:
			pair.Wallex = rec.Price
		}
	}

	pairs := make([]pricePair, 0, len(order))
	for _, at := range order {
		pair := byMoment[at]
		if !pair.Nobitex.IsPositive() || !pair.Wallex.IsPositive() {
			continue
		}
		pair.SpreadPct = pair.Nobitex.Sub(pair.Wallex).Div(pair.Wallex).Mul(exportHundred)
		pairs = append(pairs, *pair)
	}
	return pairs
}

func downsamplePairs(pairs []pricePair, max int) []pricePair {
	if max <= 0 || len(pairs) <= max {
		return pairs
	}

	result := make([]pricePair, 0, max)
	step := float64(len(pairs)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(pairs) {
			idx = len(pairs) - 1
		}
		result = append(result, pairs[idx])
	}
	return result
}

func writePairsCSV(path, symbol string, pairs []pricePair) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"observed_at", "symbol", "nobitex_price", "wallex_price", "spread_pct"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, pair := range pairs {
		record := []string{
			pair.At.Format(time.RFC3339),
			symbol,
			pair.Nobitex.String(),
			pair.Wallex.String(),
			pair.SpreadPct.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writePairsPNG(path string, pairs []pricePair) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(pairs))
	nobitex := make([]float64, len(pairs))
	wallex := make([]float64, len(pairs))
	spread := make([]float64, len(pairs))

	for i, pair := range pairs {
		x[i] = pair.At
		nobitex[i] = pair.Nobitex.InexactFloat64()
		wallex[i] = pair.Wallex.InexactFloat64()
		spread[i] = pair.SpreadPct.InexactFloat64()
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: valueFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Spread (%)",
			ValueFormatter: valueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Nobitex",
				XValues: x,
				YValues: nobitex,
			},
			chart.TimeSeries{
				Name:    "Wallex",
				XValues: x,
				YValues: wallex,
			},
			chart.TimeSeries{
				Name:    "Spread %",
				XValues: x,
				YValues: spread,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
