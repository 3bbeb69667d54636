package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"arbwatcher/internal/storage"
)

// Show prints recent arbitrage detections.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show opportunities")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var records []storage.OpportunityRecord
	if opts.Symbol != "" {
		records, err = store.ListOpportunitiesBySymbol(ctx, opts.Symbol, opts.Limit)
	} else {
		records, err = store.ListRecentOpportunities(ctx, opts.Limit)
	}
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no opportunities found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Detected (UTC)\tSymbol\tNobitex\tWallex\tProfit%\tAmount\tBuy\tSell")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.DetectedAt.UTC().Format(time.RFC3339),
			rec.Symbol,
			rec.NobitexPrice.StringFixed(2),
			rec.WallexPrice.StringFixed(2),
			rec.ProfitPct.StringFixed(4),
			rec.ProfitAmount.Abs().StringFixed(2),
			rec.BuyExchange,
			rec.SellExchange,
		)
	}

	writer.Flush()
	return nil
}
