package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"arbwatcher/internal/alerting"
	"arbwatcher/internal/detector"
	"arbwatcher/internal/fetcher"
	"arbwatcher/internal/service"
)

// SimulateAlert 使用给定的两侧价格模拟一次完整的检测与告警流程。
func (a *App) SimulateAlert(ctx context.Context, symbol string, nobitexPrice, wallexPrice decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	det := detector.New(detector.Options{
		Symbols:   []string{symbol},
		Threshold: a.Config.Arbitrage.Threshold,
	},
		&staticFetcher{source: fetcher.SourceNobitex, price: nobitexPrice},
		&staticFetcher{source: fetcher.SourceWallex, price: wallexPrice},
		nil, nil, a.Logger)

	gate := alerting.NewGate(a.Config.Alerting.Cooldown)
	svc := service.New(a.Config, nil, det, gate, notifier, nil, nil, nil, a.Logger)

	return svc.RunCycle(ctx, time.Now().UTC())
}

type staticFetcher struct {
	source string
	price  decimal.Decimal
}

func (s *staticFetcher) Source() string { return s.source }

func (s *staticFetcher) FetchLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.price, nil
}

var _ fetcher.PriceFetcher = (*staticFetcher)(nil)
