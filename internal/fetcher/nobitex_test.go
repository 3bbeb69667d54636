package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newNobitexServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Nobitex) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewNobitex(NobitexOptions{BaseURL: srv.URL}, zerolog.Nop())
}

func TestNobitexFetchLatestPrice(t *testing.T) {
	var gotPath string
	_, client := newNobitexServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","trades":[
			{"time":1717243200000,"price":"45123.5","volume":"0.01","type":"sell"},
			{"time":1717243199000,"price":"45000","volume":"0.02","type":"buy"}
		]}`))
	})

	price, err := client.FetchLatestPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("获取价格失败: %v", err)
	}
	if gotPath != "/v2/trades/BTCUSDT" {
		t.Fatalf("请求路径不正确: %s", gotPath)
	}
	// The newest trade comes first in the feed.
	if !price.Equal(decimal.NewFromFloat(45123.5)) {
		t.Fatalf("期望最新成交价 45123.5, 实际 %s", price)
	}
}

func TestNobitexEmptyTrades(t *testing.T) {
	_, client := newNobitexServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","trades":[]}`))
	})

	if _, err := client.FetchLatestPrice(context.Background(), "BTCUSDT"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("空成交列表应返回 ErrUnavailable, 实际 %v", err)
	}
}

func TestNobitexFailedStatus(t *testing.T) {
	_, client := newNobitexServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"failed","trades":[]}`))
	})

	if _, err := client.FetchLatestPrice(context.Background(), "BTCUSDT"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("status=failed 应返回 ErrUnavailable, 实际 %v", err)
	}
}

func TestNobitexHTTPError(t *testing.T) {
	_, client := newNobitexServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	if _, err := client.FetchLatestPrice(context.Background(), "BTCUSDT"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("HTTP 429 should map to ErrUnavailable, got %v", err)
	}
}

func TestNobitexMalformedBody(t *testing.T) {
	_, client := newNobitexServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	if _, err := client.FetchLatestPrice(context.Background(), "BTCUSDT"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("malformed body should map to ErrUnavailable, got %v", err)
	}
}

func TestNobitexCancelledContext(t *testing.T) {
	_, client := newNobitexServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","trades":[{"price":"1"}]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchLatestPrice(ctx, "BTCUSDT")
	if err == nil {
		t.Fatal("cancelled context must fail the fetch")
	}
}
