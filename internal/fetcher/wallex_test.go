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

func newWallexServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Wallex) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewWallex(WallexOptions{BaseURL: srv.URL}, zerolog.Nop())
}

func TestWallexFetchLatestPrice(t *testing.T) {
	var gotQuery string
	_, client := newWallexServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("symbol")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"result":{"latestTrades":[
			{"price":"45500.25","quantity":"0.003","isBuyOrder":true,"timestamp":"2025-06-01T12:00:00Z"},
			{"price":"45499","quantity":"0.010","isBuyOrder":false,"timestamp":"2025-06-01T11:59:58Z"}
		]}}`))
	})

	price, err := client.FetchLatestPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("获取价格失败: %v", err)
	}
	if gotQuery != "BTCUSDT" {
		t.Fatalf("symbol 查询参数不正确: %s", gotQuery)
	}
	if !price.Equal(decimal.NewFromFloat(45500.25)) {
		t.Fatalf("期望最新成交价 45500.25, 实际 %s", price)
	}
}

func TestWallexEmptyTrades(t *testing.T) {
	_, client := newWallexServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"result":{"latestTrades":[]}}`))
	})

	if _, err := client.FetchLatestPrice(context.Background(), "BTCUSDT"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("空成交列表应返回 ErrUnavailable, 实际 %v", err)
	}
}

func TestWallexSuccessFalse(t *testing.T) {
	_, client := newWallexServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"symbol not found"}`))
	})

	if _, err := client.FetchLatestPrice(context.Background(), "NOPEUSDT"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("success=false 应返回 ErrUnavailable, 实际 %v", err)
	}
}

func TestWallexHTTPError(t *testing.T) {
	_, client := newWallexServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if _, err := client.FetchLatestPrice(context.Background(), "BTCUSDT"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("HTTP 503 should map to ErrUnavailable, got %v", err)
	}
}

func TestWallexMalformedBody(t *testing.T) {
	_, client := newWallexServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	if _, err := client.FetchLatestPrice(context.Background(), "BTCUSDT"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("malformed body should map to ErrUnavailable, got %v", err)
	}
}

func TestWallexNonPositivePrice(t *testing.T) {
	_, client := newWallexServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"result":{"latestTrades":[{"price":"0"}]}}`))
	})

	if _, err := client.FetchLatestPrice(context.Background(), "BTCUSDT"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("零价格应返回 ErrUnavailable, 实际 %v", err)
	}
}
