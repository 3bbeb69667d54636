package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"arbwatcher/internal/detector"
	"arbwatcher/internal/fetcher"
)

func testOpportunity() detector.Opportunity {
	return detector.Opportunity{
		Symbol:       "BTCUSDT",
		NobitexPrice: decimal.NewFromInt(45000),
		WallexPrice:  decimal.NewFromInt(45500),
		ProfitPct:    decimal.NewFromFloat(1.1111),
		ProfitAmount: decimal.NewFromInt(500),
		BuyExchange:  fetcher.SourceNobitex,
		SellExchange: fetcher.SourceWallex,
		DetectedAt:   time.Now(),
	}
}

func TestBaleNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewBaleNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.NotifyOpportunity(context.Background(), testOpportunity()); err != nil {
		t.Fatalf("Bale Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if !strings.Contains(received["text"], "BTCUSDT") {
		t.Fatalf("消息应包含交易对: %q", received["text"])
	}
	if !strings.Contains(received["text"], "Buy on nobitex, sell on wallex") {
		t.Fatalf("消息应包含买卖方向: %q", received["text"])
	}
}

func TestBaleNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewBaleNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Send(context.Background(), "test"); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestBaleNotifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewBaleNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Send(context.Background(), "test"); err == nil {
		t.Fatal("HTTP 502 应报错")
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
