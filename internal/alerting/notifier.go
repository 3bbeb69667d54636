package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"arbwatcher/internal/detector"
)

// Notifier 定义告警输送接口。
type Notifier interface {
	Send(ctx context.Context, text string) error
	NotifyOpportunity(ctx context.Context, opp detector.Opportunity) error
}

// BaleNotifier 通过 Bale Bot API 推送消息（与 Telegram Bot API 兼容）。
type BaleNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewBaleNotifier 构造 Bale 告警器。
func NewBaleNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *BaleNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://tapi.bale.ai"
	}

	return &BaleNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_bale").Logger(),
	}
}

// Send 调用 sendMessage API 推送文本。
func (n *BaleNotifier) Send(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal bale payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create bale request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send bale request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bale 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("bale 返回 ok=false")
		}
	}

	n.logger.Info().Msg("告警已发送 (Bale)")
	return nil
}

// NotifyOpportunity 渲染并推送一条套利机会告警。
func (n *BaleNotifier) NotifyOpportunity(ctx context.Context, opp detector.Opportunity) error {
	return n.Send(ctx, renderOpportunity(opp))
}

func renderOpportunity(opp detector.Opportunity) string {
	builder := strings.Builder{}
	builder.WriteString("[Arbitrage Opportunity]\n")
	builder.WriteString(fmt.Sprintf("Symbol: %s\n", opp.Symbol))
	builder.WriteString(fmt.Sprintf("Detected: %s UTC\n", opp.DetectedAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Nobitex: %s\n", opp.NobitexPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Wallex: %s\n", opp.WallexPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Profit: %s%% (%s per unit)\n", opp.ProfitPct.StringFixed(2), opp.ProfitAmount.Abs().StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Buy on %s, sell on %s\n", opp.BuyExchange, opp.SellExchange))
	return builder.String()
}

var _ Notifier = (*BaleNotifier)(nil)
