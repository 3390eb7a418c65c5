// Package model holds the data shapes that flow through the advice pipeline.
package model

import "strings"

// Language tags produced by intent extraction.
const (
	LangZH      = "zh"
	LangEN      = "en"
	LangUnknown = "unknown"
)

// Focus values produced by intent extraction.
const (
	FocusMarket = "market"
	FocusNews   = "news"
	FocusBoth   = "both"
)

// Intent is the structured reading of a user's question.
// It is produced once per request and treated as read-only afterwards.
type Intent struct {
	Language       string   `json:"language"`
	Focus          string   `json:"focus"`
	Products       []string `json:"products"`
	MarketKeywords []string `json:"market_keywords"`
	NewsKeywords   []string `json:"news_keywords"`
	NewsCategories []string `json:"news_categories"`
	Reasoning      string   `json:"reasoning"`
}

// FallbackIntent is used when the extractor output cannot be understood.
func FallbackIntent() *Intent {
	return &Intent{
		Language:       LangUnknown,
		Focus:          FocusBoth,
		Products:       []string{},
		MarketKeywords: []string{},
		NewsKeywords:   []string{},
		NewsCategories: []string{},
		Reasoning:      "fallback",
	}
}

// IsChinese reports whether the intent was tagged as Chinese.
func (i *Intent) IsChinese() bool {
	return i != nil && strings.EqualFold(strings.TrimSpace(i.Language), LangZH)
}

// NewsItem is one search-result row from the news provider.
type NewsItem struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	Summary     string `json:"summary"`
	PublishedAt string `json:"published_at"`
}

// KlinePoint is a single candle. StartTime is epoch milliseconds (0 when unknown).
type KlinePoint struct {
	StartTime int64   `json:"start_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// OrderBookLevel is one price level.
type OrderBookLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// OrderBook keeps bids (descending) and asks (ascending) as sent upstream.
type OrderBook struct {
	Bids []OrderBookLevel `json:"bids"`
	Asks []OrderBookLevel `json:"asks"`
}

// MarketSnapshot aggregates ticker, klines and depth for one symbol.
type MarketSnapshot struct {
	Symbol        string       `json:"symbol"`
	LastPrice     float64      `json:"last_price"`
	High24h       float64      `json:"high24h"`
	Low24h        float64      `json:"low24h"`
	Volume24h     float64      `json:"volume24h"`
	ChangePercent float64      `json:"change_percent"`
	RSI           float64      `json:"rsi"`
	Klines        []KlinePoint `json:"klines"`
	OrderBook     *OrderBook   `json:"order_book"`
}

// CombinedContext is everything the advisor sees when writing the final answer.
type CombinedContext struct {
	ChatID   string           `json:"chat_id"`
	UserText string           `json:"user_text"`
	Intent   *Intent          `json:"intent"`
	News     []NewsItem       `json:"news"`
	Markets  []MarketSnapshot `json:"markets"`
}

// ChatRequest is the inbound question. Content wins over Message when both are set.
type ChatRequest struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
	Message string `json:"message"`
}

// UserText resolves the question text.
func (r ChatRequest) UserText() string {
	if strings.TrimSpace(r.Content) != "" {
		return r.Content
	}
	return r.Message
}
