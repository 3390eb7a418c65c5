package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"advisor-core/pkg/model"
)

type recorded struct {
	mu   sync.Mutex
	reqs []chatRequest
}

func (r *recorded) all() []chatRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chatRequest(nil), r.reqs...)
}

func fakeCompletions(t *testing.T, reply string, status int) (*Client, *recorded) {
	t.Helper()
	seen := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		seen.mu.Lock()
		seen.reqs = append(seen.reqs, req)
		seen.mu.Unlock()
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": reply}}},
		})
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Timeout: time.Second}, nil), seen
}

func TestParseIntentKeysAndFallbacks(t *testing.T) {
	intent, err := ParseIntent("```json\n" + `{
		"language":"en","focus":"market","products":["BTC-USDT"],
		"marketKeywords":["bitcoin"],"news_keywords":[],"newsKeywords":["ETF"],
		"news_categories":["markets"],"reasoning":null
	}` + "\n```")
	if err != nil {
		t.Fatalf("ParseIntent: %v", err)
	}
	if intent.Language != "en" || intent.Focus != "market" || intent.Reasoning != "" {
		t.Fatalf("unexpected scalars %+v", intent)
	}
	if intent.MarketKeywords[0] != "bitcoin" || intent.NewsKeywords[0] != "ETF" || intent.NewsCategories[0] != "markets" {
		t.Fatalf("unexpected lists %+v", intent)
	}

	intent, err = ParseIntent(`{}`)
	if err != nil {
		t.Fatalf("ParseIntent: %v", err)
	}
	if intent.Language != model.LangUnknown || intent.Focus != model.FocusBoth || intent.Products == nil {
		t.Fatalf("unexpected defaults %+v", intent)
	}
}

func TestExtractFallsBackOnProse(t *testing.T) {
	c, seen := fakeCompletions(t, "I think you mean bitcoin.", http.StatusOK)
	intent, err := NewAdvisor(c, nil).Extract(context.Background(), "BTC?")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if intent.Reasoning != "fallback" || intent.Language != model.LangUnknown {
		t.Fatalf("expected fallback intent, got %+v", intent)
	}
	reqs := seen.all()
	if len(reqs) != 1 || !strings.Contains(reqs[0].Messages[1].Content, "BTC?") || reqs[0].Model != defaultModel {
		t.Fatalf("unexpected request %+v", reqs)
	}
}

func TestExtractReturnsTransportErrors(t *testing.T) {
	c, _ := fakeCompletions(t, "", http.StatusTooManyRequests)
	_, err := NewAdvisor(c, nil).Extract(context.Background(), "BTC?")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSynthesizeUsesContext(t *testing.T) {
	c, seen := fakeCompletions(t, "Hold.", http.StatusOK)
	advice, err := NewAdvisor(c, nil).Synthesize(context.Background(), model.CombinedContext{
		UserText: "BTC outlook?",
		Intent:   &model.Intent{Language: "en", Products: []string{"BTC-USDT"}},
		Markets:  []model.MarketSnapshot{{Symbol: "BTC-USDT", LastPrice: 65000, RSI: 61.5}},
	})
	if err != nil || advice != "Hold." {
		t.Fatalf("Synthesize: %q %v", advice, err)
	}
	req := seen.all()[0]
	if req.Messages[1].Content != "BTC outlook?" {
		t.Fatalf("user message should be the raw question, got %q", req.Messages[1].Content)
	}
	if !strings.Contains(req.Messages[0].Content, "BTC-USDT Last: 65000.00") || !strings.Contains(req.Messages[0].Content, "- No related news") {
		t.Fatalf("system prompt missing context:\n%s", req.Messages[0].Content)
	}
}

func TestRenderAdvicePromptDetails(t *testing.T) {
	ts := time.Date(2025, 11, 1, 1, 0, 0, 0, time.UTC).UnixMilli()
	cc := model.CombinedContext{
		UserText: "比特币怎么样",
		Intent:   &model.Intent{Language: "zh"},
		News:     []model.NewsItem{{Title: "ETF", Source: "wire"}},
		Markets: []model.MarketSnapshot{{
			Symbol: "BTC-USDT",
			Klines: []model.KlinePoint{{StartTime: 1}, {StartTime: ts - 7200000, Close: 1}, {StartTime: ts - 3600000, Close: 2}, {StartTime: ts, Close: 3}},
			OrderBook: &model.OrderBook{
				Bids: []model.OrderBookLevel{{Price: 4, Volume: 1}, {Price: 3}, {Price: 2}, {Price: 1}},
			},
		}},
	}
	out := RenderAdvicePrompt(cc, adviceLanguage(cc.Intent))

	if !strings.Contains(out, "11-01 01:00 收盘 3.00") || strings.Contains(out, "01-01 00:00") {
		t.Fatalf("expected last three klines only:\n%s", out)
	}
	if !strings.Contains(out, "买单: 4.00@1.00, 3.00@0.00, 2.00@0.00\n") {
		t.Fatalf("expected top three bids:\n%s", out)
	}
	if !strings.Contains(out, "卖单: 无") || !strings.Contains(out, "资讯类别: 未知") {
		t.Fatalf("expected zh placeholders:\n%s", out)
	}
	if adviceLanguage(&model.Intent{Language: "unknown"}) != model.LangZH || adviceLanguage(nil) != model.LangZH {
		t.Fatalf("zh should be the default advice language")
	}
}
