package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"advisor-core/internal/coordinator"
	"advisor-core/internal/events"
	"advisor-core/internal/mock"
	"advisor-core/pkg/model"
	"advisor-core/pkg/streamclient"
)

type run struct {
	kinds   []events.Kind
	payload map[events.Kind]json.RawMessage
	errMsg  string
}

func ask(t testing.TB, s *stack, chatID, text string) (run, error) {
	t.Helper()
	r := run{payload: map[events.Kind]json.RawMessage{}}
	client := streamclient.New(s.url, 10*time.Second)
	err := client.Chat(context.Background(), "/ai/workflow/chat", model.ChatRequest{ChatID: chatID, Content: text}, func(ev events.StageEvent) error {
		r.kinds = append(r.kinds, ev.Kind)
		if raw, ok := ev.Data.(json.RawMessage); ok {
			r.payload[ev.Kind] = raw
		}
		if ev.Kind == events.KindError {
			r.errMsg = streamclient.ErrorMessage(ev)
		}
		return nil
	})
	return r, err
}

// TestFullWorkflow drives one question through HTTP, the pipeline, both
// providers and the history store.
func TestFullWorkflow(t *testing.T) {
	u := startUpstreams(t, &upstreams{})
	s := startStack(t, u, 2*time.Second, nil)

	r, err := ask(t, s, "it-1", "How is BTC looking today?")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if got := fmt.Sprint(r.kinds); got != "[extract news market final done sentinel]" {
		t.Fatalf("unexpected sequence %s", got)
	}

	t.Run("News", func(t *testing.T) {
		var items []model.NewsItem
		json.Unmarshal(r.payload[events.KindNews], &items)
		if len(items) != 1 || items[0].Title != "Spot ETF inflows" {
			t.Errorf("unexpected news %+v", items)
		}
	})

	t.Run("Market", func(t *testing.T) {
		var snaps []model.MarketSnapshot
		json.Unmarshal(r.payload[events.KindMarket], &snaps)
		if len(snaps) != 1 {
			t.Fatalf("expected one snapshot, got %d", len(snaps))
		}
		snap := snaps[0]
		if snap.Symbol != "BTC-USDT" || snap.LastPrice != 65000.5 || len(snap.Klines) != 30 {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if snap.RSI <= 50 || snap.RSI >= 100 {
			t.Errorf("rising series with pullbacks should give RSI in (50,100), got %v", snap.RSI)
		}
		if snap.Klines[0].StartTime != 1761955200000 {
			t.Errorf("second timestamps should be normalized to ms, got %d", snap.Klines[0].StartTime)
		}
		if snap.OrderBook == nil || len(snap.OrderBook.Bids) != 2 || len(snap.OrderBook.Asks) != 1 {
			t.Errorf("unexpected order book %+v", snap.OrderBook)
		}
	})

	t.Run("Final", func(t *testing.T) {
		if string(r.payload[events.KindFinal]) != `"Accumulate on dips."` {
			t.Errorf("unexpected final %s", r.payload[events.KindFinal])
		}
	})

	t.Run("History", func(t *testing.T) {
		msgs, err := s.store.Messages(context.Background(), "it-1")
		if err != nil || len(msgs) != 2 || msgs[1].Content != "Accumulate on dips." {
			t.Errorf("unexpected history %+v %v", msgs, err)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		snap := s.metrics.GetSnapshot()
		if snap.WorkflowsStarted != 1 || snap.WorkflowsFailed != 0 || snap.NewsItems != 1 || snap.Snapshots != 1 {
			t.Errorf("unexpected metrics %+v", snap)
		}
	})
}

// TestNewsOutageTripsBreakerOnce checks that a transport failure disables
// news for good while market data keeps flowing.
func TestNewsOutageTripsBreakerOnce(t *testing.T) {
	u := startUpstreams(t, &upstreams{newsDown: true})
	s := startStack(t, u, 2*time.Second, nil)

	r, err := ask(t, s, "it-2", "BTC?")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if string(r.payload[events.KindNews]) != "[]" {
		t.Fatalf("expected empty news, got %s", r.payload[events.KindNews])
	}
	var snaps []model.MarketSnapshot
	json.Unmarshal(r.payload[events.KindMarket], &snaps)
	if len(snaps) != 1 {
		t.Fatalf("market should be unaffected, got %d snapshots", len(snaps))
	}
	if s.coord.NewsBreaker().Enabled() || !s.coord.MarketBreaker().Enabled() {
		t.Fatalf("unexpected breaker state %+v", s.coord.Providers())
	}

	hits := u.newsHits.Load()
	if _, err := ask(t, s, "it-2", "BTC again?"); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if u.newsHits.Load() != hits {
		t.Errorf("tripped provider must not be called again")
	}

	eventually(t, "news NOT_SERVING", func() bool {
		st, _ := s.health.Check(context.Background(), coordinator.ProviderNews)
		return st == healthpb.HealthCheckResponse_NOT_SERVING
	})
	eventually(t, "breaker trip counted", func() bool {
		return s.metrics.GetSnapshot().BreakerTrips == 1
	})
}

// TestHighLatencyNewsTimesOut treats an upstream slower than the client
// timeout as a transport failure.
func TestHighLatencyNewsTimesOut(t *testing.T) {
	u := startUpstreams(t, &upstreams{newsDelay: time.Second})
	s := startStack(t, u, 150*time.Millisecond, nil)

	start := time.Now()
	r, err := ask(t, s, "", "BTC?")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("run should not wait for the slow provider, took %v", elapsed)
	}
	if string(r.payload[events.KindNews]) != "[]" || s.coord.NewsBreaker().Enabled() {
		t.Errorf("timeout should empty news and trip the breaker")
	}
}

type brokenAdvisor struct{ *mock.Advisor }

func (brokenAdvisor) Synthesize(context.Context, model.CombinedContext) (string, error) {
	return "", errors.New("model quota exhausted")
}

// TestAdvisorFailureEndsWithError checks the error path end to end.
func TestNonFinitePriceTripsMarketBreaker(t *testing.T) {
	u := startUpstreams(t, &upstreams{lastPrice: "NaN"})
	s := startStack(t, u, 2*time.Second, nil)

	r, err := ask(t, s, "it-4", "BTC?")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if got := fmt.Sprint(r.kinds); got != "[extract news market final done sentinel]" {
		t.Fatalf("unexpected sequence %s", got)
	}
	if string(r.payload[events.KindMarket]) != "[]" {
		t.Errorf("expected empty market stage, got %s", r.payload[events.KindMarket])
	}
	if s.coord.MarketBreaker().Enabled() {
		t.Errorf("an undecodable ticker should disable the market provider")
	}
}

func TestAdvisorFailureEndsWithError(t *testing.T) {
	u := startUpstreams(t, &upstreams{})
	s := startStack(t, u, 2*time.Second, brokenAdvisor{mock.NewAdvisor(mock.Fixtures{})})

	r, err := ask(t, s, "it-3", "BTC?")
	if err != nil {
		t.Fatalf("error streams end cleanly, got %v", err)
	}
	if got := fmt.Sprint(r.kinds); got != "[extract news market error]" {
		t.Fatalf("unexpected sequence %s", got)
	}
	if r.errMsg != "model quota exhausted" {
		t.Errorf("unexpected error message %q", r.errMsg)
	}

	msgs, _ := s.store.Messages(context.Background(), "it-3")
	if len(msgs) != 1 {
		t.Errorf("only the user turn should be stored, got %+v", msgs)
	}
	eventually(t, "failure counted", func() bool {
		return s.metrics.GetSnapshot().WorkflowsFailed == 1
	})
}
