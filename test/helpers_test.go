package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"advisor-core/internal/api"
	"advisor-core/internal/coordinator"
	"advisor-core/internal/events"
	"advisor-core/internal/health"
	"advisor-core/internal/history"
	"advisor-core/internal/mock"
	"advisor-core/internal/monitor"
	"advisor-core/internal/workflow"
	"advisor-core/pkg/db"
	"advisor-core/pkg/upstream/market"
	"advisor-core/pkg/upstream/news"
)

// upstreams fakes the news and market providers and counts every call.
type upstreams struct {
	newsHits   atomic.Int64
	tickerHits atomic.Int64
	newsDown   bool
	newsDelay  time.Duration
	lastPrice  string
	srv        *httptest.Server
}

func startUpstreams(t testing.TB, u *upstreams) *upstreams {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/news/search", func(w http.ResponseWriter, r *http.Request) {
		u.newsHits.Add(1)
		if u.newsDown {
			hijackAndClose(w)
			return
		}
		if u.newsDelay > 0 {
			select {
			case <-time.After(u.newsDelay):
			case <-r.Context().Done():
				return
			}
		}
		w.Write([]byte(`{"code":200,"data":[{"title":"Spot ETF inflows","source":"wire","url":"https://example.com/etf","summary":"s","published_at":"2025-11-01 08:00:00"}],"message":"ok"}`))
	})
	mux.HandleFunc("/market/get_ticker", func(w http.ResponseWriter, r *http.Request) {
		u.tickerHits.Add(1)
		price := u.lastPrice
		if price == "" {
			price = "65000.5"
		}
		fmt.Fprintf(w, `{"code":200,"data":{"symbol":%q,"last_price":%q,"high24h":66000,"low24h":64000,"volume24h":1234.5,"change_percent":0.8}}`, r.URL.Query().Get("symbol"), price)
	})
	mux.HandleFunc("/market/get_klines", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString(`{"code":200,"data":[`)
		for i := 0; i < 30; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			px := 64000 + float64(i*20)
			if i%3 == 0 {
				px -= 35
			}
			fmt.Fprintf(&b, `{"start_time":%d,"open_price":%f,"high_price":%f,"low_price":%f,"close_price":%f,"volume":10}`,
				1761955200+i*3600, px, px+5, px-5, px)
		}
		b.WriteString(`]}`)
		w.Write([]byte(b.String()))
	})
	mux.HandleFunc("/market/get_depth", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"data":{"bids":[[64990,1.5],[64980,2]],"asks":[[65010,0.7]]}}`))
	})
	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)
	return u
}

func hijackAndClose(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return
	}
	conn, _, err := hj.Hijack()
	if err == nil {
		conn.Close()
	}
}

// stack is one fully wired advisor over fake upstreams.
type stack struct {
	url     string
	coord   *coordinator.Coordinator
	metrics *monitor.SystemMetrics
	health  *health.Server
	store   history.Store
}

func startStack(t testing.TB, u *upstreams, timeout time.Duration, advisor workflow.Advisor) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := events.NewBus()
	metrics := monitor.NewSystemMetrics()
	(&monitor.Monitor{Bus: bus, Metrics: metrics}).Start(ctx)

	coord := coordinator.New(
		coordinator.Config{NewsEnabled: true, MarketEnabled: true},
		news.NewClient(u.srv.URL+"/news", timeout),
		market.NewClient(u.srv.URL+"/market", timeout),
		coordinator.WithBus(bus),
		coordinator.WithMetrics(metrics),
	)
	hs := health.New(coord.Providers(), nil)
	hs.Watch(ctx, bus)

	if advisor == nil {
		advisor = mock.NewAdvisor(mock.Fixtures{Advice: "Accumulate on dips."})
	}
	svc := workflow.NewService(advisor, coord, 24*time.Hour,
		workflow.WithBus(bus),
		workflow.WithMetrics(metrics),
	)
	store := history.NewSQLStore(database)
	server := api.NewServer(api.Deps{
		Workflow:  svc,
		History:   store,
		Providers: coord,
		Metrics:   metrics,
		Meta:      api.SystemMeta{Version: "test"},
	})

	ts := httptest.NewServer(server.Router)
	t.Cleanup(ts.Close)
	return &stack{url: ts.URL, coord: coord, metrics: metrics, health: hs, store: store}
}

// eventually polls cond for up to two seconds.
func eventually(t testing.TB, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
