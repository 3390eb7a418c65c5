package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"advisor-core/pkg/upstream"
)

func newProvider(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second)
}

func TestTickerDecodesStringNumbers(t *testing.T) {
	c := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_ticker" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("platform") != Platform || r.URL.Query().Get("symbol") != "BTC-USDT" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"code":200,"data":{"symbol":"BTC-USDT","last_price":"65000.5","high24h":66000,"low24h":64000,"volume24h":"12.5","change_percent":0.01},"message":"ok"}`))
	})

	tk, err := c.Ticker(context.Background(), "BTC-USDT")
	if err != nil {
		t.Fatalf("Ticker: %v", err)
	}
	if tk.LastPrice.Float() != 65000.5 || tk.Volume24h.Float() != 12.5 || tk.High24h.Float() != 66000 {
		t.Fatalf("unexpected ticker %+v", tk)
	}
}

func TestTickerFailureClasses(t *testing.T) {
	cases := []struct {
		name string
		body string
		code int
		hard bool
	}{
		{"status", `{}`, http.StatusInternalServerError, false},
		{"empty body", ``, http.StatusOK, false},
		{"envelope code", `{"code":500,"data":null,"message":"boom"}`, http.StatusOK, false},
		{"null data", `{"code":200,"data":null}`, http.StatusOK, false},
		{"malformed json", `{"code":`, http.StatusOK, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				w.Write([]byte(tc.body))
			})
			_, err := c.Ticker(context.Background(), "BTC-USDT")
			if err == nil {
				t.Fatalf("expected error")
			}
			if upstream.IsHard(err) != tc.hard {
				t.Fatalf("IsHard(%v) = %v, want %v", err, upstream.IsHard(err), tc.hard)
			}
		})
	}
}

func TestKlinesQueryAndDecode(t *testing.T) {
	from := time.Unix(1700000000, 0)
	to := from.Add(24 * time.Hour)

	c := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("market_type") != "SPOT" || q.Get("interval") != "1H" || q.Get("limit") != "120" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("start_time") != "1700000000" || q.Get("end_time") != "1700086400" {
			t.Errorf("unexpected window %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"code":200,"data":[
			{"start_time":1700000000,"open_price":1,"high_price":2,"low_price":0.5,"close_price":1.5,"volume":10},
			{"start_time":"2025-11-01 01:00:00","open_price":"1.5","high_price":"2","low_price":"1","close_price":"1.8","volume":null},
			{"start_time":"bad","close_price":2}
		]}`))
	})

	klines, err := c.Klines(context.Background(), "BTC-USDT", from, to)
	if err != nil {
		t.Fatalf("Klines: %v", err)
	}
	if len(klines) != 3 {
		t.Fatalf("expected 3 klines, got %d", len(klines))
	}
	if klines[0].StartTime != 1700000000000 || klines[0].Close != 1.5 {
		t.Fatalf("unexpected first kline %+v", klines[0])
	}
	if klines[1].StartTime != time.Date(2025, 11, 1, 1, 0, 0, 0, time.UTC).UnixMilli() || klines[1].Close != 1.8 {
		t.Fatalf("unexpected second kline %+v", klines[1])
	}
	if klines[2].StartTime != 0 {
		t.Fatalf("unparseable start_time should be 0, got %d", klines[2].StartTime)
	}
}

func TestKlinesKeepsNewestWhenLimitIgnored(t *testing.T) {
	c := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString(`{"code":200,"data":[`)
		for i := 0; i < 1000; i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, `{"start_time":%d,"close_price":%d}`, 1700000000+i*3600, i)
		}
		b.WriteString(`]}`)
		w.Write([]byte(b.String()))
	})

	klines, err := c.Klines(context.Background(), "BTC-USDT", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("Klines: %v", err)
	}
	if len(klines) != KlineLimit {
		t.Fatalf("expected %d klines, got %d", KlineLimit, len(klines))
	}
	if klines[0].Close != 880 || klines[KlineLimit-1].Close != 999 {
		t.Fatalf("expected the newest candles, got %v..%v", klines[0].Close, klines[KlineLimit-1].Close)
	}
}

func TestKlinesEmptyIsSoft(t *testing.T) {
	c := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"data":[]}`))
	})
	_, err := c.Klines(context.Background(), "BTC-USDT", time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, upstream.ErrEnvelope) {
		t.Fatalf("expected ErrEnvelope, got %v", err)
	}
}

func TestDepthTruncatesAndDropsMalformed(t *testing.T) {
	c := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"data":{
			"bids":[[10,1],[9],[8,1],[7,1],[6,1],[5,1],[4,1]],
			"asks":[[11,2]]
		}}`))
	})

	book, err := c.Depth(context.Background(), "BTC-USDT")
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if len(book.Bids) != DepthLevels {
		t.Fatalf("expected %d bids, got %d", DepthLevels, len(book.Bids))
	}
	if book.Bids[0].Price != 10 || book.Bids[1].Price != 8 || book.Bids[4].Price != 5 {
		t.Fatalf("unexpected bids %+v", book.Bids)
	}
	if len(book.Asks) != 1 || book.Asks[0].Volume != 2 {
		t.Fatalf("unexpected asks %+v", book.Asks)
	}
}
