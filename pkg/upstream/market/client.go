// Package market is the client for the market data provider (ticker, klines, depth).
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"advisor-core/pkg/model"
	"advisor-core/pkg/upstream"
)

const (
	tickerPath = "/get_ticker"
	klinesPath = "/get_klines"
	depthPath  = "/get_depth"

	// Platform is sent with every market query.
	Platform = "OKX"
	// MarketType and Interval describe the kline series we ask for.
	MarketType = "SPOT"
	Interval   = "1H"
	// KlineLimit caps the number of candles per request.
	KlineLimit = 120
	// DepthLevels is the number of levels kept per side.
	DepthLevels = 5
)

// Ticker is the 24h summary for one symbol.
type Ticker struct {
	Symbol        string          `json:"symbol"`
	LastPrice     upstream.Number `json:"last_price"`
	High24h       upstream.Number `json:"high24h"`
	Low24h        upstream.Number `json:"low24h"`
	Volume24h     upstream.Number `json:"volume24h"`
	ChangePercent upstream.Number `json:"change_percent"`
}

type kline struct {
	StartTime json.RawMessage `json:"start_time"`
	Open      upstream.Number `json:"open_price"`
	High      upstream.Number `json:"high_price"`
	Low       upstream.Number `json:"low_price"`
	Close     upstream.Number `json:"close_price"`
	Volume    upstream.Number `json:"volume"`
}

type depth struct {
	Bids [][]upstream.Number `json:"bids"`
	Asks [][]upstream.Number `json:"asks"`
}

// Client wraps the three market endpoints under one base URL.
type Client struct {
	upstream.Base
}

// NewClient builds a client; timeout <= 0 uses upstream.DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{Base: upstream.NewBase(baseURL, timeout)}
}

func symbolParams(symbol string) url.Values {
	params := url.Values{}
	params.Set("platform", Platform)
	params.Set("symbol", symbol)
	return params
}

// Ticker fetches the 24h ticker. A null payload is a soft failure.
func (c *Client) Ticker(ctx context.Context, symbol string) (*Ticker, error) {
	t, err := upstream.Get[*Ticker](ctx, c.Base, tickerPath, symbolParams(symbol))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, upstream.NoData(tickerPath)
	}
	if strings.TrimSpace(t.Symbol) == "" {
		t.Symbol = symbol
	}
	return t, nil
}

// Klines fetches hourly candles in [from, to], oldest first.
func (c *Client) Klines(ctx context.Context, symbol string, from, to time.Time) ([]model.KlinePoint, error) {
	params := symbolParams(symbol)
	params.Set("market_type", MarketType)
	params.Set("interval", Interval)
	params.Set("start_time", strconv.FormatInt(from.Unix(), 10))
	params.Set("end_time", strconv.FormatInt(to.Unix(), 10))
	params.Set("limit", strconv.Itoa(KlineLimit))

	rows, err := upstream.Get[[]kline](ctx, c.Base, klinesPath, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, upstream.NoData(klinesPath)
	}
	// The provider may ignore limit; keep the newest candles.
	if len(rows) > KlineLimit {
		rows = rows[len(rows)-KlineLimit:]
	}

	out := make([]model.KlinePoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.KlinePoint{
			StartTime: NormalizeTimestamp(rawValue(r.StartTime)),
			Open:      r.Open.Float(),
			High:      r.High.Float(),
			Low:       r.Low.Float(),
			Close:     r.Close.Float(),
			Volume:    r.Volume.Float(),
		})
	}
	return out, nil
}

// Depth fetches the order book, keeping DepthLevels well-formed levels per side.
func (c *Client) Depth(ctx context.Context, symbol string) (*model.OrderBook, error) {
	d, err := upstream.Get[*depth](ctx, c.Base, depthPath, symbolParams(symbol))
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, upstream.NoData(depthPath)
	}
	return &model.OrderBook{
		Bids: convertLevels(d.Bids),
		Asks: convertLevels(d.Asks),
	}, nil
}

func convertLevels(raw [][]upstream.Number) []model.OrderBookLevel {
	out := make([]model.OrderBookLevel, 0, DepthLevels)
	for _, lvl := range raw {
		if len(out) == DepthLevels {
			break
		}
		if len(lvl) < 2 {
			continue
		}
		out = append(out, model.OrderBookLevel{Price: lvl[0].Float(), Volume: lvl[1].Float()})
	}
	return out
}

// rawValue decodes a JSON scalar keeping numbers as json.Number.
func rawValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}
