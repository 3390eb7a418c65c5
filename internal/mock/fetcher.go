package mock

import (
	"context"
	"time"

	"advisor-core/pkg/model"
)

// Fetcher serves fixture news and one fixture snapshot per requested product.
type Fetcher struct {
	fx  Fixtures
	now func() time.Time
}

// NewFetcher builds a fixture-backed fetcher.
func NewFetcher(fx Fixtures) *Fetcher {
	return &Fetcher{fx: fx, now: time.Now}
}

func (f *Fetcher) FetchNews(context.Context, *model.Intent, time.Duration) []model.NewsItem {
	out := make([]model.NewsItem, 0, len(f.fx.News))
	for _, n := range f.fx.News {
		out = append(out, model.NewsItem{
			Title:       n.Title,
			Source:      n.Source,
			URL:         n.URL,
			Summary:     n.Summary,
			PublishedAt: n.PublishedAt,
		})
	}
	return out
}

func (f *Fetcher) FetchMarket(_ context.Context, intent *model.Intent, _ time.Duration) []model.MarketSnapshot {
	symbols := []string{f.fx.Market.DefaultSymbol}
	if intent != nil && len(intent.Products) > 0 {
		symbols = intent.Products
	}

	now := f.now()
	out := make([]model.MarketSnapshot, 0, len(symbols))
	for _, sym := range symbols {
		out = append(out, f.snapshot(sym, now))
	}
	return out
}

func (f *Fetcher) snapshot(symbol string, now time.Time) model.MarketSnapshot {
	m := f.fx.Market
	klines := make([]model.KlinePoint, 0, len(m.Klines))
	for _, k := range m.Klines {
		klines = append(klines, model.KlinePoint{
			StartTime: now.Add(-time.Duration(k.AgoMinutes) * time.Minute).UnixMilli(),
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
		})
	}
	return model.MarketSnapshot{
		Symbol:        symbol,
		LastPrice:     m.LastPrice,
		High24h:       m.High24h,
		Low24h:        m.Low24h,
		Volume24h:     m.Volume24h,
		ChangePercent: m.ChangePercent,
		RSI:           m.RSI,
		Klines:        klines,
		OrderBook: &model.OrderBook{
			Bids: levels(m.Bids),
			Asks: levels(m.Asks),
		},
	}
}

func levels(raw [][2]float64) []model.OrderBookLevel {
	out := make([]model.OrderBookLevel, 0, len(raw))
	for _, l := range raw {
		out = append(out, model.OrderBookLevel{Price: l[0], Volume: l[1]})
	}
	return out
}
