// Package coordinator queries the news and market providers on behalf of the
// advice pipeline. It never returns errors: failures degrade to empty or partial
// results, and transport-level failures permanently disable the provider.
package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"advisor-core/internal/events"
	"advisor-core/internal/indicators"
	"advisor-core/internal/monitor"
	"advisor-core/pkg/model"
	"advisor-core/pkg/upstream"
	"advisor-core/pkg/upstream/market"
	"advisor-core/pkg/upstream/news"
)

// DefaultLookback applies when the caller passes a non-positive window.
const DefaultLookback = 24 * time.Hour

// NewsSearcher is the news provider surface.
type NewsSearcher interface {
	Search(ctx context.Context, q news.Query) ([]model.NewsItem, error)
}

// MarketSource is the market provider surface.
type MarketSource interface {
	Ticker(ctx context.Context, symbol string) (*market.Ticker, error)
	Klines(ctx context.Context, symbol string, from, to time.Time) ([]model.KlinePoint, error)
	Depth(ctx context.Context, symbol string) (*model.OrderBook, error)
}

// Config holds the initial breaker states and indicator settings.
type Config struct {
	NewsEnabled   bool
	MarketEnabled bool
	RSIPeriod     int
}

// Coordinator owns one breaker per provider, shared by all requests it serves.
type Coordinator struct {
	news      NewsSearcher
	market    MarketSource
	newsBrk   *Breaker
	marketBrk *Breaker
	rsiPeriod int

	logger  *zap.Logger
	bus     *events.Bus
	metrics *monitor.SystemMetrics
	now     func() time.Time
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBus publishes breaker trips on bus.
func WithBus(bus *events.Bus) Option {
	return func(c *Coordinator) { c.bus = bus }
}

// WithMetrics records provider latencies.
func WithMetrics(m *monitor.SystemMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a Coordinator. A nil client starts its provider disabled.
func New(cfg Config, newsClient NewsSearcher, marketClient MarketSource, opts ...Option) *Coordinator {
	c := &Coordinator{
		news:      newsClient,
		market:    marketClient,
		rsiPeriod: cfg.RSIPeriod,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	if c.rsiPeriod <= 0 {
		c.rsiPeriod = indicators.DefaultRSIPeriod
	}
	for _, opt := range opts {
		opt(c)
	}
	c.newsBrk = newBreaker(ProviderNews, cfg.NewsEnabled && newsClient != nil, c.tripped)
	c.marketBrk = newBreaker(ProviderMarket, cfg.MarketEnabled && marketClient != nil, c.tripped)
	return c
}

func (c *Coordinator) tripped(name, reason string) {
	c.logger.Error("[BREAKER] provider disabled for process lifetime",
		zap.String("provider", name), zap.String("reason", reason))
	c.bus.Publish(events.EventProviderTripped, events.ProviderTripped{
		Provider: name,
		Reason:   reason,
		At:       c.now(),
	})
}

// ProviderStatus is the breaker state of one provider.
type ProviderStatus struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Providers reports both breakers, news first.
func (c *Coordinator) Providers() []ProviderStatus {
	return []ProviderStatus{
		{Name: c.newsBrk.Name(), Enabled: c.newsBrk.Enabled()},
		{Name: c.marketBrk.Name(), Enabled: c.marketBrk.Enabled()},
	}
}

// NewsBreaker exposes the news breaker.
func (c *Coordinator) NewsBreaker() *Breaker { return c.newsBrk }

// MarketBreaker exposes the market breaker.
func (c *Coordinator) MarketBreaker() *Breaker { return c.marketBrk }

func normalizeLookback(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultLookback
	}
	return d
}

// FetchNews searches recent news for the intent. The result is never nil.
func (c *Coordinator) FetchNews(ctx context.Context, intent *model.Intent, lookback time.Duration) []model.NewsItem {
	empty := []model.NewsItem{}
	if !c.newsBrk.Enabled() {
		c.logger.Debug("[NEWS] provider disabled, skipping")
		return empty
	}

	region := model.LangEN
	if intent.IsChinese() {
		region = model.LangZH
	}
	to := c.now()
	q := news.Query{
		Keyword: BuildKeyword(intent),
		From:    to.Add(-normalizeLookback(lookback)),
		To:      to,
		Limit:   news.DefaultLimit,
		Region:  region,
	}

	var timer *monitor.Timer
	if c.metrics != nil {
		timer = monitor.NewTimer(c.metrics.NewsLatency)
	}
	items, err := c.news.Search(ctx, q)
	if timer != nil {
		timer.Stop()
	}
	if err != nil {
		c.absorb(ctx, c.newsBrk, err, zap.String("keyword", q.Keyword))
		return empty
	}
	c.logger.Info("[NEWS] fetched", zap.String("keyword", q.Keyword), zap.Int("count", len(items)))
	return items
}

// FetchMarket builds one snapshot per symbol whose ticker call succeeded.
// Symbols are processed in order and the loop stops as soon as the breaker opens.
// The result is never nil.
func (c *Coordinator) FetchMarket(ctx context.Context, intent *model.Intent, lookback time.Duration) []model.MarketSnapshot {
	out := []model.MarketSnapshot{}
	targets := ResolveTargets(intent)
	if !c.marketBrk.Enabled() || len(targets) == 0 {
		c.logger.Debug("[MARKET] nothing to fetch",
			zap.Bool("enabled", c.marketBrk.Enabled()), zap.Int("targets", len(targets)))
		return out
	}

	var timer *monitor.Timer
	if c.metrics != nil {
		timer = monitor.NewTimer(c.metrics.MarketLatency)
		defer timer.Stop()
	}

	to := c.now()
	from := to.Add(-normalizeLookback(lookback))
	for _, symbol := range targets {
		if !c.marketBrk.Enabled() {
			c.logger.Warn("[MARKET] provider disabled mid-run, skipping remaining symbols", zap.String("next", symbol))
			break
		}
		if ctx.Err() != nil {
			break
		}
		if snap, ok := c.snapshot(ctx, symbol, from, to); ok {
			out = append(out, snap)
		}
	}
	return out
}

func (c *Coordinator) snapshot(ctx context.Context, symbol string, from, to time.Time) (model.MarketSnapshot, bool) {
	ticker, err := c.market.Ticker(ctx, symbol)
	if err != nil {
		c.absorb(ctx, c.marketBrk, err, zap.String("symbol", symbol), zap.String("call", "ticker"))
		return model.MarketSnapshot{}, false
	}
	if ticker == nil {
		return model.MarketSnapshot{}, false
	}

	rsi := indicators.NeutralRSI
	klines, err := c.market.Klines(ctx, symbol, from, to)
	if err != nil {
		c.logger.Warn("[MARKET] klines unavailable", zap.String("symbol", symbol), zap.Error(err))
		klines = []model.KlinePoint{}
	} else {
		rsi = indicators.RSI(indicators.Closes(klines, func(k model.KlinePoint) float64 { return k.Close }), c.rsiPeriod)
	}

	book, err := c.market.Depth(ctx, symbol)
	if err != nil {
		c.logger.Warn("[MARKET] depth unavailable", zap.String("symbol", symbol), zap.Error(err))
		book = nil
	}

	return model.MarketSnapshot{
		Symbol:        ticker.Symbol,
		LastPrice:     ticker.LastPrice.Float(),
		High24h:       ticker.High24h.Float(),
		Low24h:        ticker.Low24h.Float(),
		Volume24h:     ticker.Volume24h.Float(),
		ChangePercent: ticker.ChangePercent.Float(),
		RSI:           rsi,
		Klines:        klines,
		OrderBook:     book,
	}, true
}

// absorb logs a provider failure and trips the breaker for hard failures.
// A cancelled request is the caller's doing and leaves the breaker alone.
func (c *Coordinator) absorb(ctx context.Context, b *Breaker, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("provider", b.Name()), zap.Error(err))
	switch {
	case ctx.Err() != nil:
		c.logger.Info("[UPSTREAM] request cancelled", fields...)
	case upstream.IsHard(err):
		c.logger.Error("[UPSTREAM] call failed", fields...)
		b.Trip(err.Error())
	default:
		c.logger.Warn("[UPSTREAM] no usable data", fields...)
	}
}
