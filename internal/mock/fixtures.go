// Package mock provides a deterministic advisor and data fetcher for demos
// and tests, optionally driven by a YAML fixture file.
package mock

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixtures is the top-level YAML structure.
type Fixtures struct {
	Advice string        `yaml:"advice"`
	News   []NewsFixture `yaml:"news"`
	Market MarketFixture `yaml:"market"`
}

// NewsFixture is one canned headline.
type NewsFixture struct {
	Title       string `yaml:"title"`
	Source      string `yaml:"source"`
	URL         string `yaml:"url"`
	Summary     string `yaml:"summary"`
	PublishedAt string `yaml:"published_at"`
}

// MarketFixture is applied to every requested symbol.
type MarketFixture struct {
	DefaultSymbol string         `yaml:"default_symbol"`
	LastPrice     float64        `yaml:"last_price"`
	High24h       float64        `yaml:"high24h"`
	Low24h        float64        `yaml:"low24h"`
	Volume24h     float64        `yaml:"volume24h"`
	ChangePercent float64        `yaml:"change_percent"`
	RSI           float64        `yaml:"rsi"`
	Klines        []KlineFixture `yaml:"klines"`
	Bids          [][2]float64   `yaml:"bids"`
	Asks          [][2]float64   `yaml:"asks"`
}

// KlineFixture places a candle relative to the time of the request.
type KlineFixture struct {
	AgoMinutes int     `yaml:"ago_minutes"`
	Open       float64 `yaml:"open"`
	High       float64 `yaml:"high"`
	Low        float64 `yaml:"low"`
	Close      float64 `yaml:"close"`
	Volume     float64 `yaml:"volume"`
}

// DefaultFixtures is used when no file is configured.
func DefaultFixtures() Fixtures {
	return Fixtures{
		Advice: `{"advice":"buy&hold (mock)"}`,
		News: []NewsFixture{
			{Title: "Headline 1", Source: "MockWire", URL: "https://example.com/1", Summary: "Mock summary for headline 1", PublishedAt: "2025-10-22T08:30:00Z"},
			{Title: "Headline 2", Source: "MockWire", URL: "https://example.com/2", Summary: "Mock summary for headline 2", PublishedAt: "2025-10-22T09:15:00Z"},
		},
		Market: MarketFixture{
			DefaultSymbol: "MOCK_SYMBOL",
			LastPrice:     103.8,
			High24h:       110.0,
			Low24h:        95.0,
			Volume24h:     456789,
			ChangePercent: 1.25,
			RSI:           55.6,
			Klines: []KlineFixture{
				{AgoMinutes: 60, Open: 100.0, High: 102.0, Low: 99.0, Close: 101.5, Volume: 1200},
				{AgoMinutes: 30, Open: 101.5, High: 103.0, Low: 100.5, Close: 102.2, Volume: 980},
				{AgoMinutes: 10, Open: 102.2, High: 104.0, Low: 101.0, Close: 103.8, Volume: 1500},
			},
			Bids: [][2]float64{{103.5, 12}, {103.0, 18}, {102.5, 25}},
			Asks: [][2]float64{{104.2, 10}, {104.8, 16}, {105.3, 20}},
		},
	}
}

// LoadFixtures reads path on top of DefaultFixtures. Sections missing from
// the file keep their defaults. An empty path returns the defaults.
func LoadFixtures(path string) (Fixtures, error) {
	fx := DefaultFixtures()
	if path == "" {
		return fx, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fx, fmt.Errorf("read fixtures: %w", err)
	}
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return fx, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	if fx.Market.DefaultSymbol == "" {
		fx.Market.DefaultSymbol = DefaultFixtures().Market.DefaultSymbol
	}
	return fx, nil
}
