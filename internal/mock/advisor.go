package mock

import (
	"context"
	"strings"
	"unicode"

	"advisor-core/pkg/model"
)

// Advisor extracts intents by keyword and always returns the canned advice.
type Advisor struct {
	advice string
}

// NewAdvisor uses fx.Advice, or the default canned answer when empty.
func NewAdvisor(fx Fixtures) *Advisor {
	advice := fx.Advice
	if advice == "" {
		advice = DefaultFixtures().Advice
	}
	return &Advisor{advice: advice}
}

func (a *Advisor) Extract(_ context.Context, text string) (*model.Intent, error) {
	lower := strings.ToLower(text)

	category := "finance"
	if strings.Contains(lower, "军") {
		category = "military"
	}
	product := "AAPL"
	if strings.Contains(lower, "btc") {
		product = "BTC-USDT"
	}
	lang := model.LangEN
	if hasHan(text) {
		lang = model.LangZH
	}

	return &model.Intent{
		Language:       lang,
		Focus:          model.FocusBoth,
		Products:       []string{product},
		MarketKeywords: []string{},
		NewsKeywords:   []string{},
		NewsCategories: []string{category},
		Reasoning:      "mock reasoning",
	}, nil
}

func (a *Advisor) Synthesize(context.Context, model.CombinedContext) (string, error) {
	return a.advice, nil
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
