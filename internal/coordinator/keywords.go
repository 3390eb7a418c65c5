package coordinator

import (
	"regexp"
	"strings"

	"advisor-core/pkg/model"
)

// keywordJoiner is the provider's full-text OR operator.
const keywordJoiner = " OR "

// bannedKeywords are generic terms the news search treats as noise. Compared lower-cased.
var bannedKeywords = map[string]struct{}{
	"recent news": {},
	"past day":    {},
	"past month":  {},
	"recent":      {},
	"最近新闻":        {},
	"过去一天":        {},
	"过去一个月":       {},
	"新闻":          {},
	"最近":          {},
}

var symbolPattern = regexp.MustCompile(`(?i)^[A-Z0-9]{2,10}[-_][A-Z0-9]{2,10}$`)

// SanitizeKeywords trims, drops empties and banned terms, and removes
// case-insensitive duplicates keeping the first spelling.
func SanitizeKeywords(parts []string) []string {
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if _, banned := bannedKeywords[key]; banned {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// BuildKeyword resolves the news query for an intent. News keywords win;
// otherwise categories and products are combined. An empty result means no filter.
func BuildKeyword(intent *model.Intent) string {
	if intent == nil {
		return ""
	}
	var parts []string
	if len(intent.NewsKeywords) > 0 {
		parts = append(parts, intent.NewsKeywords...)
	} else {
		parts = append(parts, intent.NewsCategories...)
		parts = append(parts, intent.Products...)
	}
	return strings.Join(SanitizeKeywords(parts), keywordJoiner)
}

// IsSymbolLike reports whether s looks like a trading pair such as BTC-USDT or eth_usdt.
func IsSymbolLike(s string) bool {
	return symbolPattern.MatchString(strings.TrimSpace(s))
}

// FilterSymbols keeps trimmed, symbol-like entries in first-seen order without duplicates.
func FilterSymbols(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" || !IsSymbolLike(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ResolveTargets picks the symbols to query: products first, then market keywords.
func ResolveTargets(intent *model.Intent) []string {
	if intent == nil {
		return nil
	}
	switch {
	case len(intent.Products) > 0:
		return FilterSymbols(intent.Products)
	case len(intent.MarketKeywords) > 0:
		return FilterSymbols(intent.MarketKeywords)
	}
	return nil
}
