package llm

import (
	"fmt"
	"strings"
	"time"

	"advisor-core/pkg/model"
)

const extractSystemPrompt = "You identify financial intents, tradable instruments and news categories in user questions. Answer with JSON only."

const extractUserTemplate = `Extract the financial intent of the user input below as strict JSON with no extra text.
Use the user's language for free-text values.

Fields:
- language: "zh" | "en"
- focus: "market" | "news" | "both"
- products: trading pairs you are sure about, OKX style such as BTC-USDT or ETH-USDT; no indices or generic words
- market_keywords: lookup terms or symbols for market data
- news_keywords: concrete topics, events, institutions or instruments; never time words like "recent news" or "past day"
- news_categories: e.g. policy, macroeconomics, markets, technology, stocks
- reasoning: one short sentence

User input:
%s`

const (
	adviceSystemZH = "You are a professional financial advisor. Reply in Chinese with concise, actionable advice and explicit risk reminders."
	adviceSystemEN = "You are a professional financial advisor. Reply in English with concise, actionable advice and explicit risk warnings."
)

const klineTimeLayout = "01-02 15:04"

// labels holds the per-language fragments of the advice prompt.
type labels struct {
	question, intent, categories, tickers, news, market string
	noNews, noMarket, unknown, unrecognized, none     string
	summary, bids, asks, lastKlines, closeWord, volWord string
	tickerLine                                         string
	outro                                              string
}

var zhLabels = labels{
	question: "用户原始问题", intent: "已解析意图", categories: "资讯类别", tickers: "关注标的",
	news: "外部新闻", market: "行情数据",
	noNews: "- 暂无相关新闻", noMarket: "- 未获取到行情数据",
	unknown: "未知", unrecognized: "未识别", none: "无",
	summary: "摘要", bids: "买单", asks: "卖单", lastKlines: "近三条K线", closeWord: "收盘", volWord: "量",
	tickerLine: "- %s 最新价: %.2f (24h涨跌: %.2f%%) 高: %.2f 低: %.2f 量: %.2f RSI: %.2f",
	outro:      "请结合以上信息给出结构化建议，至少包含：1. 市场判断 2. 建议操作或关注点 3. 风险提示",
}

var enLabels = labels{
	question: "User question", intent: "Parsed intent", categories: "News categories", tickers: "Focus tickers",
	news: "External news", market: "Market data",
	noNews: "- No related news", noMarket: "- No market data",
	unknown: "unknown", unrecognized: "unknown", none: "none",
	summary: "Summary", bids: "Bids", asks: "Asks", lastKlines: "Last 3 klines", closeWord: "close", volWord: "vol",
	tickerLine: "- %s Last: %.2f (24h change: %.2f%%) High: %.2f Low: %.2f Vol: %.2f RSI: %.2f",
	outro:      "Give structured advice covering at least: 1) market view 2) recommended actions or watchpoints 3) risk warnings",
}

// adviceLanguage picks en or zh from the intent; anything else means zh.
func adviceLanguage(intent *model.Intent) string {
	if intent != nil && strings.EqualFold(strings.TrimSpace(intent.Language), model.LangEN) {
		return model.LangEN
	}
	return model.LangZH
}

func adviceSystemPrompt(lang string) string {
	if lang == model.LangEN {
		return adviceSystemEN
	}
	return adviceSystemZH
}

func labelsFor(lang string) labels {
	if lang == model.LangEN {
		return enLabels
	}
	return zhLabels
}

// RenderAdvicePrompt lays out the question, parsed intent, news and market data.
func RenderAdvicePrompt(cc model.CombinedContext, lang string) string {
	l := labelsFor(lang)

	categories, products := l.unknown, l.unrecognized
	if cc.Intent != nil {
		if len(cc.Intent.NewsCategories) > 0 {
			categories = strings.Join(cc.Intent.NewsCategories, ", ")
		}
		if len(cc.Intent.Products) > 0 {
			products = strings.Join(cc.Intent.Products, ", ")
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n\n", l.question, cc.UserText)
	fmt.Fprintf(&b, "%s:\n- %s: %s\n- %s: %s\n\n", l.intent, l.categories, categories, l.tickers, products)
	fmt.Fprintf(&b, "%s:\n%s\n\n", l.news, renderNews(cc.News, l))
	fmt.Fprintf(&b, "%s:\n%s\n\n", l.market, renderMarkets(cc.Markets, l))
	b.WriteString(l.outro)
	return b.String()
}

func renderNews(items []model.NewsItem, l labels) string {
	if len(items) == 0 {
		return l.noNews
	}
	blocks := make([]string, 0, len(items))
	for _, it := range items {
		url := it.URL
		if url == "" {
			url = "#"
		}
		blocks = append(blocks, fmt.Sprintf("- %s (%s, %s) %s\n  %s: %s",
			orDefault(it.Title, l.unknown), orDefault(it.Source, l.unknown), orDefault(it.PublishedAt, l.unknown),
			url, l.summary, orDefault(it.Summary, l.none)))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMarkets(snaps []model.MarketSnapshot, l labels) string {
	if len(snaps) == 0 {
		return l.noMarket
	}
	var b strings.Builder
	for _, s := range snaps {
		fmt.Fprintf(&b, l.tickerLine+"\n", s.Symbol, s.LastPrice, s.ChangePercent, s.High24h, s.Low24h, s.Volume24h, s.RSI)
		if s.OrderBook != nil {
			fmt.Fprintf(&b, "  %s: %s\n", l.bids, formatLevels(s.OrderBook.Bids, l))
			fmt.Fprintf(&b, "  %s: %s\n", l.asks, formatLevels(s.OrderBook.Asks, l))
		}
		if len(s.Klines) > 0 {
			fmt.Fprintf(&b, "  %s: %s\n", l.lastKlines, formatKlines(s.Klines, l))
		}
	}
	return strings.TrimSpace(b.String())
}

func formatLevels(levels []model.OrderBookLevel, l labels) string {
	if len(levels) == 0 {
		return l.none
	}
	if len(levels) > 3 {
		levels = levels[:3]
	}
	parts := make([]string, 0, len(levels))
	for _, lv := range levels {
		parts = append(parts, fmt.Sprintf("%.2f@%.2f", lv.Price, lv.Volume))
	}
	return strings.Join(parts, ", ")
}

func formatKlines(klines []model.KlinePoint, l labels) string {
	if len(klines) > 3 {
		klines = klines[len(klines)-3:]
	}
	parts := make([]string, 0, len(klines))
	for _, k := range klines {
		parts = append(parts, fmt.Sprintf("%s %s %.2f %s %.2f", formatKlineTime(k.StartTime), l.closeWord, k.Close, l.volWord, k.Volume))
	}
	return strings.Join(parts, " | ")
}

func formatKlineTime(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(klineTimeLayout)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
