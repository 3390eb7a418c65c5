package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"advisor-core/pkg/model"
)

const (
	extractTemperature = 0
	adviceTemperature  = 0.4
)

// Advisor implements the workflow collaborator on top of a chat-completions Client.
type Advisor struct {
	client *Client
	logger *zap.Logger
}

// NewAdvisor wraps client.
func NewAdvisor(client *Client, logger *zap.Logger) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{client: client, logger: logger}
}

// Extract asks the model for a JSON intent. Transport failures are returned;
// output that cannot be parsed degrades to model.FallbackIntent.
func (a *Advisor) Extract(ctx context.Context, text string) (*model.Intent, error) {
	raw, err := a.client.Complete(ctx, extractSystemPrompt, fmt.Sprintf(extractUserTemplate, text), extractTemperature)
	if err != nil {
		return nil, fmt.Errorf("extract intent: %w", err)
	}
	intent, err := ParseIntent(raw)
	if err != nil {
		a.logger.Warn("[LLM] intent output not understood, using fallback", zap.Error(err))
		return model.FallbackIntent(), nil
	}
	return intent, nil
}

// Synthesize renders the combined context into a prompt and returns the advice text.
func (a *Advisor) Synthesize(ctx context.Context, cc model.CombinedContext) (string, error) {
	lang := adviceLanguage(cc.Intent)
	system := adviceSystemPrompt(lang) + "\n\n" + RenderAdvicePrompt(cc, lang)
	advice, err := a.client.Complete(ctx, system, cc.UserText, adviceTemperature)
	if err != nil {
		return "", fmt.Errorf("final advice: %w", err)
	}
	return advice, nil
}

// ParseIntent reads the extractor's JSON. snake_case keys win; camelCase
// spellings are accepted when the snake_case list is empty.
func ParseIntent(raw string) (*model.Intent, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(raw)), &root); err != nil {
		return nil, fmt.Errorf("parse intent: %w", err)
	}

	intent := &model.Intent{
		Language:       stringField(root, "language", model.LangUnknown),
		Focus:          stringField(root, "focus", model.FocusBoth),
		Reasoning:      stringField(root, "reasoning", ""),
		Products:       listField(root, "products"),
		NewsCategories: listField(root, "news_categories", "newsCategories"),
		MarketKeywords: listField(root, "market_keywords", "marketKeywords"),
		NewsKeywords:   listField(root, "news_keywords", "newsKeywords"),
	}
	return intent, nil
}

// stripFences removes a surrounding ```json ... ``` block if the model added one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func stringField(root map[string]json.RawMessage, key, def string) string {
	raw, ok := root[key]
	if !ok || string(raw) == "null" {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return def
	}
	return s
}

func listField(root map[string]json.RawMessage, keys ...string) []string {
	for _, k := range keys {
		raw, ok := root[k]
		if !ok {
			continue
		}
		var out []string
		if err := json.Unmarshal(raw, &out); err == nil && len(out) > 0 {
			return out
		}
	}
	return []string{}
}
