package classification

import (
	"strings"

	"feedback_server/core/domain"
)

// =============================================================================
// Keyword Fallback
// =============================================================================

// SummaryMaxRunes is the length kept by the truncation summary.
const SummaryMaxRunes = 50

type categoryRule struct {
	category domain.Category
	keywords []string
}

// Checked in order, first hit wins.
var categoryRules = []categoryRule{
	{domain.CategoryTechnical, []string{"登录", "账号", "密码", "login", "account", "password"}},
	{domain.CategoryService, []string{"客服", "服务", "响应", "customer service", "support", "response"}},
	{domain.CategoryPricing, []string{"价格", "收费", "贵", "price", "fee", "expensive"}},
	{domain.CategoryFeatureRequest, []string{"功能", "建议", "希望", "feature", "suggest", "wish"}},
}

var (
	highSeverityKeywords = []string{"无法", "不能", "失败", "cannot", "can't", "unable", "fail"}

	// negative is checked first: 不满意 contains 满意
	negativeKeywords = []string{"不满意", "糟糕", "差", "unsatisfied", "dissatisfied", "terrible", "bad"}
	positiveKeywords = []string{"满意", "很好", "不错", "satisfied", "great", "good"}
)

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// FallbackCategory picks a category from keywords alone.
func FallbackCategory(text string) domain.Category {
	lower := strings.ToLower(text)
	for _, rule := range categoryRules {
		if containsAny(lower, rule.keywords) {
			return rule.category
		}
	}
	return domain.CategoryOther
}

// FallbackSeverity is High when the text reports something that does not work.
func FallbackSeverity(text string) domain.Severity {
	if containsAny(strings.ToLower(text), highSeverityKeywords) {
		return domain.SeverityHigh
	}
	return domain.SeverityMedium
}

func FallbackSentiment(text string) domain.Sentiment {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, negativeKeywords):
		return domain.SentimentNegative
	case containsAny(lower, positiveKeywords):
		return domain.SentimentPositive
	default:
		return domain.SentimentNeutral
	}
}

// TruncateSummary keeps the first SummaryMaxRunes runes of text and appends
// "..." when something was cut.
func TruncateSummary(text string) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) <= SummaryMaxRunes {
		return text
	}
	return string(r[:SummaryMaxRunes]) + "..."
}

// FallbackClassification is the deterministic verdict used when the model
// cannot be asked. The summary is the truncated text.
func FallbackClassification(text string) *domain.Classification {
	return &domain.Classification{
		Category:  FallbackCategory(text),
		Summary:   TruncateSummary(text),
		Severity:  FallbackSeverity(text),
		Sentiment: FallbackSentiment(text),
		Entities:  []string{},
	}
}
