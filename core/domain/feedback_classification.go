package domain

import "strings"

// Category is the closed set of problem categories.
type Category string

const (
	CategoryTechnical      Category = "Technical"
	CategoryService        Category = "Service"
	CategoryPricing        Category = "Pricing"
	CategoryFeatureRequest Category = "Feature Request"
	CategoryOther          Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryTechnical,
	CategoryService,
	CategoryPricing,
	CategoryFeatureRequest,
	CategoryOther,
}

type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

// Labels the model is asked to answer with. English names are accepted too.
var (
	categoryLabels = map[string]Category{
		"技术问题":            CategoryTechnical,
		"服务态度":            CategoryService,
		"价格异议":            CategoryPricing,
		"功能建议":            CategoryFeatureRequest,
		"其他":              CategoryOther,
		"technical":       CategoryTechnical,
		"service":         CategoryService,
		"pricing":         CategoryPricing,
		"feature request": CategoryFeatureRequest,
		"feature_request": CategoryFeatureRequest,
		"feature":         CategoryFeatureRequest,
		"price":           CategoryPricing,
		"other":           CategoryOther,
	}
	severityLabels = map[string]Severity{
		"高":      SeverityHigh,
		"中":      SeverityMedium,
		"低":      SeverityLow,
		"high":   SeverityHigh,
		"medium": SeverityMedium,
		"low":    SeverityLow,
	}
	sentimentLabels = map[string]Sentiment{
		"正面":       SentimentPositive,
		"中性":       SentimentNeutral,
		"负面":       SentimentNegative,
		"positive": SentimentPositive,
		"neutral":  SentimentNeutral,
		"negative": SentimentNegative,
	}
)

// ParseCategory maps a label to a category. Unknown labels become Other.
func ParseCategory(label string) Category {
	if c, ok := categoryLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return c
	}
	return CategoryOther
}

// ParseSeverity maps a label to a severity. Unknown labels become Medium.
func ParseSeverity(label string) Severity {
	if s, ok := severityLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return s
	}
	return SeverityMedium
}

// ParseSentiment maps a label to a sentiment. Unknown labels become Neutral.
func ParseSentiment(label string) Sentiment {
	if s, ok := sentimentLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return s
	}
	return SentimentNeutral
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (s Severity) IsValid() bool {
	return s == SeverityHigh || s == SeverityMedium || s == SeverityLow
}

// Classification is the structured verdict for one feedback text.
type Classification struct {
	Category  Category  `json:"category"`
	Summary   string    `json:"summary"`
	Severity  Severity  `json:"severity"`
	Sentiment Sentiment `json:"sentiment"`
	Entities  []string  `json:"entities"`
}

// LookupCategory is ParseCategory without the Other default.
func LookupCategory(label string) (Category, bool) {
	c, ok := categoryLabels[strings.ToLower(strings.TrimSpace(label))]
	return c, ok
}

// LookupSeverity is ParseSeverity without the Medium default.
func LookupSeverity(label string) (Severity, bool) {
	s, ok := severityLabels[strings.ToLower(strings.TrimSpace(label))]
	return s, ok
}
