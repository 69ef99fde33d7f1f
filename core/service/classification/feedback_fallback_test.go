package classification

import (
	"strings"
	"testing"

	"feedback_server/core/domain"
)

func TestFallbackCategory(t *testing.T) {
	tests := []struct {
		text string
		want domain.Category
	}{
		{"无法登录，密码错误", domain.CategoryTechnical},
		{"账号被锁定", domain.CategoryTechnical},
		{"客服态度很差", domain.CategoryService},
		{"响应太慢", domain.CategoryService},
		{"价格太高", domain.CategoryPricing},
		{"收费不合理", domain.CategoryPricing},
		{"太贵了", domain.CategoryPricing},
		{"希望增加导出功能", domain.CategoryFeatureRequest},
		{"Please add a dark mode feature", domain.CategoryFeatureRequest},
		{"Login keeps failing", domain.CategoryTechnical},
		{"今天天气不错", domain.CategoryOther},
		// technical keywords win over later rules
		{"登录服务价格", domain.CategoryTechnical},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := FallbackCategory(tt.text); got != tt.want {
				t.Errorf("FallbackCategory(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestFallbackSeverity(t *testing.T) {
	tests := []struct {
		text string
		want domain.Severity
	}{
		{"无法登录", domain.SeverityHigh},
		{"不能支付", domain.SeverityHigh},
		{"上传失败", domain.SeverityHigh},
		{"I cannot log in", domain.SeverityHigh},
		{"希望增加功能", domain.SeverityMedium},
	}

	for _, tt := range tests {
		if got := FallbackSeverity(tt.text); got != tt.want {
			t.Errorf("FallbackSeverity(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestFallbackSentiment(t *testing.T) {
	tests := []struct {
		text string
		want domain.Sentiment
	}{
		{"非常满意", domain.SentimentPositive},
		{"体验很好", domain.SentimentPositive},
		{"我很不满意", domain.SentimentNegative},
		{"服务糟糕", domain.SentimentNegative},
		{"一般般", domain.SentimentNeutral},
		{"I am unsatisfied", domain.SentimentNegative},
	}

	for _, tt := range tests {
		if got := FallbackSentiment(tt.text); got != tt.want {
			t.Errorf("FallbackSentiment(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestTruncateSummary(t *testing.T) {
	long := strings.Repeat("长", 60)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"short", "无法登录", "无法登录"},
		{"exact", strings.Repeat("长", 50), strings.Repeat("长", 50)},
		{"long", long, strings.Repeat("长", 50) + "..."},
		{"trimmed", "  hi  ", "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateSummary(tt.text); got != tt.want {
				t.Errorf("TruncateSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}
