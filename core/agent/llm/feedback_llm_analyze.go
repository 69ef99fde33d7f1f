package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"feedback_server/core/domain"
	"feedback_server/core/port/out"

	"github.com/goccy/go-json"
)

const analyzeSystemPrompt = `你是一个客户反馈分析助手，擅长分析客户反馈内容并提取关键信息。只返回一个JSON对象。`

const analyzeUserPrompt = `请分析以下客户反馈，提取相关信息：
客户反馈：%s

请按照以下JSON格式返回分析结果：
{
  "type": "问题类型",
  "summary": "问题摘要",
  "severity": "严重程度",
  "entities": ["实体列表"],
  "sentiment": "情感倾向"
}

问题类型选项：技术问题、服务态度、价格异议、功能建议、其他
严重程度选项：高、中、低
情感倾向选项：正面、中性、负面`

const summarizeSystemPrompt = `你是一个文本摘要助手，擅长生成简洁的文本摘要。`

const summarizeUserPrompt = `请为以下文本生成简洁的摘要，不超过50个字符：
%s`

// maxPromptRunes bounds the feedback text embedded in a prompt.
const maxPromptRunes = 2000

// AnalysisResponse is the JSON object the model is asked to return.
type AnalysisResponse struct {
	Type      string   `json:"type"`
	Summary   string   `json:"summary"`
	Severity  string   `json:"severity"`
	Entities  []string `json:"entities"`
	Sentiment string   `json:"sentiment"`
}

// Classification normalizes the raw labels. Unknown values fall back to
// Other, Medium and Neutral.
func (r *AnalysisResponse) Classification() *domain.Classification {
	entities := make([]string, 0, len(r.Entities))
	for _, e := range r.Entities {
		if e = strings.TrimSpace(e); e != "" {
			entities = append(entities, e)
		}
	}
	return &domain.Classification{
		Category:  domain.ParseCategory(r.Type),
		Summary:   strings.TrimSpace(r.Summary),
		Severity:  domain.ParseSeverity(r.Severity),
		Sentiment: domain.ParseSentiment(r.Sentiment),
		Entities:  entities,
	}
}

// Analyzer builds feedback prompts on top of a TextCompleter.
type Analyzer struct {
	llm out.TextCompleter
}

func NewAnalyzer(llm out.TextCompleter) *Analyzer {
	return &Analyzer{llm: llm}
}

// AnalyzeFeedback asks the model for a classification. Errors are
// *domain.ClassifierTransportError or *domain.ClassifierParseError.
func (a *Analyzer) AnalyzeFeedback(ctx context.Context, text string) (*domain.Classification, error) {
	reply, err := a.llm.Complete(ctx, analyzeSystemPrompt, fmt.Sprintf(analyzeUserPrompt, truncateRunes(text, maxPromptRunes)))
	if err != nil {
		return nil, err
	}
	return ParseAnalysis(reply)
}

// Summarize asks the model for a short summary. The reply is returned trimmed
// and may be empty.
func (a *Analyzer) Summarize(ctx context.Context, text string) (string, error) {
	reply, err := a.llm.Complete(ctx, summarizeSystemPrompt, fmt.Sprintf(summarizeUserPrompt, truncateRunes(text, maxPromptRunes)))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// ParseAnalysis reads a classification out of a model reply. The JSON object
// is taken from the first '{' to the last '}' when both exist, otherwise the
// whole reply is parsed.
func ParseAnalysis(reply string) (*domain.Classification, error) {
	body := extractJSONObject(reply)
	if strings.TrimSpace(body) == "" {
		return nil, &domain.ClassifierParseError{Reply: reply, Err: domain.ErrEmptyReply}
	}

	var resp AnalysisResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, &domain.ClassifierParseError{Reply: reply, Err: err}
	}
	if resp.Type == "" && resp.Summary == "" && resp.Severity == "" {
		return nil, &domain.ClassifierParseError{Reply: reply, Err: errors.New("reply has no classification fields")}
	}
	return resp.Classification(), nil
}

func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
