package classification

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"feedback_server/core/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

type fakeAnalyzer struct {
	verdict    *domain.Classification
	err        error
	summary    string
	summaryErr error
	delay      time.Duration
	calls      atomic.Int32
}

func (f *fakeAnalyzer) AnalyzeFeedback(ctx context.Context, text string) (*domain.Classification, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.verdict
	return &cp, nil
}

func (f *fakeAnalyzer) Summarize(ctx context.Context, text string) (string, error) {
	return f.summary, f.summaryErr
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]*domain.Classification
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]*domain.Classification)}
}

func (m *mapCache) Get(ctx context.Context, text string) (*domain.Classification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data[text]
	return c, ok, nil
}

func (m *mapCache) Set(ctx context.Context, text string, c *domain.Classification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[text] = c
	return nil
}

var transportErr = &domain.ClassifierTransportError{Op: "test", Err: errors.New("connection refused")}

func TestClassify_FallbackOnTransportError(t *testing.T) {
	a := &fakeAnalyzer{err: transportErr, summaryErr: transportErr}
	c := NewClassifier(a, nil, zerolog.Nop())

	res := c.Classify(context.Background(), "无法登录，密码错误")

	if res.Source != SourceFallback {
		t.Errorf("Source = %s, want fallback", res.Source)
	}
	if !errors.Is(res.Err, transportErr) {
		t.Errorf("Err = %v, want transport error", res.Err)
	}
	want := &domain.Classification{
		Category:  domain.CategoryTechnical,
		Summary:   "无法登录，密码错误",
		Severity:  domain.SeverityHigh,
		Sentiment: domain.SentimentNeutral,
		Entities:  []string{},
	}
	if diff := cmp.Diff(want, res.Classification); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_FallbackIsDeterministic(t *testing.T) {
	a := &fakeAnalyzer{err: &domain.ClassifierParseError{Err: errors.New("bad json")}, summaryErr: transportErr}
	c := NewClassifier(a, nil, zerolog.Nop())

	text := "客服响应太慢了，非常糟糕，希望能改进一下服务质量，这已经是我第三次反映这个问题了，到现在还没有任何答复，请尽快处理"
	first := c.Classify(context.Background(), text)
	second := c.Classify(context.Background(), text)

	if diff := cmp.Diff(first.Classification, second.Classification); diff != "" {
		t.Errorf("fallback not deterministic (-first +second):\n%s", diff)
	}
	if got := utf8.RuneCountInString(first.Classification.Summary); got != SummaryMaxRunes+3 {
		t.Errorf("summary length = %d runes, want %d", got, SummaryMaxRunes+3)
	}
	if first.Classification.Category != domain.CategoryService {
		t.Errorf("Category = %s, want Service", first.Classification.Category)
	}
	if first.Classification.Sentiment != domain.SentimentNegative {
		t.Errorf("Sentiment = %s, want Negative", first.Classification.Sentiment)
	}
}

func TestClassify_FallbackUsesModelSummaryWhenAvailable(t *testing.T) {
	a := &fakeAnalyzer{err: &domain.ClassifierParseError{Err: errors.New("bad json")}, summary: "登录失败"}
	c := NewClassifier(a, nil, zerolog.Nop())

	res := c.Classify(context.Background(), "无法登录，密码错误")
	if res.Classification.Summary != "登录失败" {
		t.Errorf("Summary = %q, want %q", res.Classification.Summary, "登录失败")
	}
}

func TestClassify_EmptyModelSummaryIsFilled(t *testing.T) {
	a := &fakeAnalyzer{
		verdict:    &domain.Classification{Category: domain.CategoryPricing, Severity: domain.SeverityLow, Sentiment: domain.SentimentNeutral},
		summaryErr: transportErr,
	}
	cache := newMapCache()
	c := NewClassifier(a, cache, zerolog.Nop())

	res := c.Classify(context.Background(), "太贵了")
	if res.Source != SourceLLM {
		t.Errorf("Source = %s, want llm", res.Source)
	}
	if res.Classification.Summary != "太贵了" {
		t.Errorf("Summary = %q, want truncated text", res.Classification.Summary)
	}
	if len(cache.data) != 0 {
		t.Error("patched classification should not be cached")
	}
}

func TestClassify_CacheHit(t *testing.T) {
	verdict := &domain.Classification{
		Category:  domain.CategoryFeatureRequest,
		Summary:   "希望增加夜间模式",
		Severity:  domain.SeverityLow,
		Sentiment: domain.SentimentPositive,
		Entities:  []string{"夜间模式"},
	}
	a := &fakeAnalyzer{verdict: verdict}
	c := NewClassifier(a, newMapCache(), zerolog.Nop())

	first := c.Classify(context.Background(), "希望增加夜间模式")
	second := c.Classify(context.Background(), "希望增加夜间模式")

	if first.Source != SourceLLM || second.Source != SourceCache {
		t.Errorf("sources = %s, %s; want llm, cache", first.Source, second.Source)
	}
	if got := a.calls.Load(); got != 1 {
		t.Errorf("analyzer calls = %d, want 1", got)
	}
	if diff := cmp.Diff(first.Classification, second.Classification); diff != "" {
		t.Errorf("cached classification differs:\n%s", diff)
	}
}

func TestClassify_FallbackNotCached(t *testing.T) {
	a := &fakeAnalyzer{err: transportErr, summaryErr: transportErr}
	cache := newMapCache()
	c := NewClassifier(a, cache, zerolog.Nop())

	c.Classify(context.Background(), "价格太贵")
	if len(cache.data) != 0 {
		t.Errorf("cache has %d entries, want 0", len(cache.data))
	}
}

func TestClassify_ConcurrentIdenticalTextsShareOneCall(t *testing.T) {
	a := &fakeAnalyzer{
		verdict: &domain.Classification{Category: domain.CategoryOther, Summary: "x", Severity: domain.SeverityLow, Sentiment: domain.SentimentNeutral},
		delay:   50 * time.Millisecond,
	}
	c := NewClassifier(a, nil, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Classify(context.Background(), "same text")
		}()
	}
	wg.Wait()

	if got := a.calls.Load(); got >= 8 {
		t.Errorf("analyzer calls = %d, want collapsed calls", got)
	}
}
