package problem

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"feedback_server/adapter/out/memory"
	"feedback_server/core/domain"
	"feedback_server/core/service/classification"
	"feedback_server/core/service/cluster"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func seed(t *testing.T, mem *memory.Store, texts ...string) {
	t.Helper()
	store := cluster.NewStore(mem, zerolog.Nop())
	for _, text := range texts {
		fb := domain.NewFeedback(text, fixedTime)
		if err := mem.Feedback().Create(context.Background(), fb); err != nil {
			t.Fatal(err)
		}
		if _, _, err := store.MergeOrCreate(context.Background(), fb, classification.FallbackClassification(text)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestList_FiltersAndExamples(t *testing.T) {
	mem := memory.NewStore()
	texts := make([]string, 0, 8)
	for i := 0; i < 7; i++ {
		texts = append(texts, "无法登录，密码错误")
	}
	texts = append(texts, "价格太贵了")
	seed(t, mem, texts...)

	svc := NewService(mem)
	ctx := context.Background()

	all, err := svc.List(ctx, domain.ProblemFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if all.Total != 2 || len(all.Items) != 2 {
		t.Fatalf("List() total=%d items=%d, want 2 2", all.Total, len(all.Items))
	}
	if all.Page != 1 || all.PageSize != domain.DefaultPageSize {
		t.Errorf("paging = %d/%d, want defaults", all.Page, all.PageSize)
	}
	if got := len(all.Items[0].Examples); got != listExamples {
		t.Errorf("examples in list = %d, want %d", got, listExamples)
	}

	tests := []struct {
		name   string
		filter domain.ProblemFilter
		want   int
	}{
		{"keyword in summary", domain.ProblemFilter{Keyword: "密码"}, 1},
		{"category", domain.ProblemFilter{Category: domain.CategoryPricing}, 1},
		{"severity", domain.ProblemFilter{Severity: domain.SeverityHigh}, 1},
		{"status", domain.ProblemFilter{Status: domain.ProblemResolved}, 0},
		{"no match", domain.ProblemFilter{Keyword: "物流"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.List(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if res.Total != tt.want {
				t.Errorf("total = %d, want %d", res.Total, tt.want)
			}
		})
	}
}

func TestList_Pagination(t *testing.T) {
	mem := memory.NewStore()
	texts := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		// disjoint characters keep them apart
		texts = append(texts, fmt.Sprintf("%c%c%c%c", 'a'+rune(i*4), 'b'+rune(i*4), 'c'+rune(i*4), 'd'+rune(i*4)))
	}
	seed(t, mem, texts...)

	svc := NewService(mem)
	res, err := svc.List(context.Background(), domain.ProblemFilter{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 5 || len(res.Items) != 2 {
		t.Fatalf("total=%d items=%d, want 5 2", res.Total, len(res.Items))
	}
	if res.Items[0].Summary != texts[2] {
		t.Errorf("first item on page 2 = %q, want %q", res.Items[0].Summary, texts[2])
	}
}

func TestGet(t *testing.T) {
	mem := memory.NewStore()
	seed(t, mem, "无法登录，密码错误", "无法登录，密码错误", "无法登录，密码错误")
	svc := NewService(mem)

	id := mem.AllProblems()[0].ID
	detail, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"无法登录，密码错误", "无法登录，密码错误", "无法登录，密码错误"}
	if diff := cmp.Diff(want, detail.Examples); diff != "" {
		t.Errorf("examples mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.Get(context.Background(), 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get(9999) error = %v, want ErrNotFound", err)
	}
}

func TestResolveAndUpdateStatus(t *testing.T) {
	mem := memory.NewStore()
	seed(t, mem, "客服响应太慢")
	svc := NewService(mem)
	ctx := context.Background()
	id := mem.AllProblems()[0].ID

	p, err := svc.UpdateStatus(ctx, id, domain.ProblemProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != domain.ProblemProcessing {
		t.Errorf("status = %s, want processing", p.Status)
	}

	p, err = svc.Resolve(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != domain.ProblemResolved {
		t.Errorf("status = %s, want resolved", p.Status)
	}

	_, err = svc.UpdateStatus(ctx, id, "archived")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("UpdateStatus(archived) error = %v, want ValidationError", err)
	}

	if _, err := svc.Resolve(ctx, 424242); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Resolve(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	mem := memory.NewStore()
	seed(t, mem, "无法登录，密码错误", "无法登录，密码错误", "价格太贵了", "客服响应太慢")
	svc := NewService(mem)
	ctx := context.Background()

	var pricing int64
	for _, p := range mem.AllProblems() {
		if p.Category == domain.CategoryPricing {
			pricing = p.ID
		}
	}
	if _, err := svc.Resolve(ctx, pricing); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := &domain.DashboardStats{
		TotalFeedbacks:   4,
		TotalProblems:    3,
		PendingProblems:  2,
		ResolvedProblems: 1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
}
