package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"feedback_server/adapter/out/memory"
	"feedback_server/core/domain"
	"feedback_server/core/service/classification"
	"feedback_server/core/service/cluster"
	"feedback_server/core/service/ingest"
	"feedback_server/core/service/problem"
	"feedback_server/infra/middleware"
	"feedback_server/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

type offlineAnalyzer struct{}

var errOffline = &domain.ClassifierTransportError{Op: "test", Err: errors.New("offline")}

func (offlineAnalyzer) AnalyzeFeedback(context.Context, string) (*domain.Classification, error) {
	return nil, errOffline
}

func (offlineAnalyzer) Summarize(context.Context, string) (string, error) {
	return "", errOffline
}

type memArchive struct {
	mu      sync.Mutex
	reports []domain.ReportView
}

func (m *memArchive) Save(_ context.Context, r domain.ReportView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func (m *memArchive) ListRecent(_ context.Context, limit int) ([]domain.ReportView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ReportView(nil), m.reports...), nil
}

type fakeProducer struct {
	jobs []*domain.ImportJob
	err  error
}

func (f *fakeProducer) PublishImport(_ context.Context, job *domain.ImportJob) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, job)
	return "1-0", nil
}

type testEnv struct {
	app      *fiber.App
	mem      *memory.Store
	producer *fakeProducer
	archive  *memArchive
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mem := memory.NewStore()
	archive := &memArchive{}
	pipeline := ingest.NewPipeline(ingest.Config{
		Feedback:    mem.Feedback(),
		Classifier:  classification.NewClassifier(offlineAnalyzer{}, nil, zerolog.Nop()),
		Merger:      cluster.NewStore(mem, zerolog.Nop()),
		Archive:     archive,
		Concurrency: 1,
		Logger:      zerolog.Nop(),
	})
	producer := &fakeProducer{}

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	registry := metrics.NewRegistry(10)
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(registry))
	NewImportHandler(ImportHandlerConfig{
		Ingest:   pipeline,
		Producer: producer,
		Archive:  archive,
	}).Register(app)
	NewProblemHandler(problem.NewService(mem)).Register(app)
	NewHealthHandler(registry).
		WithCheck("postgres", nil).
		WithCheck("redis", func(context.Context) error { return nil }).
		Register(app)

	return &testEnv{app: app, mem: mem, producer: producer, archive: archive}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		Total    int  `json:"total"`
		Page     int  `json:"page"`
		PageSize int  `json:"page_size"`
		HasMore  bool `json:"has_more"`
	} `json:"meta"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, env
}

func (e *testEnv) postJSON(t *testing.T, path, body string) (int, envelope) {
	return e.do(t, "POST", path, strings.NewReader(body), fiber.MIMEApplicationJSON)
}

func TestImportText(t *testing.T) {
	env := newTestEnv(t)

	status, res := env.postJSON(t, "/api/feedback/import/text", `{"content":"无法登录账号\n\n  \n无法登录账号"}`)
	if status != 200 || !res.Success {
		t.Fatalf("status = %d, body = %+v", status, res)
	}
	if res.Message != "成功导入 2 条反馈" {
		t.Errorf("message = %q", res.Message)
	}

	var body reportBody
	if err := json.Unmarshal(res.Data, &body); err != nil {
		t.Fatal(err)
	}
	if body.Stats != (reportStats{Total: 2, Success: 2}) {
		t.Errorf("stats = %+v", body.Stats)
	}

	problems := env.mem.AllProblems()
	if len(problems) != 1 || problems[0].FeedbackCount != 2 {
		t.Errorf("problems = %+v, want one with count 2", problems)
	}
	if len(env.archive.reports) != 1 || env.archive.reports[0].Source != string(domain.SourceText) {
		t.Errorf("archived = %+v", env.archive.reports)
	}
}

func TestImportText_Rejects(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing content", `{}`, "MISSING_FIELD"},
		{"blank content", `{"content":"  \n "}`, "MISSING_FIELD"},
		{"bad json", `{`, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := env.postJSON(t, "/api/feedback/import/text", tt.body)
			if status != 400 {
				t.Errorf("status = %d, want 400", status)
			}
			if res.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", res.Error.Code, tt.code)
			}
		})
	}
}

func TestImportFile(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "feedback.txt")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("\xEF\xBB\xBF价格太贵了\r\n客服响应太慢\r\n"))
	w.Close()

	status, res := env.do(t, "POST", "/api/feedback/import/file", &buf, w.FormDataContentType())
	if status != 200 {
		t.Fatalf("status = %d, body = %+v", status, res)
	}
	if res.Message != "成功导入 2 条反馈" {
		t.Errorf("message = %q", res.Message)
	}

	categories := map[domain.Category]bool{}
	for _, p := range env.mem.AllProblems() {
		categories[p.Category] = true
	}
	if !categories[domain.CategoryPricing] || !categories[domain.CategoryService] {
		t.Errorf("categories = %v, want Pricing and Service", categories)
	}
}

func TestImportFile_Missing(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("other", "x")
	w.Close()

	status, _ := env.do(t, "POST", "/api/feedback/import/file", &buf, w.FormDataContentType())
	if status != 400 {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestImportImage(t *testing.T) {
	env := newTestEnv(t)

	status, res := env.postJSON(t, "/api/feedback/import/image", `{"text":"希望增加夜间模式功能"}`)
	if status != 200 || res.Message != "成功导入 1 条反馈" {
		t.Fatalf("status = %d, body = %+v", status, res)
	}
	problems := env.mem.AllProblems()
	if len(problems) != 1 || problems[0].Category != domain.CategoryFeatureRequest {
		t.Errorf("problems = %+v", problems)
	}

	if status, _ := env.postJSON(t, "/api/feedback/import/image", `{"text":"   "}`); status != 400 {
		t.Errorf("blank text status = %d, want 400", status)
	}
}

func TestImportAsync(t *testing.T) {
	env := newTestEnv(t)

	status, res := env.postJSON(t, "/api/feedback/import/async", `{"content":"a\n\nb"}`)
	if status != 202 || !res.Success {
		t.Fatalf("status = %d, body = %+v", status, res)
	}
	if len(env.producer.jobs) != 1 {
		t.Fatalf("published %d jobs, want 1", len(env.producer.jobs))
	}
	job := env.producer.jobs[0]
	if job.ID == "" || job.Source != domain.SourceAsync || len(job.Lines) != 2 {
		t.Errorf("job = %+v", job)
	}
	if feedback, _, _ := env.mem.Counts(); feedback != 0 {
		t.Errorf("async import stored %d feedback synchronously", feedback)
	}

	env.producer.err = errors.New("redis down")
	status, res = env.postJSON(t, "/api/feedback/import/async", `{"content":"a"}`)
	if status != 503 || res.Error.Code != "QUEUE_ERROR" {
		t.Errorf("status = %d, code = %q, want 503 QUEUE_ERROR", status, res.Error.Code)
	}
}

func TestListImports(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/api/feedback/import/text", `{"content":"x"}`)

	status, res := env.do(t, "GET", "/api/feedback/imports", nil, "")
	if status != 200 {
		t.Fatalf("status = %d", status)
	}
	var reports []domain.ReportView
	if err := json.Unmarshal(res.Data, &reports); err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].Total != 1 {
		t.Errorf("reports = %+v", reports)
	}
}

func TestProblemEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/api/feedback/import/text", `{"content":"无法登录账号\n价格太贵\n价格太贵"}`)

	status, res := env.do(t, "GET", "/api/problems/list?type=price&pageSize=10", nil, "")
	if status != 200 {
		t.Fatalf("list status = %d", status)
	}
	var items []domain.ProblemDetail
	if err := json.Unmarshal(res.Data, &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].FeedbackCount != 2 || len(items[0].Examples) != 2 {
		t.Fatalf("items = %+v", items)
	}
	if res.Meta.Total != 1 || res.Meta.PageSize != 10 || res.Meta.HasMore {
		t.Errorf("meta = %+v", res.Meta)
	}

	path := "/api/problems/" + itoa(items[0].ID)
	if status, _ := env.do(t, "GET", path, nil, ""); status != 200 {
		t.Errorf("get status = %d", status)
	}
	if status, _ := env.do(t, "POST", path+"/resolve", nil, ""); status != 200 {
		t.Errorf("resolve status = %d", status)
	}
	if status, _ := env.do(t, "GET", "/api/problems/list?status=resolved", nil, ""); status != 200 {
		t.Errorf("list resolved status = %d", status)
	}

	status, res = env.postJSON(t, path+"/update-status", `{"status":"archived"}`)
	if status != 400 || res.Error.Code != "INVALID_INPUT" {
		t.Errorf("invalid status: %d %q", status, res.Error.Code)
	}
	if status, _ := env.postJSON(t, path+"/update-status", `{"status":"processing"}`); status != 200 {
		t.Errorf("update status = %d", status)
	}
	if status, _ := env.postJSON(t, path+"/update-status", `{}`); status != 400 {
		t.Errorf("missing status = %d, want 400", status)
	}
}

func TestProblemEndpoints_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method, path string
		want         int
	}{
		{"GET", "/api/problems/999", 404},
		{"GET", "/api/problems/abc", 400},
		{"POST", "/api/problems/999/resolve", 404},
		{"GET", "/api/problems/list?type=unknown", 400},
		{"GET", "/api/problems/list?severity=urgent", 400},
		{"GET", "/api/problems/list?page=x", 400},
	}
	for _, tt := range tests {
		if status, _ := env.do(t, tt.method, tt.path, nil, ""); status != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, status, tt.want)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/ready", nil)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("ready status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Checks["postgres"] != "not configured" || body.Checks["redis"] != "healthy" {
		t.Errorf("checks = %v", body.Checks)
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.app.Test(httptest.NewRequest("GET", "/health", nil), -1); err != nil {
		t.Fatal(err)
	}

	resp, err := env.app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Latency map[string]map[string]any `json:"latency"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body.Latency["GET /health"]; !ok {
		t.Errorf("latency keys = %v, want GET /health", body.Latency)
	}
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/api/feedback/import/text", `{"content":"无法登录账号\n价格太贵\n价格太贵"}`)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/api/dashboard/stats", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got domain.DashboardStats
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	want := domain.DashboardStats{TotalFeedbacks: 3, TotalProblems: 2, PendingProblems: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}
