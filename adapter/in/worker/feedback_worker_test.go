package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"feedback_server/adapter/out/messaging"
	"feedback_server/core/domain"
	"feedback_server/pkg/logger"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

type fakeIngest struct {
	mu      sync.Mutex
	sources []domain.ImportSource
	lines   [][]string
	reqIDs  []string
	err     error
}

func (f *fakeIngest) Ingest(ctx context.Context, raw []string) (domain.BatchReport, error) {
	return f.IngestSource(ctx, domain.SourceText, raw)
}

func (f *fakeIngest) IngestOne(ctx context.Context, text string) (domain.BatchReport, error) {
	return f.IngestSource(ctx, domain.SourceImage, []string{text})
}

func (f *fakeIngest) IngestSource(ctx context.Context, source domain.ImportSource, raw []string) (domain.BatchReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.BatchReport{}, f.err
	}
	f.reqIDs = append(f.reqIDs, logger.RequestIDFromContext(ctx))
	f.sources = append(f.sources, source)
	f.lines = append(f.lines, raw)
	now := time.Now()
	return domain.NewBatchReport("b", len(raw), len(raw), now, now), nil
}

type processorFunc func(ctx context.Context, msg *Message) error

func (f processorFunc) Process(ctx context.Context, msg *Message) error { return f(ctx, msg) }

type recordingSubmitter struct {
	msgs []*Message
	err  error
}

func (r *recordingSubmitter) Submit(msg *Message) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func TestImportProcessor(t *testing.T) {
	ingest := &fakeIngest{}
	p := NewImportProcessor(ingest, zerolog.Nop())

	msg := NewMessage("feedback:import", &domain.ImportJob{ID: "j1", Lines: []string{"a", "b"}})
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if diff := cmp.Diff([]domain.ImportSource{domain.SourceAsync}, ingest.sources); diff != "" {
		t.Errorf("sources (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"a", "b"}}, ingest.lines); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}

	if err := p.Process(context.Background(), &Message{}); err == nil {
		t.Error("Process should reject a message without a job")
	}

	ingest.err = &domain.ValidationError{Field: "content", Err: domain.ErrEmptyBatch}
	err := p.Process(context.Background(), msg)
	if !errors.Is(err, domain.ErrEmptyBatch) {
		t.Errorf("err = %v, want ErrEmptyBatch", err)
	}
}

func TestMessageSource(t *testing.T) {
	tests := []struct {
		msg  *Message
		want domain.ImportSource
	}{
		{&Message{}, domain.SourceAsync},
		{&Message{Job: &domain.ImportJob{}}, domain.SourceAsync},
		{&Message{Job: &domain.ImportJob{Source: domain.SourceFile}}, domain.SourceFile},
	}
	for _, tt := range tests {
		if got := tt.msg.Source(); got != tt.want {
			t.Errorf("Source() = %q, want %q", got, tt.want)
		}
	}
}

func TestPool_ProcessesAll(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	proc := processorFunc(func(_ context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen[msg.Job.ID] = true
		if msg.Job.ID == "bad" {
			return errors.New("boom")
		}
		return nil
	})

	p := NewPool(proc, &PoolConfig{Workers: 3, WorkerChanSize: 4, JobTimeout: time.Second}, nil, zerolog.Nop())
	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	ids := []string{"a", "b", "c", "d", "bad"}
	for _, id := range ids {
		if err := p.Submit(NewMessage("s", &domain.ImportJob{ID: id})); err != nil {
			t.Fatalf("Submit(%s): %v", id, err)
		}
	}
	p.Stop()

	if len(seen) != len(ids) {
		t.Errorf("processed %d jobs, want %d", len(seen), len(ids))
	}
	m := p.Metrics()
	if m.JobsProcessed != 4 || m.JobsFailed != 1 || m.InFlight != 0 {
		t.Errorf("metrics = %+v", m)
	}

	if err := p.Submit(NewMessage("s", &domain.ImportJob{ID: "late"})); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Submit after Stop = %v, want ErrPoolStopped", err)
	}
}

func TestDispatcher(t *testing.T) {
	sub := &recordingSubmitter{}
	d := NewDispatcher(sub)

	data, err := messaging.EncodeJob(&domain.ImportJob{ID: "j9", Source: domain.SourceAsync, Lines: []string{"x"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Handle(context.Background(), "feedback:import", []byte(data)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sub.msgs) != 1 || sub.msgs[0].Job.ID != "j9" || sub.msgs[0].Stream != "feedback:import" {
		t.Errorf("submitted = %+v", sub.msgs)
	}

	if err := d.Handle(context.Background(), "feedback:import", []byte("{")); err == nil {
		t.Error("Handle should fail on an undecodable payload")
	}

	sub.err = ErrPoolStopped
	if err := d.Handle(context.Background(), "feedback:import", []byte(data)); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("err = %v, want ErrPoolStopped", err)
	}
}

func TestImportProcessor_CarriesRequestID(t *testing.T) {
	ingest := &fakeIngest{}
	p := NewImportProcessor(ingest, zerolog.Nop())

	jobs := []*domain.ImportJob{
		{ID: "j1", RequestID: "req-42", Lines: []string{"a"}},
		{ID: "j2", Lines: []string{"b"}},
	}
	for _, job := range jobs {
		if err := p.Process(context.Background(), NewMessage("feedback:import", job)); err != nil {
			t.Fatalf("Process(%s): %v", job.ID, err)
		}
	}

	if diff := cmp.Diff([]string{"req-42", ""}, ingest.reqIDs); diff != "" {
		t.Errorf("request ids seen by ingest (-want +got):\n%s", diff)
	}
}
