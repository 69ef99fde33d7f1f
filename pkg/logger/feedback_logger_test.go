package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestWithContext(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
		deny string
	}{
		{
			name: "request id present",
			ctx:  ContextWithRequestID(context.Background(), "req-1"),
			want: `"request_id":"req-1"`,
		},
		{
			name: "no request id",
			ctx:  context.Background(),
			deny: `"request_id"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(Config{Level: LevelDebug, Output: &buf})

			l.WithContext(tt.ctx).Info("hello %s", "world")

			out := buf.String()
			if !strings.Contains(out, `"message":"hello world"`) {
				t.Errorf("output = %s, want formatted message", out)
			}
			if tt.want != "" && !strings.Contains(out, tt.want) {
				t.Errorf("output = %s, want %s", out, tt.want)
			}
			if tt.deny != "" && strings.Contains(out, tt.deny) {
				t.Errorf("output = %s, should not contain %s", out, tt.deny)
			}
		})
	}
}

func TestRequestIDFromContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context id = %q, want empty", got)
	}
	ctx := ContextWithRequestID(context.Background(), "abc")
	if got := RequestIDFromContext(ctx); got != "abc" {
		t.Errorf("id = %q, want abc", got)
	}
}

func TestWithDuration(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf})

	l.WithDuration(1500 * time.Microsecond).Info("done")

	if !strings.Contains(buf.String(), `"duration_ms":1.5`) {
		t.Errorf("output = %s, want duration_ms 1.5", buf.String())
	}
}
