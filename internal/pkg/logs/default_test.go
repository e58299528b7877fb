package logs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/haru-ai/haru/internal/consts"
)

func TestLogID_SharedContextKey(t *testing.T) {
	l := newDefaultLogger()

	ctx := l.SetLogID(context.Background(), "abc-123")
	if got := l.GetLogID(ctx); got != "abc-123" {
		t.Fatalf("GetLogID = %q, want abc-123", got)
	}

	// A log ID placed under the shared consts key by other packages must be
	// picked up the same way.
	ctx = context.WithValue(context.Background(), consts.CtxKeyLogID, "xyz-789")
	if got := l.GetLogID(ctx); got != "xyz-789" {
		t.Fatalf("GetLogID = %q, want xyz-789", got)
	}
}

func TestLineFormatter_IncludesLogID(t *testing.T) {
	f := &lineFormatter{}
	ctx := context.WithValue(context.Background(), consts.CtxKeyLogID, "req-42")

	line, err := f.Format(&logrus.Entry{
		Time:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "hello",
		Context: ctx,
	})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(string(line), "req-42") {
		t.Fatalf("formatted line %q missing log id", line)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"WARN", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"fatal", logrus.FatalLevel},
		{"", logrus.InfoLevel},
		{"loud", logrus.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
