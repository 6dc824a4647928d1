package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "boardId", "b1")
	log.Info(ctx, "inf", "sessionId", "s1")
	log.Warn(ctx, "wrn", "retries", 2)
	log.Error(ctx, "err", "status", 500)

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "msg=dbg", "boardId=b1",
		"level=INFO", "msg=inf", "sessionId=s1",
		"level=WARN", "msg=wrn", "retries=2",
		"level=ERROR", "msg=err", "status=500",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSlogLogger_With_CarriesAttributes(t *testing.T) {
	log, buf := newTestLogger(t)

	child := log.With("component", "ws", "boardId", "b1")
	child.Info(context.Background(), "client connected", "sessionId", "s1")

	out := buf.String()
	for _, want := range []string{"component=ws", "boardId=b1", "sessionId=s1", "msg=\"client connected\""} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}
