package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-1")
	childCtx, child := StartChildSpan(ctx, "resolve")
	_, grandchild := StartChildSpan(childCtx, "overlap")
	grandchild.SetAttr("field", "tokens")
	grandchild.End()
	child.End()
	root.End()

	if got := len(root.Children()); got != 1 {
		t.Fatalf("root children = %d, want 1", got)
	}
	if child.TraceID != "req-1" || grandchild.TraceID != "req-1" {
		t.Errorf("trace id not propagated: %q %q", child.TraceID, grandchild.TraceID)
	}
	if SpanFromContext(childCtx) != child {
		t.Errorf("SpanFromContext returned the wrong span")
	}
}

func TestDetachedChild(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	span.End()
	if span.TraceID != "" {
		t.Errorf("detached span got trace id %q", span.TraceID)
	}
}

func TestLog(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-2")
	_, child := StartChildSpan(ctx, "question_query")
	child.SetAttr("total", 3)
	child.End()
	root.End()

	var buf bytes.Buffer
	root.Log(ctx, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	if strings.Count(out, "msg=span") != 2 {
		t.Fatalf("expected two span lines, got:\n%s", out)
	}
	if !strings.Contains(out, "total=3") || !strings.Contains(out, "depth=1") {
		t.Errorf("child attributes missing:\n%s", out)
	}

	buf.Reset()
	root.Log(ctx, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	if buf.Len() != 0 {
		t.Errorf("expected nothing logged above debug, got:\n%s", buf.String())
	}
}
