package outline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type fakeCompleter struct {
	reply string
	err   error

	calls  int
	model  string
	system string
	user   string
}

func (f *fakeCompleter) Complete(_ context.Context, model, system, user string) (string, error) {
	f.calls++
	f.model, f.system, f.user = model, system, user
	return f.reply, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerate_Success(t *testing.T) {
	fc := &fakeCompleter{reply: `{"title":"T","nodes":[{"title":"A","children":[{"title":"B","children":[]}]}]}`}
	g := NewGenerator(fc, discardLogger())

	o := g.Generate(context.Background(), Request{Text: "документ", Depth: DepthDetailed, Model: "Авто"})

	if fc.calls != 1 {
		t.Errorf("expected exactly one completion call, got %d", fc.calls)
	}
	if fc.model != "Авто" {
		t.Errorf("expected model selector forwarded, got %q", fc.model)
	}
	if fc.system != SystemPrompt {
		t.Error("expected fixed system prompt")
	}
	if !strings.Contains(fc.user, "документ") || !strings.Contains(fc.user, DepthHint(DepthDetailed)) {
		t.Errorf("user prompt missing text or hint: %q", fc.user)
	}
	if o.Markdown != "# T\n  - A\n    - B" {
		t.Errorf("unexpected markdown %q", o.Markdown)
	}
}

func TestGenerate_NonJSONReplyFallsBack(t *testing.T) {
	fc := &fakeCompleter{reply: "Извините, я не могу помочь."}
	o := NewGenerator(fc, discardLogger()).Generate(context.Background(), Request{Text: "x"})

	if o.Title != "Ошибка генерации" {
		t.Errorf("expected failure title, got %q", o.Title)
	}
	if len(o.FlatLines) != 1 {
		t.Errorf("expected single flat line, got %q", o.FlatLines)
	}
}

func TestGenerate_NullReplyFallsBack(t *testing.T) {
	fc := &fakeCompleter{reply: "null"}
	o := NewGenerator(fc, discardLogger()).Generate(context.Background(), Request{Text: "x"})
	if !o.IsFailed() {
		t.Errorf("expected failure outline for null reply, got %+v", o)
	}
}

func TestGenerate_CompletionErrorFallsBack(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("status 500")}
	o := NewGenerator(fc, discardLogger()).Generate(context.Background(), Request{Text: "x"})
	if !o.IsFailed() {
		t.Errorf("expected failure outline, got %+v", o)
	}
	if fc.calls != 1 {
		t.Errorf("expected no retries, got %d calls", fc.calls)
	}
}

func TestBuildUserPrompt_UnknownDepthEmptyHint(t *testing.T) {
	got := BuildUserPrompt("text", Depth("extreme"))
	if !strings.HasSuffix(got, "Глубина анализа: ") {
		t.Errorf("expected empty hint for unknown depth, got %q", got)
	}
}

func TestParseDepth(t *testing.T) {
	tests := []struct {
		in   string
		want Depth
	}{
		{"Кратко", DepthBrief},
		{"средне", DepthBalanced},
		{"Подробно", DepthDetailed},
		{"Лёгкая", DepthBrief},
		{"Средняя", DepthBalanced},
		{"Глубокая", DepthDetailed},
		{"detailed", DepthDetailed},
		{" brief ", DepthBrief},
		{"unknown", Depth("unknown")},
	}
	for _, tt := range tests {
		if got := ParseDepth(tt.in); got != tt.want {
			t.Errorf("ParseDepth(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if DepthHint(ParseDepth("unknown")) != "" {
		t.Error("expected unknown depth to map to empty hint")
	}
	for _, d := range []Depth{DepthBrief, DepthBalanced, DepthDetailed} {
		if DepthHint(d) == "" {
			t.Errorf("expected hint for %q", d)
		}
	}
}
