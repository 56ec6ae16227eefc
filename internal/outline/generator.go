package outline

import (
	"context"
	"log/slog"
	"time"
)

// Completer sends one system+user exchange to the backend resolved from
// model and returns the raw reply text.
type Completer interface {
	Complete(ctx context.Context, model, system, user string) (string, error)
}

// Request is one generation call.
type Request struct {
	Text  string
	Depth Depth
	Model string
	// Title, when set, replaces the model's title.
	Title string
}

// Generator turns extracted text into an Outline.
type Generator struct {
	llm Completer
	log *slog.Logger
}

func NewGenerator(llm Completer, log *slog.Logger) *Generator {
	return &Generator{llm: llm, log: log}
}

// Generate makes exactly one completion call. It never fails: transport
// errors, non-success statuses and malformed replies all yield Failed().
func (g *Generator) Generate(ctx context.Context, req Request) Outline {
	log := g.log.With("model", req.Model, "depth", string(req.Depth))
	start := time.Now()

	raw, err := g.llm.Complete(ctx, req.Model, SystemPrompt, BuildUserPrompt(req.Text, req.Depth))
	if err != nil {
		log.Error("completion failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return Failed()
	}

	out, err := Parse(raw, req.Title)
	if err != nil {
		log.Warn("model reply rejected", "error", err)
		return Failed()
	}

	log.Info("outline generated",
		"title", out.Title,
		"nodes", len(out.Nodes),
		"lines", len(out.FlatLines),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out
}
