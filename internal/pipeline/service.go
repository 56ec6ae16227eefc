// Package pipeline wires text extraction, outline generation and map
// publishing together, both as direct calls and as queued jobs.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docmap/internal/blobstore"
	"github.com/dgallion1/docmap/internal/outline"
	"github.com/dgallion1/docmap/internal/parser"
	"github.com/dgallion1/docmap/internal/render"
	"github.com/dgallion1/docmap/internal/session"
)

// Extractor turns a raw payload into text.
type Extractor interface {
	Extract(ctx context.Context, in parser.Input) (string, error)
}

// Generator turns text into an outline. It never fails.
type Generator interface {
	Generate(ctx context.Context, req outline.Request) outline.Outline
}

// Format selects how published maps are stored.
type Format string

const (
	// FormatMarkdown uploads the markmap markdown and links to the hosted
	// viewer page.
	FormatMarkdown Format = "markdown"
	// FormatHTML uploads a self-contained markmap page.
	FormatHTML Format = "html"
)

// ParseFormat defaults to FormatMarkdown.
func ParseFormat(s string) Format {
	if Format(s) == FormatHTML {
		return FormatHTML
	}
	return FormatMarkdown
}

const mapKeyPrefix = "generated_maps/"

// Options are the user's choices for one map.
type Options struct {
	Depth outline.Depth
	Model string
	Title string
}

type ServiceConfig struct {
	Format Format
	// ViewerHost, when set, makes markdown maps link to
	// https://<host>/index.html?file=<key> instead of the raw object.
	ViewerHost string
}

// Service runs the document-to-map pipeline. maps may be nil when
// publishing is not used.
type Service struct {
	extractor Extractor
	generator Generator
	blobs     blobstore.Store
	maps      session.MapStore
	cfg       ServiceConfig
	log       *slog.Logger

	now   func() time.Time
	newID func() uuid.UUID
}

func NewService(ex Extractor, gen Generator, blobs blobstore.Store, maps session.MapStore, cfg ServiceConfig, log *slog.Logger) *Service {
	if cfg.Format == "" {
		cfg.Format = FormatMarkdown
	}
	return &Service{
		extractor: ex,
		generator: gen,
		blobs:     blobs,
		maps:      maps,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		newID:     uuid.New,
	}
}

// Extract returns document text or a placeholder sentence. Only
// recognition service failures are errors.
func (s *Service) Extract(ctx context.Context, in parser.Input) (string, error) {
	return s.extractor.Extract(ctx, in)
}

// Generate builds an outline from text. The result is the fixed failure
// outline when the model call does not succeed.
func (s *Service) Generate(ctx context.Context, text string, opts Options) outline.Outline {
	return s.generator.Generate(ctx, outline.Request{
		Text:  text,
		Depth: opts.Depth,
		Model: opts.Model,
		Title: opts.Title,
	})
}

// ProcessDocument extracts text from in and structures it into an outline.
// The error is non-nil only when text recognition hard-fails.
func (s *Service) ProcessDocument(ctx context.Context, in parser.Input, depth outline.Depth, model string) (outline.Outline, error) {
	return s.Process(ctx, in, Options{Depth: depth, Model: model})
}

// Process is ProcessDocument with a user-chosen title.
func (s *Service) Process(ctx context.Context, in parser.Input, opts Options) (outline.Outline, error) {
	text, err := s.Extract(ctx, in)
	if err != nil {
		return outline.Outline{}, fmt.Errorf("extract text: %w", err)
	}
	return s.Generate(ctx, text, opts), nil
}

// Publish uploads out and appends it to the user's history. Nothing is
// recorded when the upload fails.
func (s *Service) Publish(ctx context.Context, userID string, out outline.Outline, opts Options) (session.MapRecord, error) {
	if s.blobs == nil {
		return session.MapRecord{}, fmt.Errorf("publish: no blob store configured")
	}

	id := s.newID()
	obj, err := s.renderObject(id, out)
	if err != nil {
		return session.MapRecord{}, err
	}

	link, err := s.blobs.Put(ctx, obj)
	if err != nil {
		return session.MapRecord{}, fmt.Errorf("upload map: %w", err)
	}
	if s.cfg.Format == FormatMarkdown && s.cfg.ViewerHost != "" {
		link = blobstore.ViewerURL(s.cfg.ViewerHost, obj.Key)
	}

	rec := session.MapRecord{
		ID:        id,
		UserID:    userID,
		Title:     out.Title,
		Depth:     string(opts.Depth),
		Model:     opts.Model,
		Nodes:     out.Nodes,
		Markdown:  out.Markdown,
		URL:       link,
		Key:       obj.Key,
		CreatedAt: s.now().UTC(),
	}
	if s.maps != nil {
		if err := s.maps.Put(ctx, rec); err != nil {
			return session.MapRecord{}, fmt.Errorf("save map record: %w", err)
		}
	}

	s.log.Info("map published", "user_id", userID, "map_id", id.String(), "key", obj.Key, "format", string(s.cfg.Format))
	return rec, nil
}

func (s *Service) renderObject(id uuid.UUID, out outline.Outline) (blobstore.Object, error) {
	switch s.cfg.Format {
	case FormatHTML:
		page, err := render.Page(out.Title, out.Markdown)
		if err != nil {
			return blobstore.Object{}, err
		}
		return blobstore.Object{
			Key:          mapKeyPrefix + id.String() + ".html",
			ContentType:  "text/html; charset=utf-8",
			CacheControl: "max-age=0",
			Public:       true,
			Data:         page,
		}, nil
	default:
		return blobstore.Object{
			Key:         mapKeyPrefix + id.String() + ".md",
			ContentType: "text/markdown; charset=utf-8",
			Data:        []byte(out.Markdown),
		}, nil
	}
}
