// Package parser turns uploaded payloads into plain text. Each payload kind
// maps to an ordered list of extraction strategies; the first one that
// yields text wins and a per-kind placeholder is returned when none do.
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Kind is the shape of the payload a user sent.
type Kind int

const (
	KindNone Kind = iota
	KindImage
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindDocument:
		return "document"
	default:
		return "none"
	}
}

// ParseKind maps "image"/"photo" and "document"/"file" to a Kind.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "photo":
		return KindImage
	case "document", "file", "doc":
		return KindDocument
	default:
		return KindNone
	}
}

// Input is one raw payload. Filename is only meaningful for documents.
type Input struct {
	Data     []byte
	Filename string
	Kind     Kind
}

// Recognizer runs OCR over raw bytes. mimeType is one of the JPEG, PNG or
// PDF hints declared in ocr.go.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, mimeType string) (string, error)
}

type outcome int

const (
	outcomeEmpty outcome = iota
	outcomeFound
	outcomeFailed
)

// Result is the outcome of one strategy.
type Result struct {
	kind outcome
	text string
	err  error
}

func Found(text string) Result  { return Result{kind: outcomeFound, text: text} }
func Empty() Result             { return Result{kind: outcomeEmpty} }
func Failed(err error) Result   { return Result{kind: outcomeFailed, err: err} }
func (r Result) IsFound() bool  { return r.kind == outcomeFound }
func (r Result) IsFailed() bool { return r.kind == outcomeFailed }

// found promotes non-blank text to Found and everything else to Empty.
func found(text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Empty()
	}
	return Found(text)
}

// Strategy is one way of pulling text out of a payload.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, in Input) Result
}

// Plan is the ordered strategy list for a payload and the text returned
// when every strategy comes back empty.
type Plan struct {
	Strategies  []Strategy
	Placeholder string
}

const noPayloadText = "Неизвестный документ"

var plainTextExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
	".log": true,
}

// Extension returns the lower-cased filename extension, including the dot.
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Extractor executes plans.
type Extractor struct {
	ocr Recognizer
	log *slog.Logger
}

func NewExtractor(ocr Recognizer, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{ocr: ocr, log: log}
}

// Plan returns the strategies for in, chosen by payload kind and, for
// documents, by filename extension. Documents with an unrecognized
// extension whose bytes sniff as an image go straight to OCR.
func (e *Extractor) Plan(in Input) Plan {
	switch in.Kind {
	case KindImage:
		return Plan{
			Strategies:  []Strategy{e.ocrStrategy("")},
			Placeholder: "Фотография с текстом, но OCR не вернул результат.",
		}
	case KindDocument:
		return e.documentPlan(in)
	default:
		return Plan{Placeholder: noPayloadText}
	}
}

func (e *Extractor) documentPlan(in Input) Plan {
	name := in.Filename
	ext := Extension(name)
	unknown := fmt.Sprintf("Документ: %s, но формат не распознан.", name)

	if plainTextExtensions[ext] {
		return Plan{
			Strategies:  []Strategy{textStrategy},
			Placeholder: fmt.Sprintf("Документ %s, но текст не удалось прочитать.", name),
		}
	}

	switch ext {
	case ".pdf":
		return Plan{
			Strategies:  []Strategy{pdfStrategy, e.ocrStrategy(mimePDF)},
			Placeholder: fmt.Sprintf("PDF %s, но ни текст, ни OCR не дали результата.", name),
		}
	case ".docx":
		return Plan{
			Strategies:  []Strategy{docxStrategy, textStrategy, e.ocrStrategy(mimeJPEG)},
			Placeholder: unknown,
		}
	case ".pptx":
		return Plan{
			Strategies:  []Strategy{pptxStrategy, textStrategy, e.ocrStrategy(mimeJPEG)},
			Placeholder: unknown,
		}
	case ".html", ".htm":
		return Plan{
			Strategies:  []Strategy{htmlStrategy, textStrategy, e.ocrStrategy(mimeJPEG)},
			Placeholder: unknown,
		}
	default:
		if isImage(in.Data) {
			return Plan{
				Strategies:  []Strategy{e.ocrStrategy("")},
				Placeholder: unknown,
			}
		}
		return Plan{
			Strategies:  []Strategy{textStrategy, e.ocrStrategy(mimeJPEG)},
			Placeholder: unknown,
		}
	}
}

// Extract returns the text of in or a placeholder sentence. The only
// errors are hard failures from the recognition service.
func (e *Extractor) Extract(ctx context.Context, in Input) (string, error) {
	plan := e.Plan(in)
	log := e.log.With("kind", in.Kind.String(), "filename", in.Filename, "bytes", len(in.Data))

	for _, s := range plan.Strategies {
		res := e.run(ctx, s, in)
		switch {
		case res.IsFailed():
			log.Error("extraction failed", "strategy", s.Name, "error", res.err)
			return "", res.err
		case res.IsFound():
			log.Debug("text extracted", "strategy", s.Name, "chars", len(res.text))
			return res.text, nil
		}
		log.Debug("strategy empty", "strategy", s.Name)
	}

	log.Info("no text extracted, using placeholder")
	return plan.Placeholder, nil
}

// run shields the caller from panics inside third-party decoders.
func (e *Extractor) run(ctx context.Context, s Strategy, in Input) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("strategy panicked", "strategy", s.Name, "panic", fmt.Sprint(r))
			res = Empty()
		}
	}()
	return s.Run(ctx, in)
}
