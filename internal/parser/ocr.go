package parser

import (
	"context"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Mime hints understood by the recognition service.
const (
	mimeJPEG = "JPEG"
	mimePNG  = "PNG"
	mimePDF  = "PDF"
)

// ocrStrategy hands the raw bytes to the recognizer. An empty hint means
// the hint is sniffed from the bytes. Recognizer errors are hard failures.
func (e *Extractor) ocrStrategy(hint string) Strategy {
	return Strategy{
		Name: "ocr",
		Run: func(ctx context.Context, in Input) Result {
			if len(in.Data) == 0 || e.ocr == nil {
				return Empty()
			}
			mime := hint
			if mime == "" {
				mime = imageMime(in.Data)
			}
			text, err := e.ocr.Recognize(ctx, in.Data, mime)
			if err != nil {
				return Failed(err)
			}
			return found(text)
		},
	}
}

// isImage reports whether data sniffs as any image type.
func isImage(data []byte) bool {
	return len(data) > 0 && strings.HasPrefix(mimetype.Detect(data).String(), "image/")
}

// imageMime maps sniffed PNG content to the PNG hint and everything else
// to JPEG.
func imageMime(data []byte) string {
	if mimetype.Detect(data).Is("image/png") {
		return mimePNG
	}
	return mimeJPEG
}
