package parser

import (
	"bytes"
	"context"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

var pdfStrategy = Strategy{
	Name: "pdf",
	Run: func(_ context.Context, in Input) Result {
		text, err := pdfText(in.Data)
		if err != nil {
			return Empty()
		}
		return found(text)
	},
}

// pdfText reads the embedded text layer page by page. Pages that fail to
// decode are skipped.
func pdfText(data []byte) (string, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n"), nil
}
