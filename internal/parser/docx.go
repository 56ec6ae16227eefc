package parser

import (
	"bytes"
	"context"
	"strings"

	"github.com/fumiama/go-docx"
)

var docxStrategy = Strategy{
	Name: "docx",
	Run: func(_ context.Context, in Input) Result {
		text, err := docxText(in.Data)
		if err != nil {
			return Empty()
		}
		return found(text)
	},
}

// docxText joins the non-blank paragraphs of the document body.
func docxText(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var paras []string
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		if text := paragraphText(para); text != "" {
			paras = append(paras, text)
		}
	}
	return strings.Join(paras, "\n"), nil
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
