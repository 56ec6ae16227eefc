package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var pptxStrategy = Strategy{
	Name: "pptx",
	Run: func(_ context.Context, in Input) Result {
		text, err := pptxText(in.Data)
		if err != nil {
			return Empty()
		}
		return found(text)
	},
}

var slidePath = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

type slideFile struct {
	num  int
	file *zip.File
}

// pptxText collects the text of every text-bearing shape, slide by slide.
func pptxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var slides []slideFile
	for _, f := range zr.File {
		m := slidePath.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slideFile{num: n, file: f})
	}
	if len(slides) == 0 {
		return "", errors.New("pptx: no slides")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var shapes []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", err
		}
		texts, err := slideShapeTexts(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		shapes = append(shapes, texts...)
	}
	return strings.Join(shapes, "\n"), nil
}

// slideShapeTexts returns the trimmed, non-empty text of each p:sp shape
// in document order. Paragraphs inside a shape are joined with newlines.
func slideShapeTexts(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		out    []string
		inSp   bool
		inPara bool
		inText bool
		paras  []string
		cur    strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sp":
				inSp = true
				paras = paras[:0]
			case "p":
				if inSp {
					inPara = true
					cur.Reset()
				}
			case "t":
				inText = inPara
			case "br":
				if inPara {
					cur.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inPara {
					paras = append(paras, cur.String())
					inPara = false
				}
			case "sp":
				if text := strings.TrimSpace(strings.Join(paras, "\n")); text != "" {
					out = append(out, text)
				}
				inSp = false
			}
		}
	}
}
