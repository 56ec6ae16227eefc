// Package render builds the self-contained markmap page for an outline.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

const markmapAutoloader = "https://cdn.jsdelivr.net/npm/markmap-autoloader@0.16"

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
html, body { margin: 0; padding: 0; width: 100%; height: 100%; }
.markmap { position: relative; width: 100%; height: 100vh; }
.markmap > svg { width: 100%; height: 100%; }
.fallback { font-family: sans-serif; padding: 1rem; }
</style>
<script>window.markmap = { autoLoader: { toolbar: true } };</script>
<script src="{{.Autoloader}}"></script>
</head>
<body>
<div class="markmap"><script type="text/template">
{{.Markdown}}
</script></div>
<noscript><div class="fallback">{{.Fallback}}</div></noscript>
</body>
</html>
`))

type pageData struct {
	Title      string
	Autoloader string
	Markdown   template.HTML
	Fallback   template.HTML
}

// Page renders title and markdown into an HTML document that draws the
// map with markmap and falls back to plain HTML without scripts.
func Page(title, markdown string) ([]byte, error) {
	var fallback bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &fallback); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	var out bytes.Buffer
	err := pageTmpl.Execute(&out, pageData{
		Title:      title,
		Autoloader: markmapAutoloader,
		Markdown:   template.HTML(escapeTemplateBody(markdown)),
		Fallback:   template.HTML(fallback.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return out.Bytes(), nil
}

// scriptCloseRe matches a script end tag in any letter case.
var scriptCloseRe = regexp.MustCompile(`(?i)</(script)`)

// escapeTemplateBody keeps markdown from closing the surrounding script
// element early or switching it into the escaped comment state.
func escapeTemplateBody(md string) string {
	md = scriptCloseRe.ReplaceAllString(md, `<\/$1`)
	return strings.ReplaceAll(md, "<!--", `<\!--`)
}
