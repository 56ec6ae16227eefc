package render

import (
	"strings"
	"testing"
)

func TestPageEmbedsMarkdownAndFallback(t *testing.T) {
	md := "# План\n  - Введение\n    - Цели"
	page, err := Page("План <b>", md)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	html := string(page)

	if !strings.Contains(html, `<script type="text/template">`+"\n"+md+"\n</script>") {
		t.Errorf("expected raw markdown inside markmap template, got:\n%s", html)
	}
	if !strings.Contains(html, "<title>План &lt;b&gt;</title>") {
		t.Errorf("expected escaped title")
	}
	if !strings.Contains(html, "<h1>План</h1>") {
		t.Errorf("expected goldmark heading in noscript fallback")
	}
	if !strings.Contains(html, "<li>Введение") {
		t.Errorf("expected goldmark list in noscript fallback")
	}
	if !strings.Contains(html, markmapAutoloader) {
		t.Errorf("expected markmap autoloader script")
	}
}

func TestPageEscapesScriptClose(t *testing.T) {
	cases := []struct {
		name string
		md   string
	}{
		{"lower", "# x\n  - </script><script>alert(1)</script>"},
		{"upper", "# T\n  - </SCRIPT><img src=x onerror=alert(1)>"},
		{"mixed with space", "# </ScRiPt ><b>alert</b>"},
		{"comment open", "# x\n  - <!--<script>alert(1)</script>-->"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := Page("x", tc.md)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			body := string(page)
			open := `<script type="text/template">`
			start := strings.Index(body, open)
			if start < 0 {
				t.Fatalf("expected template element")
			}
			inner := body[start+len(open):]
			end := strings.Index(strings.ToLower(inner), "</script")
			if end < 0 {
				t.Fatalf("expected template element to be closed")
			}
			if !strings.Contains(inner[:end], "alert") {
				t.Errorf("expected markdown to stay inside the template element, got:\n%s", inner[:end])
			}
			if strings.Contains(inner[:end], "<!--") {
				t.Errorf("expected comment opener to be neutralised")
			}
		})
	}
}

func TestEscapeTemplateBody(t *testing.T) {
	got := escapeTemplateBody("a </SCRIPT> b </ScRiPt > c <!-- d")
	want := `a <\/SCRIPT> b <\/ScRiPt > c <\!-- d`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
