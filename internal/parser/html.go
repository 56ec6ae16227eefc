package parser

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/net/html"
)

var htmlStrategy = Strategy{
	Name: "html",
	Run: func(_ context.Context, in Input) Result {
		text, err := htmlText(in.Data)
		if err != nil {
			return Empty()
		}
		return found(text)
	},
}

// htmlText returns the document's block-level text, one block per line.
func htmlText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	var blocks []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			case "h1", "h2", "h3", "h4", "h5", "h6", "p", "li", "td", "th", "blockquote", "pre", "dt", "dd", "figcaption":
				if t := textContent(n); t != "" {
					blocks = append(blocks, t)
				}
				return
			}
		}
		if n.Type == html.TextNode && isLooseText(n) {
			if t := collapseSpace(n.Data); t != "" {
				blocks = append(blocks, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(blocks, "\n"), nil
}

// isLooseText reports whether a text node sits directly in a container
// element such as body or div rather than inside a recognised block.
func isLooseText(n *html.Node) bool {
	if n.Parent == nil || n.Parent.Type != html.ElementNode {
		return false
	}
	switch n.Parent.Data {
	case "body", "div", "section", "article", "main", "span", "a":
		return true
	}
	return false
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return collapseSpace(buf.String())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
