package outline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// wireOutline mirrors the model's JSON contract. Titles stay raw so that
// numbers and booleans can be stringified instead of failing the decode.
type wireOutline struct {
	Title json.RawMessage `json:"title"`
	Nodes []wireNode      `json:"nodes"`
}

type wireNode struct {
	Title    json.RawMessage `json:"title"`
	Children []wireNode      `json:"children"`
}

// Parse decodes a model reply into an Outline. Defaults are applied here
// and nowhere else: a missing or blank title becomes "Без названия",
// missing nodes and children become empty slices, titles are trimmed.
// titleOverride, when non-blank, replaces the model's title.
func Parse(raw, titleOverride string) (Outline, error) {
	body := stripCodeBlock(raw)
	if body == "" {
		return Outline{}, fmt.Errorf("empty model reply")
	}

	// null and non-object replies carry no outline.
	if !strings.HasPrefix(body, "{") {
		return Outline{}, fmt.Errorf("outline reply is not a json object: %s", truncate(body, 40))
	}

	var w wireOutline
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return Outline{}, fmt.Errorf("parse outline json: %w (raw: %s)", err, truncate(body, 200))
	}

	title, err := scalarText(w.Title)
	if err != nil {
		return Outline{}, fmt.Errorf("outline title: %w", err)
	}
	nodes, err := convertNodes(w.Nodes)
	if err != nil {
		return Outline{}, err
	}

	if t := strings.TrimSpace(titleOverride); t != "" {
		title = t
	}
	return New(title, nodes), nil
}

func convertNodes(in []wireNode) ([]Node, error) {
	out := make([]Node, 0, len(in))
	for _, w := range in {
		title, err := scalarText(w.Title)
		if err != nil {
			return nil, fmt.Errorf("node title: %w", err)
		}
		children, err := convertNodes(w.Children)
		if err != nil {
			return nil, err
		}
		out = append(out, Node{Title: title, Children: children})
	}
	return out, nil
}

// scalarText returns the trimmed text of a JSON scalar. Null and absent
// values yield "".
func scalarText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	case '{', '[':
		return "", fmt.Errorf("expected scalar, got %s", truncate(string(raw), 40))
	default:
		return string(raw), nil
	}
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
