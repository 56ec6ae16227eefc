package outline

import "strings"

// Node is a recursive entry in a generated mindmap.
type Node struct {
	Title    string `json:"title"`
	Children []Node `json:"children"`
}

// Outline is a generated mindmap with its two cached renderings.
type Outline struct {
	Title     string   `json:"title"`
	Nodes     []Node   `json:"nodes"`
	FlatLines []string `json:"flat_lines"`
	Markdown  string   `json:"markdown"`
}

const (
	untitled    = "Без названия"
	failedTitle = "Ошибка генерации"
	failedNode  = "Не удалось построить карту"

	bulletFlat = "- "
)

// placeholderTitles fill both renderings when the tree yields no lines.
var placeholderTitles = []string{
	"Введение",
	"Ключевые идеи",
	"Основные пункты",
	"Выводы",
}

// New builds an Outline and computes FlatLines and Markdown from nodes.
// A blank title falls back to "Без названия".
func New(title string, nodes []Node) Outline {
	title = strings.TrimSpace(title)
	if title == "" {
		title = untitled
	}
	if nodes == nil {
		nodes = []Node{}
	}

	flat := Flatten(nodes, bulletFlat)
	if len(flat) == 0 {
		flat = placeholderLines(0, bulletFlat)
	}

	return Outline{
		Title:     title,
		Nodes:     nodes,
		FlatLines: flat,
		Markdown:  Markdown(title, nodes),
	}
}

// Failed is the fixed outline returned when generation does not succeed.
func Failed() Outline {
	return New(failedTitle, []Node{{Title: failedNode, Children: []Node{}}})
}

// IsFailed reports whether o is the generation-failure outline.
func (o Outline) IsFailed() bool {
	return o.Title == failedTitle && len(o.Nodes) == 1 && o.Nodes[0].Title == failedNode
}

// Flatten renders nodes depth-first, two spaces of indent per level, each
// line prefixed with marker. Nodes with blank titles contribute no line;
// their children take the dropped node's place at the same level.
func Flatten(nodes []Node, marker string) []string {
	return appendLines(nil, nodes, 0, marker)
}

// Markdown renders a markmap document: a top-level heading followed by
// nested bullets starting at level 1.
func Markdown(title string, nodes []Node) string {
	lines := []string{"# " + title}
	bullets := appendLines(nil, nodes, 1, bulletFlat)
	if len(bullets) == 0 {
		bullets = placeholderLines(1, bulletFlat)
	}
	lines = append(lines, bullets...)
	return strings.Join(lines, "\n")
}

func appendLines(dst []string, nodes []Node, level int, marker string) []string {
	indent := strings.Repeat("  ", level)
	for _, n := range nodes {
		title := strings.TrimSpace(n.Title)
		if title == "" {
			dst = appendLines(dst, n.Children, level, marker)
			continue
		}
		dst = append(dst, indent+marker+title)
		dst = appendLines(dst, n.Children, level+1, marker)
	}
	return dst
}

func placeholderLines(level int, marker string) []string {
	indent := strings.Repeat("  ", level)
	lines := make([]string, 0, len(placeholderTitles))
	for _, t := range placeholderTitles {
		lines = append(lines, indent+marker+t)
	}
	return lines
}
