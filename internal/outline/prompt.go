package outline

import (
	"strings"
)

// Depth is the summarization granularity requested by the user.
type Depth string

const (
	DepthBrief    Depth = "brief"
	DepthBalanced Depth = "balanced"
	DepthDetailed Depth = "detailed"
)

var depthHints = map[Depth]string{
	DepthBrief:    "Сделай очень краткую карту, только ключевые идеи.",
	DepthBalanced: "Сбалансированная карта с основными пунктами.",
	DepthDetailed: "Детальная карта с логической структурой.",
}

// depthLabels maps menu labels of both keyboard generations and the
// canonical keys themselves.
var depthLabels = map[string]Depth{
	"brief":    DepthBrief,
	"balanced": DepthBalanced,
	"detailed": DepthDetailed,
	"кратко":   DepthBrief,
	"средне":   DepthBalanced,
	"подробно": DepthDetailed,
	"лёгкая":   DepthBrief,
	"легкая":   DepthBrief,
	"средняя":  DepthBalanced,
	"глубокая": DepthDetailed,
}

// DepthLabels are the button captions offered in the chat dialog, in order.
var DepthLabels = []string{"Кратко", "Средне", "Подробно"}

// ParseDepth maps a label to a Depth. Unknown labels are returned verbatim
// and resolve to an empty hint.
func ParseDepth(label string) Depth {
	key := strings.ToLower(strings.TrimSpace(label))
	if d, ok := depthLabels[key]; ok {
		return d
	}
	return Depth(strings.TrimSpace(label))
}

// DepthHint returns the prompt hint for a depth key, or "" if unknown.
func DepthHint(d Depth) string {
	return depthHints[d]
}

// Label returns the Russian caption for d, or d itself when unknown.
func (d Depth) Label() string {
	switch d {
	case DepthBrief:
		return "Кратко"
	case DepthBalanced:
		return "Средне"
	case DepthDetailed:
		return "Подробно"
	}
	return string(d)
}

const SystemPrompt = `Ты помощник, который строит структурированную интеллект-карту (mindmap) документа.

Отвечай СТРОГО в JSON, без текста до или после.
Формат:

{
  "title": "Краткое название карты",
  "nodes": [
    {
      "title": "Краткий заголовок узла",
      "children": [
        {
          "title": "Подузел",
          "children": []
        }
      ]
    }
  ]
}

Правила:
- Только JSON, без комментариев и пояснений.
- title и у корня, и у узлов: короткие фразы.
- children: массив таких же объектов, можно делать 1–2 уровня вложенности.
- Не используй null, если нет детей, ставь "children": [].
- Пиши по-русски.`

// BuildUserPrompt embeds the document text verbatim with the depth hint.
func BuildUserPrompt(text string, depth Depth) string {
	var sb strings.Builder
	sb.WriteString("Контекст документа:\n")
	sb.WriteString(text)
	sb.WriteString("\n\nГлубина анализа: ")
	sb.WriteString(DepthHint(depth))
	return sb.String()
}
