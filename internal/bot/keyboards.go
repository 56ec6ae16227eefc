package bot

import (
	"fmt"

	"github.com/dgallion1/docmap/internal/blobstore"
	"github.com/dgallion1/docmap/internal/session"
)

const (
	btnCreate     = "📄 Создать карту"
	btnHistory    = "📚 История"
	btnMiniApp    = "🌐 Открыть мини-приложение"
	btnAutoTitle  = "🤖 Оставить на выбор ИИ"
	btnOpenMap    = "🚀 Открыть карту"
	btnShowText   = "👁 Текст"
	openMapPrefix = "open_map:"
)

func (d *Dialog) mainMenu(lastURL string) *Keyboard {
	return &Keyboard{Rows: [][]Button{
		{{Text: btnCreate}},
		{{Text: btnHistory}},
		{{Text: btnMiniApp, WebAppURL: blobstore.WebAppURL(d.host, lastURL)}},
	}}
}

func titleKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]Button{{{Text: btnAutoTitle}}}}
}

// column lays labels out one per row.
func column(labels []string) *Keyboard {
	kb := &Keyboard{}
	for _, l := range labels {
		kb.Rows = append(kb.Rows, []Button{{Text: l}})
	}
	return kb
}

func (d *Dialog) openMapKeyboard(url string) *Keyboard {
	return &Keyboard{Inline: true, Rows: [][]Button{
		{{Text: btnOpenMap, WebAppURL: blobstore.WebAppURL(d.host, url)}},
	}}
}

// historyKeyboard has one row per map: a web-app link when the map has a
// URL and a button that redisplays the outline as text.
func (d *Dialog) historyKeyboard(maps []session.MapRecord) *Keyboard {
	kb := &Keyboard{Inline: true}
	for _, m := range maps {
		var row []Button
		if m.URL != "" {
			row = append(row, Button{Text: "🌐 " + m.Title, WebAppURL: blobstore.WebAppURL(d.host, m.URL)})
		}
		row = append(row, Button{Text: btnShowText, Data: fmt.Sprintf("%s%s", openMapPrefix, m.ID)})
		kb.Rows = append(kb.Rows, row)
	}
	return kb
}
