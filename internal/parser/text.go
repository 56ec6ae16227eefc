package parser

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var textStrategy = Strategy{
	Name: "text",
	Run: func(_ context.Context, in Input) Result {
		return found(decodeText(in.Data))
	},
}

// decodeText reads UTF-8 when the bytes are valid UTF-8 and Windows-1251
// otherwise. Bytes that do not decode are dropped.
func decodeText(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if utf8.Valid(data) {
		return strings.TrimSpace(string(data))
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(string(decoded), string(utf8.RuneError), ""))
}
