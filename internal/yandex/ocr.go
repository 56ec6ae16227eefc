package yandex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
)

// defaultMimeType is sent when the caller gives no hint.
const defaultMimeType = "JPEG"

type ocrRequest struct {
	MimeType      string   `json:"mimeType"`
	LanguageCodes []string `json:"languageCodes"`
	Model         string   `json:"model"`
	Content       string   `json:"content"`
}

type ocrResponse struct {
	Result struct {
		TextAnnotation struct {
			FullText string `json:"fullText"`
			Blocks   []struct {
				Lines []struct {
					Text string `json:"text"`
				} `json:"lines"`
			} `json:"blocks"`
		} `json:"textAnnotation"`
	} `json:"result"`
}

// Recognize runs OCR over data. It returns "" when there is nothing to
// recognize or the service found no text; only transport errors and
// non-2xx replies are returned as errors.
func (c *Client) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	respBody, err := c.post(ctx, "ocr", c.ocrURL, ocrRequest{
		MimeType:      mimeType,
		LanguageCodes: []string{"ru", "en"},
		Model:         "page",
		Content:       base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", err
	}

	// A 2xx body that does not decode carries no text; it is not a hard
	// failure.
	var resp ocrResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", nil
	}
	return annotationText(&resp), nil
}

// annotationText prefers fullText and otherwise joins every non-blank line
// of every block in order.
func annotationText(resp *ocrResponse) string {
	ann := resp.Result.TextAnnotation
	if full := strings.TrimSpace(ann.FullText); full != "" {
		return full
	}
	var lines []string
	for _, block := range ann.Blocks {
		for _, line := range block.Lines {
			if t := strings.TrimSpace(line.Text); t != "" {
				lines = append(lines, t)
			}
		}
	}
	return strings.Join(lines, "\n")
}
