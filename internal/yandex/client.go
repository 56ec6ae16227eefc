// Package yandex talks to the Yandex Cloud Vision OCR and Foundation Models
// completion endpoints.
package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultOCRURL        = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"
	DefaultCompletionURL = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"
)

// Config holds credentials and endpoints. Empty URLs use the defaults.
type Config struct {
	APIKey        string
	FolderID      string
	OCRURL        string
	CompletionURL string
	Timeout       time.Duration
}

// Client calls Yandex Cloud APIs with Api-Key authentication.
type Client struct {
	apiKey        string
	folderID      string
	ocrURL        string
	completionURL string
	httpClient    *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.OCRURL == "" {
		cfg.OCRURL = DefaultOCRURL
	}
	if cfg.CompletionURL == "" {
		cfg.CompletionURL = DefaultCompletionURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		apiKey:        cfg.APIKey,
		folderID:      cfg.FolderID,
		ocrURL:        cfg.OCRURL,
		completionURL: cfg.CompletionURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// StatusError is a non-2xx reply from a Yandex service. It is a hard
// failure: callers should not treat it as "no text".
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Service, e.StatusCode, truncate(e.Body, 200))
}

// post sends body as JSON and returns the response bytes of a 2xx reply.
func (c *Client) post(ctx context.Context, service, url string, reqBody any) ([]byte, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", service, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Api-Key "+c.apiKey)
	httpReq.Header.Set("x-folder-id", c.folderID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", service, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}
	return respBody, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
