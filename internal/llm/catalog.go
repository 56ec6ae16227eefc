// Package llm routes completion requests to the configured generative
// backends.
package llm

import "strings"

// Provider is the transport a backend is reached through.
type Provider string

const (
	ProviderYandex  Provider = "yandex"
	ProviderGateway Provider = "gateway"
)

// DefaultBackendID is used for unrecognized selector labels.
const DefaultBackendID = "yandexgpt"

// Backend is one selectable model.
type Backend struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Provider Provider `json:"provider"`
	// JSONMode is true when the backend reliably honours a structured
	// output request.
	JSONMode bool `json:"json_mode"`
}

// Catalog maps user-facing labels to backends.
type Catalog struct {
	backends []Backend
	byKey    map[string]Backend
	fallback Backend
}

// DefaultBackends is the fixed set offered in the chat dialog.
var DefaultBackends = []Backend{
	{ID: DefaultBackendID, Label: "Авто", Provider: ProviderYandex, JSONMode: true},
	{ID: "openai/gpt-4.1-mini", Label: "GPT-4.1 mini", Provider: ProviderGateway, JSONMode: true},
	{ID: "google/gemini-2.0-flash-001", Label: "Gemini 2.0 Flash", Provider: ProviderGateway, JSONMode: true},
	{ID: "anthropic/claude-3.5-haiku", Label: "Claude 3.5 Haiku", Provider: ProviderGateway},
	{ID: "deepseek/deepseek-chat", Label: "DeepSeek V3", Provider: ProviderGateway},
}

// NewCatalog indexes backends by label and ID, case-insensitively. The
// backend whose ID is DefaultBackendID is the fallback; without one, the
// first backend is.
func NewCatalog(backends []Backend) *Catalog {
	c := &Catalog{
		backends: backends,
		byKey:    make(map[string]Backend, len(backends)*2),
	}
	for i, b := range backends {
		c.byKey[strings.ToLower(b.Label)] = b
		c.byKey[strings.ToLower(b.ID)] = b
		if i == 0 || b.ID == DefaultBackendID {
			c.fallback = b
		}
	}
	return c
}

// Resolve returns the backend for a label or ID, or the default backend.
func (c *Catalog) Resolve(selector string) Backend {
	if b, ok := c.byKey[strings.ToLower(strings.TrimSpace(selector))]; ok {
		return b
	}
	return c.fallback
}

// Labels lists selector labels in catalog order.
func (c *Catalog) Labels() []string {
	labels := make([]string, 0, len(c.backends))
	for _, b := range c.backends {
		labels = append(labels, b.Label)
	}
	return labels
}

// Backends returns a copy of the catalog entries.
func (c *Catalog) Backends() []Backend {
	return append([]Backend(nil), c.backends...)
}
