package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgallion1/docmap/internal/yandex"
)

// YandexCompleter is the primary backend transport.
type YandexCompleter interface {
	Complete(ctx context.Context, req yandex.CompletionRequest) (string, error)
}

// GatewayCompleter is the OpenAI-compatible gateway transport.
type GatewayCompleter interface {
	Complete(ctx context.Context, model, system, user string, jsonMode bool) (string, error)
}

// RouterConfig holds the generation parameters shared by every backend.
type RouterConfig struct {
	// ModelURI overrides the gpt:// URI built from FolderID and YandexModel.
	ModelURI    string
	FolderID    string
	YandexModel string
	Temperature float64
	MaxTokens   int
}

// Router resolves a selector label to a backend and issues a single
// completion call on it.
type Router struct {
	catalog *Catalog
	yandex  YandexCompleter
	gateway GatewayCompleter
	cfg     RouterConfig
	stats   *Stats
	log     *slog.Logger
}

// ErrBackendUnavailable is returned when the resolved backend has no
// transport configured.
var ErrBackendUnavailable = errors.New("llm backend not configured")

// NewRouter builds a router. gateway may be nil, in which case gateway
// backends fail with ErrBackendUnavailable.
func NewRouter(catalog *Catalog, y YandexCompleter, gateway GatewayCompleter, cfg RouterConfig, stats *Stats, log *slog.Logger) *Router {
	if cfg.YandexModel == "" {
		cfg.YandexModel = DefaultBackendID
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if stats == nil {
		stats = NewStats(time.Hour)
	}
	return &Router{
		catalog: catalog,
		yandex:  y,
		gateway: gateway,
		cfg:     cfg,
		stats:   stats,
		log:     log,
	}
}

func (r *Router) Catalog() *Catalog { return r.catalog }

func (r *Router) Stats() *Stats { return r.stats }

// Complete implements outline.Completer.
func (r *Router) Complete(ctx context.Context, selector, system, user string) (string, error) {
	backend := r.catalog.Resolve(selector)
	start := time.Now()

	text, err := r.dispatch(ctx, backend, system, user)

	elapsed := time.Since(start)
	r.stats.Record(backend.ID, elapsed, err != nil)
	r.log.Debug("completion",
		"selector", selector,
		"backend", backend.ID,
		"provider", string(backend.Provider),
		"duration_ms", elapsed.Milliseconds(),
		"ok", err == nil,
	)
	return text, err
}

func (r *Router) dispatch(ctx context.Context, b Backend, system, user string) (string, error) {
	switch b.Provider {
	case ProviderYandex:
		if r.yandex == nil {
			return "", ErrBackendUnavailable
		}
		return r.yandex.Complete(ctx, yandex.CompletionRequest{
			ModelURI: r.modelURI(),
			Messages: []yandex.Message{
				{Role: "system", Text: system},
				{Role: "user", Text: user},
			},
			Temperature: r.cfg.Temperature,
			MaxTokens:   r.cfg.MaxTokens,
			JSONObject:  b.JSONMode,
		})
	case ProviderGateway:
		if r.gateway == nil {
			return "", ErrBackendUnavailable
		}
		return r.gateway.Complete(ctx, b.ID, system, user, b.JSONMode)
	default:
		return "", ErrBackendUnavailable
	}
}

func (r *Router) modelURI() string {
	if r.cfg.ModelURI != "" {
		return r.cfg.ModelURI
	}
	return yandex.ModelURI(r.cfg.FolderID, r.cfg.YandexModel)
}
