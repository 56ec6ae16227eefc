// Package app wires configuration into the running pipeline components.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docmap/internal/blobstore"
	"github.com/dgallion1/docmap/internal/config"
	"github.com/dgallion1/docmap/internal/llm"
	"github.com/dgallion1/docmap/internal/outline"
	"github.com/dgallion1/docmap/internal/parser"
	"github.com/dgallion1/docmap/internal/pipeline"
	"github.com/dgallion1/docmap/internal/session"
	"github.com/dgallion1/docmap/internal/yandex"
)

const redisPrefix = "docmap"

// Engine is the extraction and generation half of the pipeline. It needs
// no storage.
type Engine struct {
	Yandex    *yandex.Client
	Gateway   *llm.Gateway
	Catalog   *llm.Catalog
	Stats     *llm.Stats
	Router    *llm.Router
	Extractor *parser.Extractor
	Generator *outline.Generator
}

// NewEngine builds the Yandex client, the optional gateway and the model
// router from cfg.
func NewEngine(cfg config.Config, log *slog.Logger) *Engine {
	y := yandex.NewClient(yandex.Config{
		APIKey:        cfg.YandexAPIKey,
		FolderID:      cfg.YandexFolderID,
		OCRURL:        cfg.YandexOCRURL,
		CompletionURL: cfg.YandexAPIURL,
		Timeout:       cfg.HTTPTimeout,
	})

	e := &Engine{
		Yandex:  y,
		Catalog: llm.NewCatalog(Backends(cfg.OpenRouterModel)),
		Stats:   llm.NewStats(time.Hour),
	}

	var gw llm.GatewayCompleter
	if cfg.OpenRouterAPIKey != "" {
		e.Gateway = llm.NewGateway(llm.GatewayConfig{
			APIKey:      cfg.OpenRouterAPIKey,
			BaseURL:     cfg.OpenRouterBaseURL,
			Temperature: cfg.Temperature,
			Timeout:     cfg.HTTPTimeout,
		})
		gw = e.Gateway
	} else {
		log.Warn("OPENROUTER_API_KEY not set, gateway models disabled")
	}

	e.Router = llm.NewRouter(e.Catalog, y, gw, llm.RouterConfig{
		ModelURI:    cfg.YandexModelURI,
		FolderID:    cfg.YandexFolderID,
		YandexModel: cfg.YandexModel,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}, e.Stats, log.With("component", "llm"))
	e.Extractor = parser.NewExtractor(y, log.With("component", "parser"))
	e.Generator = outline.NewGenerator(e.Router, log.With("component", "outline"))
	return e
}

// Backends returns the default catalog plus the configured gateway model
// when it is not already listed.
func Backends(gatewayModel string) []llm.Backend {
	backends := append([]llm.Backend(nil), llm.DefaultBackends...)
	if gatewayModel == "" {
		return backends
	}
	for _, b := range backends {
		if b.ID == gatewayModel {
			return backends
		}
	}
	return append(backends, llm.Backend{ID: gatewayModel, Label: gatewayModel, Provider: llm.ProviderGateway})
}

func (e *Engine) Close() {
	e.Yandex.Close()
	if e.Gateway != nil {
		e.Gateway.Close()
	}
}

// App is the full pipeline with publishing and session storage.
type App struct {
	*Engine
	Blobs   blobstore.Store
	Store   session.Store
	Service *pipeline.Service
}

// New builds every component. The caller must Close the result.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	blobs, viewerHost, err := OpenBlobs(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	engine := NewEngine(cfg, log)
	svc := pipeline.NewService(engine.Extractor, engine.Generator, blobs, store, pipeline.ServiceConfig{
		Format:     pipeline.ParseFormat(cfg.MapFormat),
		ViewerHost: viewerHost,
	}, log.With("component", "pipeline"))

	return &App{Engine: engine, Blobs: blobs, Store: store, Service: svc}, nil
}

func (a *App) Close() error {
	a.Engine.Close()
	return a.Store.Close()
}

// OpenStore selects the session backend. The sqlite backend keeps history
// on disk and dialog state in memory.
func OpenStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	switch cfg.SessionBackend {
	case "", "memory":
		return session.NewMemory(), nil
	case "redis":
		r, err := session.OpenRedis(ctx, cfg.RedisURL, session.RedisOptions{Prefix: redisPrefix, StateTTL: cfg.StateTTL})
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		return r, nil
	case "sqlite":
		maps, err := session.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return session.NewSplit(maps, session.NewMemory()), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// OpenBlobs selects the map publisher. viewerHost is set for the bucket
// website so markdown maps link to its viewer page.
func OpenBlobs(cfg config.Config) (store blobstore.Store, viewerHost string, err error) {
	switch cfg.BlobBackend {
	case "s3":
		if cfg.S3AccessKeyID == "" || cfg.S3SecretKey == "" {
			return nil, "", errors.New("s3 credentials are not configured")
		}
		s3 := blobstore.NewS3(blobstore.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			WebsiteHost:     cfg.WebsiteHost,
			Timeout:         cfg.HTTPTimeout,
		})
		return s3, s3.Host(), nil
	case "fs":
		return blobstore.NewFS(cfg.BlobDir, cfg.PublicBaseURL), "", nil
	default:
		return nil, "", fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
