package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	openai "github.com/sashabaranov/go-openai"

	"atlas-advisor-backend/internal/advisor"
	"atlas-advisor-backend/internal/atlas"
	"atlas-advisor-backend/internal/catalog"
	"atlas-advisor-backend/internal/config"
	"atlas-advisor-backend/internal/db"
	"atlas-advisor-backend/internal/store"
	"atlas-advisor-backend/internal/telemetry"
	"atlas-advisor-backend/internal/types"
)

// BuildDeps selects the completion and search providers named in cfg and
// wires them with telemetry. The returned func releases any resources
// (the database pool) the providers hold.
func BuildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (Deps, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	cat, err := catalog.Load()
	if err != nil {
		return Deps{}, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sink := telemetry.Multi{telemetry.LogSink{Logger: logger}, telemetry.NewPromSink(reg)}

	completer, err := NewCompleter(cfg)
	if err != nil {
		return Deps{}, nil, err
	}

	cleanup := func() {}
	var searcher atlas.Searcher
	switch cfg.SearchProvider {
	case config.ProviderStatic, "":
		searcher = atlas.NewStaticSearcher(cat)
	case config.ProviderPortal:
		searcher = atlas.NewPortalSearcher(atlas.PortalConfig{
			BaseURL:      cfg.ArcGISPortalURL,
			ClientID:     cfg.ArcGISClientID,
			ClientSecret: cfg.ArcGISClientSecret,
			Filter:       cfg.ArcGISQueryFilter,
		})
	case config.ProviderSQL:
		conn, err := OpenCatalogDB(ctx, cfg.DatabaseURL, cat)
		if err != nil {
			return Deps{}, nil, err
		}
		cleanup = func() { conn.Close() }
		searcher = atlas.NewSQLSearcher(conn)
	default:
		return Deps{}, nil, fmt.Errorf("unknown SEARCH_PROVIDER %q", cfg.SearchProvider)
	}

	opts := []atlas.Option{atlas.WithSink(sink)}
	if cfg.FallbackTTL > 0 {
		opts = append(opts, atlas.WithFallback(
			store.NewFallbackStore[types.SearchResponse](cfg.FallbackTTL, cfg.FallbackMaxItems)))
	}

	logger.Info("providers selected",
		"completion", cfg.CompletionProvider,
		"search", cfg.SearchProvider,
		"fallbackTTL", cfg.FallbackTTL,
	)
	return Deps{
		Catalog:        cat,
		Chat:           advisor.NewChatHandler(cat, completer, cfg.UpstreamTimeout),
		Search:         atlas.NewSearchHandler(searcher, cfg.UpstreamTimeout, opts...),
		Sink:           sink,
		Logger:         logger,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CompletionName: nameOr(cfg.CompletionProvider),
		SearchName:     nameOr(cfg.SearchProvider),
	}, cleanup, nil
}

// NewCompleter returns the completion provider named by cfg.
func NewCompleter(cfg config.Config) (advisor.Completer, error) {
	switch cfg.CompletionProvider {
	case config.ProviderStatic, "":
		return advisor.StaticCompleter{}, nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("COMPLETION_PROVIDER=openai requires OPENAI_API_KEY")
		}
		spec, err := advisor.LoadPromptSpec(cfg.PromptFile)
		if err != nil {
			return nil, err
		}
		oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			oc.BaseURL = cfg.OpenAIBaseURL
		}
		oc.HTTPClient = &http.Client{Timeout: cfg.UpstreamTimeout + 5*time.Second}
		return advisor.NewOpenAICompleter(openai.NewClientWithConfig(oc), cfg.Model, spec), nil
	default:
		return nil, fmt.Errorf("unknown COMPLETION_PROVIDER %q", cfg.CompletionProvider)
	}
}

// OpenCatalogDB connects, applies migrations and seeds the datasets table
// from the embedded catalog.
func OpenCatalogDB(ctx context.Context, dsn string, cat *catalog.Catalog) (*db.DB, error) {
	conn, err := db.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.RunMigrations(ctx, db.Migrations()); err != nil {
		conn.Close()
		return nil, err
	}
	if err := atlas.ImportDatasets(ctx, conn, cat.Datasets()); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func nameOr(provider string) string {
	if provider == "" {
		return config.ProviderStatic
	}
	return provider
}
