package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/urlpreview/internal/cache"
	"github.com/hyperifyio/urlpreview/internal/editor"
	"github.com/hyperifyio/urlpreview/internal/extract"
	"github.com/hyperifyio/urlpreview/internal/fetch"
	"github.com/hyperifyio/urlpreview/internal/host"
	"github.com/hyperifyio/urlpreview/internal/panel"
	"github.com/hyperifyio/urlpreview/internal/suggest"
)

// App wires configuration into the host, the suggestion pipeline, the
// editor controller and the panel server.
type App struct {
	cfg       Config
	registry  *prometheus.Registry
	pageCache *cache.PageCache
	suggester *suggest.Service
	host      host.Host
	ctrl      *editor.Controller
	server    *panel.Server
}

// New builds the application. With no host bridge configured it runs
// against an in-memory host so the panel can be developed standalone.
func New(cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector())

	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Msg("cache purge failed; continuing")
			} else if n > 0 {
				log.Info().Int("removed", n).Msg("purged expired cache entries")
			}
		}
		a.pageCache = &cache.PageCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}
	a.suggester = newSuggester(cfg, a.pageCache, a.registry)

	if cfg.HostBridgeURL != "" {
		a.host = host.NewBridge(cfg.HostBridgeURL, cfg.HostTimeout)
		log.Info().Str("bridge", cfg.HostBridgeURL).Msg("using host bridge")
	} else {
		a.host = host.NewMemory()
		log.Warn().Msg("no host bridge configured; using in-memory host")
	}

	a.ctrl = editor.New(a.host, a.suggester, editor.Options{
		DevPlaceholder: cfg.DevPlaceholder,
		PlaceholderURL: cfg.PlaceholderURL,
	})
	a.server = panel.NewServer(a.ctrl, a.registry)
	return a, nil
}

// Controller exposes the editor for embedding and tests.
func (a *App) Controller() *editor.Controller { return a.ctrl }

// Host returns the configured host.
func (a *App) Host() host.Host { return a.host }

// Close waits for in-flight suggestion fetches.
func (a *App) Close() {
	a.ctrl.Wait()
}

// Run serves the panel and follows the host theme until ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if src, ok := a.host.(host.ThemeSource); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.ctrl.WatchTheme(ctx, src); err != nil {
				log.Warn().Err(err).Msg("theme watch stopped")
			}
		}()
	}
	err := a.server.Run(ctx, a.cfg.ListenAddr)
	cancel()
	wg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("panel: %w", err)
	}
	return nil
}

// NewSuggester builds only the fetch and extract pipeline, for one-shot
// lookups that need neither a host nor cache maintenance.
func NewSuggester(cfg Config, reg prometheus.Registerer) (*suggest.Service, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	var pc *cache.PageCache
	if cfg.CacheDir != "" {
		pc = &cache.PageCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}
	return newSuggester(cfg, pc, reg), nil
}

func newSuggester(cfg Config, pc *cache.PageCache, reg prometheus.Registerer) *suggest.Service {
	return &suggest.Service{
		Fetcher: &fetch.Client{
			HTTPClient:        newPageHTTPClient(cfg.FetchTimeout),
			UserAgent:         cfg.UserAgent,
			PerRequestTimeout: cfg.FetchTimeout,
			MaxBytes:          cfg.FetchMaxBytes,
			Cache:             pc,
			// a cleared cache has nothing to revalidate against
			BypassCache: cfg.CacheClear,
		},
		Extractor: extract.HeuristicExtractor{},
		Metrics:   suggest.NewMetrics(reg),
	}
}
