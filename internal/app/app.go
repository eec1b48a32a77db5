// Package app wires the engine together for the CLI: logger, registry
// population, graph definition loading, and the compile+render loop.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/nodeflow/internal/cache"
	"github.com/vk/nodeflow/internal/ctxlog"
	"github.com/vk/nodeflow/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	reg    *registry.Registry
	cache  *cache.Cache
	config *Config
}

// NewApp is the constructor for the main application. It returns a
// fully initialized App instance with its own isolated logger and a
// sealed registry.
func NewApp(outW io.Writer, appConfig *Config, modules ...registry.Module) (*App, error) {
	return NewAppWithLogOutput(outW, outW, appConfig, modules...)
}

// NewAppWithLogOutput is NewApp with rendered results and log records
// written to separate streams, mainly for tests.
func NewAppWithLogOutput(outW, logW io.Writer, appConfig *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.New()
	for _, m := range modules {
		m.Register(reg)
	}
	if err := reg.Seal(ctx); err != nil {
		return nil, fmt.Errorf("failed to seal registry: %w", err)
	}
	logger.Debug("Registry populated and sealed.", "kinds", len(reg.Kinds()))

	c := cache.New(cache.Config{
		MaxEntries: appConfig.CacheEntries,
		MaxBytes:   appConfig.CacheBytes,
	})

	return &App{
		outW:   outW,
		logger: logger,
		reg:    reg,
		cache:  c,
		config: appConfig,
	}, nil
}

// Registry exposes the sealed registry, mainly for tests.
func (a *App) Registry() *registry.Registry {
	return a.reg
}
