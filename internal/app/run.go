package app

import (
	"context"
	"fmt"

	"github.com/vk/nodeflow/internal/ctxlog"
	"github.com/vk/nodeflow/internal/document"
	"github.com/vk/nodeflow/internal/engine"
	"github.com/vk/nodeflow/internal/fsutil"
	"github.com/vk/nodeflow/internal/graphdef"
	"github.com/vk/nodeflow/internal/value"
)

// Run loads every graph definition under the configured path, renders
// each definition's requested output, and prints the results. The first
// structural or evaluation error aborts the run.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger

	files, err := fsutil.FindDefinitions(a.config.GraphPath)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn("No graph definition files found in path.", "path", a.config.GraphPath)
		return nil
	}
	logger.Debug("Found graph definitions.", "files", files)

	for _, file := range files {
		if err := a.renderFile(ctx, file); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	}
	return nil
}

// renderFile loads one definition, resolves the output selection, and
// renders it.
func (a *App) renderFile(ctx context.Context, file string) error {
	doc, err := graphdef.LoadFile(ctx, a.reg, file)
	if err != nil {
		return err
	}

	output := doc.Output
	if a.config.Output != "" {
		id, ok := doc.Names[a.config.Output]
		if !ok {
			return &document.OutputNotFoundError{Node: document.ID(a.config.Output)}
		}
		output = id
	}

	eng := engine.NewWithDocument(a.reg, a.cache, nil, doc.Graph)
	v, stats, err := eng.RenderWithStats(ctx, output)
	if err != nil {
		return err
	}

	a.logger.Info("Rendered output.",
		"file", file, "computed", stats.Computed, "hits", stats.Hits, "constants", stats.Constants)
	fmt.Fprintf(a.outW, "%s\n", value.Format(v))
	return nil
}
