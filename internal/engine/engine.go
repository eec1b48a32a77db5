// Package engine is the host-facing facade tying the pipeline together:
// edits mutate the document graph, renders snapshot it, compile it to a
// proto graph, and evaluate it against the shared cache.
//
// Edits serialize against snapshotting; an edit phase strictly precedes
// a compile+evaluate phase. Renders for different outputs may run
// concurrently on stale snapshots. The compiler only ever sees
// immutable snapshots, and the cache is the only shared mutable state.
package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/cache"
	"github.com/vk/nodeflow/internal/compiler"
	"github.com/vk/nodeflow/internal/ctxlog"
	"github.com/vk/nodeflow/internal/document"
	"github.com/vk/nodeflow/internal/executor"
	"github.com/vk/nodeflow/internal/proto"
	"github.com/vk/nodeflow/internal/registry"
)

// Broadcaster receives state-change notifications for the editor UI.
// Implementations must not block; the engine calls them synchronously.
type Broadcaster interface {
	DocumentChanged()
	RenderCompleted(output document.ID, err error)
}

// Engine owns one document graph, its registry, and the shared cache.
type Engine struct {
	reg         *registry.Registry
	cache       *cache.Cache
	broadcaster Broadcaster

	generation atomic.Uint64

	mu  sync.Mutex
	doc *document.Graph
	// latest successfully compiled proto graph per requested output,
	// kept for transitive cache invalidation.
	compiled map[document.ID]*proto.Graph
}

// New creates an engine around a sealed registry. The broadcaster may
// be nil when the host does not subscribe to notifications.
func New(reg *registry.Registry, c *cache.Cache, b Broadcaster) *Engine {
	return NewWithDocument(reg, c, b, document.NewGraph(reg))
}

// NewWithDocument creates an engine around an existing document graph,
// e.g. one built by a definition loader or a persistence module.
func NewWithDocument(reg *registry.Registry, c *cache.Cache, b Broadcaster, doc *document.Graph) *Engine {
	return &Engine{
		reg:         reg,
		cache:       c,
		broadcaster: b,
		doc:         doc,
		compiled:    make(map[document.ID]*proto.Graph),
	}
}

// Document runs fn against the live document under the edit lock and
// returns its result without broadcasting. Intended for reads.
func (e *Engine) Document(fn func(*document.Graph)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.doc)
}

// Edit applies one mutation batch to the document graph. A returned
// structural error means the batch failed; individual operations are
// atomic (no partial slot mutation), so the document remains valid in
// the sense that prior state is untouched by the failing operation.
func (e *Engine) Edit(fn func(*document.Graph) error) error {
	e.mu.Lock()
	err := fn(e.doc)
	e.mu.Unlock()

	if err == nil && e.broadcaster != nil {
		e.broadcaster.DocumentChanged()
	}
	return err
}

// Compile snapshots the document and compiles it for the requested
// output, publishing the artifact for later transitive invalidation.
func (e *Engine) Compile(ctx context.Context, output document.ID) (*proto.Graph, error) {
	e.mu.Lock()
	snap := e.doc.Snapshot()
	e.mu.Unlock()

	g, err := compiler.Compile(ctx, snap, e.reg, output, e.generation.Add(1), e.cache)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.compiled[output] = g
	e.mu.Unlock()
	return g, nil
}

// Render compiles and evaluates the requested output. Structural errors
// and evaluation errors are both returned to the caller; the host
// surfaces them to the user.
func (e *Engine) Render(ctx context.Context, output document.ID) (cty.Value, error) {
	v, _, err := e.RenderWithStats(ctx, output)
	return v, err
}

// RenderWithStats is Render plus the executor's pass statistics.
func (e *Engine) RenderWithStats(ctx context.Context, output document.ID) (cty.Value, executor.Stats, error) {
	logger := ctxlog.FromContext(ctx)

	g, err := e.Compile(ctx, output)
	if err != nil {
		if e.broadcaster != nil {
			e.broadcaster.RenderCompleted(output, err)
		}
		return cty.NilVal, executor.Stats{}, err
	}

	v, stats, err := executor.EvaluateWithStats(ctx, g, e.cache, e.reg)
	if e.broadcaster != nil {
		e.broadcaster.RenderCompleted(output, err)
	}
	if err != nil {
		return cty.NilVal, stats, err
	}

	logger.Debug("Render complete.", "output", string(output),
		"computed", stats.Computed, "hits", stats.Hits)
	return v, stats, nil
}

// Invalidate drops the cached value for one node.
func (e *Engine) Invalidate(id document.ID) {
	e.cache.Invalidate(id)
}

// InvalidateTransitive drops the cached values for a node and everything
// downstream of it in every currently published proto graph. Used for
// volatile or externally sourced nodes.
func (e *Engine) InvalidateTransitive(id document.ID) {
	e.mu.Lock()
	graphs := make([]*proto.Graph, 0, len(e.compiled))
	for _, g := range e.compiled {
		graphs = append(graphs, g)
	}
	e.mu.Unlock()

	for _, g := range graphs {
		e.cache.InvalidateTransitive(id, g)
	}
}
