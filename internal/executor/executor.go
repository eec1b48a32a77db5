// Package executor evaluates a compiled proto graph. Proto-nodes are
// visited in stored topological order, so every dependency's value is
// available before its dependents run. Before invoking a node's
// computation the executor consults the cache with the node's input
// fingerprint; unaffected subgraphs after a small edit cost lookups,
// not recomputation.
//
// A single evaluation runs on one goroutine. Independent evaluations
// may run concurrently; the cache is the only shared state.
package executor

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/cache"
	"github.com/vk/nodeflow/internal/ctxlog"
	"github.com/vk/nodeflow/internal/document"
	"github.com/vk/nodeflow/internal/fingerprint"
	"github.com/vk/nodeflow/internal/proto"
	"github.com/vk/nodeflow/internal/registry"
)

// NodeError reports a node computation failure. It aborts evaluation of
// the whole requested output: downstream nodes may depend on the failed
// value's shape, so no partial output is produced.
type NodeError struct {
	Node document.ID
	Kind string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("evaluating node %s (%s): %v", e.Node, e.Kind, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// Stats counts what one evaluation pass actually did, for tests and
// instrumentation.
type Stats struct {
	Computed  int // computations invoked
	Hits      int // cache hits
	Constants int // compile-time constants used directly
}

// Evaluate runs the proto graph and returns the requested output's
// value.
func Evaluate(ctx context.Context, g *proto.Graph, c *cache.Cache, reg *registry.Registry) (cty.Value, error) {
	v, _, err := EvaluateWithStats(ctx, g, c, reg)
	return v, err
}

// EvaluateWithStats is Evaluate plus a count of computations, cache
// hits, and folded constants.
func EvaluateWithStats(ctx context.Context, g *proto.Graph, c *cache.Cache, reg *registry.Registry) (cty.Value, Stats, error) {
	logger := ctxlog.FromContext(ctx)
	var stats Stats

	// Pin every node's cache entry for the duration of the pass so
	// eviction pressure from concurrent evaluations cannot remove a
	// value this pass is about to reuse or has just produced.
	for i := 0; i < g.Len(); i++ {
		id := g.Node(i).DocumentID
		c.Pin(id)
		defer c.Unpin(id)
	}

	results := make([]cty.Value, g.Len())
	digests := make([]fingerprint.Digest, g.Len())

	for i := 0; i < g.Len(); i++ {
		n := g.Node(i)

		if n.IsConstant() {
			results[i] = *n.Value
			digests[i] = fingerprint.OfValue(*n.Value)
			stats.Constants++
			continue
		}

		args, fp, err := resolveArgs(g, reg, n, results, digests)
		if err != nil {
			return cty.NilVal, stats, err
		}
		// For deterministic kinds the input fingerprint identifies the
		// output; a volatile node's digest must instead follow its actual
		// output value so dependents recompute whenever it changes.
		digests[i] = fp

		if !n.Volatile {
			if v, ok := c.Get(n.DocumentID, fp, g.Generation()); ok {
				results[i] = v
				stats.Hits++
				continue
			}
		}

		desc, ok := reg.Lookup(n.Kind)
		if !ok {
			return cty.NilVal, stats, &NodeError{Node: n.DocumentID, Kind: n.Kind, Err: fmt.Errorf("kind missing from registry")}
		}

		out, err := desc.Build()(ctx, args)
		if err != nil {
			// Failed computations are never cached.
			return cty.NilVal, stats, &NodeError{Node: n.DocumentID, Kind: n.Kind, Err: err}
		}
		results[i] = out
		stats.Computed++

		if n.Volatile {
			digests[i] = fingerprint.OfValue(out)
		} else {
			c.Put(n.DocumentID, fp, out, g.Generation())
		}
	}

	logger.Debug("Evaluation complete.",
		"nodes", g.Len(), "computed", stats.Computed, "hits", stats.Hits, "constants", stats.Constants)
	return results[g.Output()], stats, nil
}

// resolveArgs gathers a node's concrete argument values and its input
// fingerprint. The fingerprint mixes the node kind, each argument name,
// literal values directly, and upstream dependencies by their own
// digests.
func resolveArgs(g *proto.Graph, reg *registry.Registry, n proto.Node, results []cty.Value, digests []fingerprint.Digest) ([]cty.Value, fingerprint.Digest, error) {
	args := make([]cty.Value, len(n.Args))
	b := fingerprint.New()
	b.WriteString(n.Kind)

	for i, a := range n.Args {
		b.WriteString(a.Name)
		if a.IsLiteral() {
			args[i] = *a.Literal
			b.WriteValue(*a.Literal)
			continue
		}

		v := results[a.Ref]
		b.WriteDigest(digests[a.Ref])
		if a.Convert != nil {
			converted, err := reg.Convert(v, *a.Convert)
			if err != nil {
				return nil, fingerprint.Digest{}, &NodeError{Node: n.DocumentID, Kind: n.Kind, Err: err}
			}
			v = converted
		}
		args[i] = v
	}
	return args, b.Sum(), nil
}
