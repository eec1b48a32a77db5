package executor_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/cache"
	"github.com/vk/nodeflow/internal/compiler"
	"github.com/vk/nodeflow/internal/document"
	"github.com/vk/nodeflow/internal/executor"
	"github.com/vk/nodeflow/internal/proto"
	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// fixture owns the moving parts of an executor test: a sealed registry
// with instrumented kinds, a document graph, and a shared cache.
type fixture struct {
	reg   *registry.Registry
	graph *document.Graph
	cache *cache.Cache

	generation uint64
	// seq drives the "counter" volatile kind: each invocation returns the
	// next integer, so volatile propagation is observable and repeatable.
	seq atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{cache: cache.New(cache.Config{})}
	zero := cty.Zero

	r := registry.New()
	r.RegisterKind(&registry.Descriptor{
		Kind:   "number",
		Inputs: []registry.InputSignature{{Name: "value", Type: value.Number(), Default: &zero}},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return args[0], nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "add",
		Inputs: []registry.InputSignature{
			{Name: "a", Type: value.Number()},
			{Name: "b", Type: value.Number()},
		},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				a, err := value.Float(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				b, err := value.Float(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				return cty.NumberFloatVal(a + b), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "boom",
		Inputs: []registry.InputSignature{{Name: "a", Type: value.Number()}},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return cty.NilVal, fmt.Errorf("computation exploded")
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:     "counter",
		Output:   value.Number(),
		Volatile: true,
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return cty.NumberIntVal(f.seq.Add(1)), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:     "seven",
		Output:   value.Number(),
		Volatile: true,
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return cty.NumberIntVal(7), nil
			}
		},
	})
	require.NoError(t, r.Seal(context.Background()))

	f.reg = r
	f.graph = document.NewGraph(r)
	return f
}

func (f *fixture) add(t *testing.T, kind string) document.ID {
	t.Helper()
	id, err := f.graph.AddNode(context.Background(), kind, document.Metadata{})
	require.NoError(t, err)
	return id
}

func (f *fixture) compile(t *testing.T, output document.ID) *proto.Graph {
	t.Helper()
	f.generation++
	pg, err := compiler.Compile(context.Background(), f.graph.Snapshot(), f.reg, output, f.generation, nil)
	require.NoError(t, err)
	return pg
}

func (f *fixture) evaluate(t *testing.T, pg *proto.Graph) (float64, executor.Stats) {
	t.Helper()
	v, stats, err := executor.EvaluateWithStats(context.Background(), pg, f.cache, f.reg)
	require.NoError(t, err)
	out, err := value.Float(v)
	require.NoError(t, err)
	return out, stats
}

func TestEvaluate_FullyFoldedGraphRunsNoComputations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	a := f.add(t, "number")
	require.NoError(t, f.graph.SetLiteral(ctx, a, "value", cty.NumberIntVal(2)))
	b := f.add(t, "number")
	require.NoError(t, f.graph.SetLiteral(ctx, b, "value", cty.NumberIntVal(3)))
	sum := f.add(t, "add")
	require.NoError(t, f.graph.Connect(ctx, sum, "a", a))
	require.NoError(t, f.graph.Connect(ctx, sum, "b", b))

	out, stats := f.evaluate(t, f.compile(t, sum))
	assert.Equal(t, 5.0, out)
	assert.Equal(t, executor.Stats{Constants: 1}, stats)
}

func TestEvaluate_VolatileIsNeverCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	c := f.add(t, "counter")
	sum := f.add(t, "add")
	require.NoError(t, f.graph.Connect(ctx, sum, "a", c))
	require.NoError(t, f.graph.SetLiteral(ctx, sum, "b", cty.NumberIntVal(10)))

	pg := f.compile(t, sum)

	out, stats := f.evaluate(t, pg)
	assert.Equal(t, 11.0, out)
	assert.Equal(t, 2, stats.Computed)

	// The counter advanced, so its dependent must recompute too.
	out, stats = f.evaluate(t, pg)
	assert.Equal(t, 12.0, out)
	assert.Equal(t, 2, stats.Computed)
	assert.Equal(t, 0, stats.Hits)
}

func TestEvaluate_StableVolatileOutputHitsDownstream(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	s := f.add(t, "seven")
	sum := f.add(t, "add")
	require.NoError(t, f.graph.Connect(ctx, sum, "a", s))
	require.NoError(t, f.graph.SetLiteral(ctx, sum, "b", cty.NumberIntVal(1)))

	pg := f.compile(t, sum)

	out, stats := f.evaluate(t, pg)
	assert.Equal(t, 8.0, out)
	assert.Equal(t, 2, stats.Computed)

	// The volatile node recomputes every pass, but its output value is
	// unchanged, so the dependent's fingerprint matches and hits.
	out, stats = f.evaluate(t, pg)
	assert.Equal(t, 8.0, out)
	assert.Equal(t, 1, stats.Computed)
	assert.Equal(t, 1, stats.Hits)
}

func TestEvaluate_IncrementalRecomputeAfterLeafEdit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	// seven feeds both branches; editing left's literal must not touch
	// the right branch.
	s := f.add(t, "seven")
	left := f.add(t, "add")
	require.NoError(t, f.graph.Connect(ctx, left, "a", s))
	require.NoError(t, f.graph.SetLiteral(ctx, left, "b", cty.NumberIntVal(1)))
	right := f.add(t, "add")
	require.NoError(t, f.graph.Connect(ctx, right, "a", s))
	require.NoError(t, f.graph.SetLiteral(ctx, right, "b", cty.NumberIntVal(2)))
	top := f.add(t, "add")
	require.NoError(t, f.graph.Connect(ctx, top, "a", left))
	require.NoError(t, f.graph.Connect(ctx, top, "b", right))

	out, stats := f.evaluate(t, f.compile(t, top))
	assert.Equal(t, 17.0, out)
	assert.Equal(t, 4, stats.Computed)

	require.NoError(t, f.graph.SetLiteral(ctx, left, "b", cty.NumberIntVal(100)))
	out, stats = f.evaluate(t, f.compile(t, top))
	assert.Equal(t, 116.0, out)
	assert.Equal(t, 3, stats.Computed, "seven always reruns; left and top recompute")
	assert.Equal(t, 1, stats.Hits, "the right branch stays cached")
}

func TestEvaluate_KindChangeInvalidatesByFingerprint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	s := f.add(t, "seven")
	n := f.add(t, "add")
	require.NoError(t, f.graph.Connect(ctx, n, "a", s))
	require.NoError(t, f.graph.SetLiteral(ctx, n, "b", cty.Zero))

	out, _ := f.evaluate(t, f.compile(t, n))
	assert.Equal(t, 7.0, out)

	// Same identity, new kind: the fingerprint includes the kind, so the
	// old entry can never be served again.
	require.NoError(t, f.graph.ChangeKind(ctx, n, "boom"))
	require.NoError(t, f.graph.SetInput(ctx, n, "a", document.ConnectionBinding(s, document.DefaultOutput)))
	pg := f.compile(t, n)
	_, _, err := executor.EvaluateWithStats(context.Background(), pg, f.cache, f.reg)
	require.Error(t, err)
}

func TestEvaluate_NodeErrorAbortsAndIsNeverCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	b := f.add(t, "boom")
	require.NoError(t, f.graph.SetLiteral(ctx, b, "a", cty.Zero))

	pg := f.compile(t, b)
	_, stats, err := executor.EvaluateWithStats(context.Background(), pg, f.cache, f.reg)
	require.Error(t, err)

	var nodeErr *executor.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, b, nodeErr.Node)
	assert.Equal(t, "boom", nodeErr.Kind)
	assert.EqualError(t, nodeErr.Unwrap(), "computation exploded")
	assert.Equal(t, 0, stats.Hits)
	assert.Equal(t, 0, f.cache.Len(), "failed computations are never stored")
}

func TestEvaluate_ConnectionCoercionAppliesPerValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	// add declares number slots; route the volatile counter through to
	// confirm refs pass the declared-type conversion path.
	c := f.add(t, "counter")
	sum := f.add(t, "add")
	require.NoError(t, f.graph.Connect(ctx, sum, "a", c))
	require.NoError(t, f.graph.Connect(ctx, sum, "b", c))

	out, _ := f.evaluate(t, f.compile(t, sum))
	assert.Equal(t, 2.0, out, "both slots read the same upstream result")
}
