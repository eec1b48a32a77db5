package compiler_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/cache"
	"github.com/vk/nodeflow/internal/compiler"
	"github.com/vk/nodeflow/internal/document"
	"github.com/vk/nodeflow/internal/proto"
	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// buildRegistry returns a sealed registry of small test kinds. Every
// pure computation increments computed, so tests can observe exactly
// how much work folding and refolding perform.
func buildRegistry(t *testing.T, computed *atomic.Int64) *registry.Registry {
	t.Helper()
	zero := cty.Zero
	one := cty.NumberIntVal(1)

	r := registry.New()
	r.RegisterCoercion(value.Number(), value.Vec2(), func(v cty.Value) (cty.Value, error) {
		f, err := value.Float(v)
		if err != nil {
			return cty.NilVal, err
		}
		return value.Vec2Val(f, f), nil
	})

	r.RegisterKind(&registry.Descriptor{
		Kind:   "number",
		Inputs: []registry.InputSignature{{Name: "value", Type: value.Number(), Default: &zero}},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				computed.Add(1)
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
				computed.Add(1)
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
		Kind:   "fail",
		Inputs: []registry.InputSignature{{Name: "a", Type: value.Number()}},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return cty.NilVal, assert.AnError
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "vec2_scale",
		Inputs: []registry.InputSignature{
			{Name: "v", Type: value.Vec2()},
			{Name: "factor", Type: value.Number(), Default: &one},
		},
		Output: value.Vec2(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				computed.Add(1)
				x, y, err := value.Vec2Components(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				f, err := value.Float(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				return value.Vec2Val(x*f, y*f), nil
			}
		},
	})
	// tick is not a pure function of its inputs; nothing downstream of it
	// can be folded.
	r.RegisterKind(&registry.Descriptor{
		Kind:     "tick",
		Inputs:   []registry.InputSignature{{Name: "seed", Type: value.Number(), Default: &zero}},
		Output:   value.Number(),
		Volatile: true,
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return cty.NumberIntVal(42), nil
			}
		},
	})
	require.NoError(t, r.Seal(context.Background()))
	return r
}

func mustAdd(t *testing.T, g *document.Graph, kind string) document.ID {
	t.Helper()
	id, err := g.AddNode(context.Background(), kind, document.Metadata{})
	require.NoError(t, err)
	return id
}

func TestCompile_FoldsLiteralGraphToSingleConstant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var computed atomic.Int64
	reg := buildRegistry(t, &computed)
	g := document.NewGraph(reg)

	a := mustAdd(t, g, "number")
	require.NoError(t, g.SetLiteral(ctx, a, "value", cty.NumberIntVal(2)))
	b := mustAdd(t, g, "number")
	require.NoError(t, g.SetLiteral(ctx, b, "value", cty.NumberIntVal(3)))
	sum := mustAdd(t, g, "add")
	require.NoError(t, g.Connect(ctx, sum, "a", a))
	require.NoError(t, g.Connect(ctx, sum, "b", b))

	pg, err := compiler.Compile(ctx, g.Snapshot(), reg, sum, 1, nil)
	require.NoError(t, err)

	require.Equal(t, 1, pg.Len(), "fully foldable graph collapses to one literal entry")
	out := pg.OutputNode()
	require.True(t, out.IsConstant())
	f, err := value.Float(*out.Value)
	require.NoError(t, err)
	assert.Equal(t, 5.0, f)
}

func TestCompile_DeadNodesEliminated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var computed atomic.Int64
	reg := buildRegistry(t, &computed)
	g := document.NewGraph(reg)

	tick := mustAdd(t, g, "tick")
	live := mustAdd(t, g, "add")
	require.NoError(t, g.Connect(ctx, live, "a", tick))
	require.NoError(t, g.SetLiteral(ctx, live, "b", cty.NumberIntVal(1)))
	dead := mustAdd(t, g, "number")

	pg, err := compiler.Compile(ctx, g.Snapshot(), reg, live, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, pg.Len())
	_, ok := pg.OrdinalOf(dead)
	assert.False(t, ok, "unreachable node must be dropped")
	_, ok = pg.OrdinalOf(tick)
	assert.True(t, ok)
}

func TestCompile_OutputNotFound(t *testing.T) {
	t.Parallel()
	var computed atomic.Int64
	reg := buildRegistry(t, &computed)
	g := document.NewGraph(reg)

	_, err := compiler.Compile(context.Background(), g.Snapshot(), reg, document.ID("ghost"), 1, nil)
	var notFound *document.OutputNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCompile_CycleError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var computed atomic.Int64
	reg := buildRegistry(t, &computed)
	g := document.NewGraph(reg)

	a := mustAdd(t, g, "add")
	b := mustAdd(t, g, "add")
	require.NoError(t, g.SetLiteral(ctx, a, "b", cty.Zero))
	require.NoError(t, g.SetLiteral(ctx, b, "b", cty.Zero))
	require.NoError(t, g.Connect(ctx, a, "a", b))
	require.NoError(t, g.Connect(ctx, b, "a", a))

	_, err := compiler.Compile(ctx, g.Snapshot(), reg, a, 1, nil)
	var cycle *document.CycleError
	require.ErrorAs(t, err, &cycle)
}

func TestCompile_DanglingFailsEvenWhenUnreachable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var computed atomic.Int64
	reg := buildRegistry(t, &computed)
	g := document.NewGraph(reg)

	src := mustAdd(t, g, "number")
	orphan := mustAdd(t, g, "add")
	require.NoError(t, g.Connect(ctx, orphan, "a", src))
	require.NoError(t, g.SetLiteral(ctx, orphan, "b", cty.Zero))
	out := mustAdd(t, g, "number")
	require.NoError(t, g.RemoveNode(ctx, src))

	// The dangling slot is not reachable from out, but a dirty document
	// never compiles.
	_, err := compiler.Compile(ctx, g.Snapshot(), reg, out, 1, nil)
	var dangling *document.DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, orphan, dangling.Node)
}

func TestCompile_UnboundSlotFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var computed atomic.Int64
	reg := buildRegistry(t, &computed)
	g := document.NewGraph(reg)

	sum := mustAdd(t, g, "add")

	_, err := compiler.Compile(ctx, g.Snapshot(), reg, sum, 1, nil)
	var dangling *document.DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "a", dangling.Slot)
}

func TestCompile_RecordsConnectionCoercion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var computed atomic.Int64
	reg := buildRegistry(t, &computed)
	g := document.NewGraph(reg)

	tick := mustAdd(t, g, "tick")
	scale := mustAdd(t, g, "vec2_scale")
	// tick outputs a number; the v slot declares vec2. The registered
	// splat coercion makes the edge valid and the executor applies it.
	require.NoError(t, g.Connect(ctx, scale, "v", tick))

	pg, err := compiler.Compile(ctx, g.Snapshot(), reg, scale, 1, nil)
	require.NoError(t, err)

	ord, ok := pg.OrdinalOf(scale)
	require.True(t, ok)
	arg := pg.Node(ord).Args[0]
	require.False(t, arg.IsLiteral())
	require.NotNil(t, arg.Convert)
	assert.True(t, arg.Convert.Equal(value.Vec2()))
}

func TestCompile_FoldFailureDeferredToEvaluation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var computed atomic.Int64
	reg := buildRegistry(t, &computed)
	g := document.NewGraph(reg)

	f := mustAdd(t, g, "fail")
	require.NoError(t, g.SetLiteral(ctx, f, "a", cty.Zero))

	// Compilation succeeds; the failing node stays unfolded so the error
	// surfaces at evaluation with the node identity attached.
	pg, err := compiler.Compile(ctx, g.Snapshot(), reg, f, 1, nil)
	require.NoError(t, err)
	require.Equal(t, 1, pg.Len())
	assert.False(t, pg.OutputNode().IsConstant())
}

// projection is the comparable shape of a proto-node used by the
// determinism test.
type projection struct {
	ID       document.ID
	Kind     string
	Constant bool
	Args     []string
}

func projectNode(n proto.Node) projection {
	p := projection{ID: n.DocumentID, Kind: n.Kind, Constant: n.IsConstant()}
	if n.IsConstant() {
		p.Args = append(p.Args, n.Value.GoString())
	}
	for _, a := range n.Args {
		if a.IsLiteral() {
			p.Args = append(p.Args, a.Name+"="+a.Literal.GoString())
		} else {
			p.Args = append(p.Args, fmt.Sprintf("%s=#%d", a.Name, a.Ref))
		}
	}
	return p
}

func TestCompile_Deterministic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var computed atomic.Int64
	reg := buildRegistry(t, &computed)
	g := document.NewGraph(reg)

	tick := mustAdd(t, g, "tick")
	left := mustAdd(t, g, "add")
	require.NoError(t, g.Connect(ctx, left, "a", tick))
	require.NoError(t, g.SetLiteral(ctx, left, "b", cty.NumberIntVal(1)))
	right := mustAdd(t, g, "add")
	require.NoError(t, g.Connect(ctx, right, "a", tick))
	require.NoError(t, g.SetLiteral(ctx, right, "b", cty.NumberIntVal(2)))
	top := mustAdd(t, g, "add")
	require.NoError(t, g.Connect(ctx, top, "a", left))
	require.NoError(t, g.Connect(ctx, top, "b", right))

	snap := g.Snapshot()
	first, err := compiler.Compile(ctx, snap, reg, top, 1, nil)
	require.NoError(t, err)
	second, err := compiler.Compile(ctx, snap, reg, top, 1, nil)
	require.NoError(t, err)

	require.Equal(t, first.Len(), second.Len())
	var a, b []projection
	for i := 0; i < first.Len(); i++ {
		a = append(a, projectNode(first.Node(i)))
		b = append(b, projectNode(second.Node(i)))
	}
	require.Nil(t, deep.Equal(a, b), "recompiling the same snapshot must produce an identical graph")

	// Independent siblings order by insertion sequence: left before right.
	lo, _ := first.OrdinalOf(left)
	ro, _ := first.OrdinalOf(right)
	assert.Less(t, lo, ro)
}

func TestCompile_FoldingIsMemoizedAcrossCompiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var computed atomic.Int64
	reg := buildRegistry(t, &computed)
	g := document.NewGraph(reg)
	c := cache.New(cache.Config{})

	// Two independent chains joined at the top:
	//   x -> dx        y -> dy
	//         \        /
	//          top(add)
	x := mustAdd(t, g, "number")
	require.NoError(t, g.SetLiteral(ctx, x, "value", cty.NumberIntVal(3)))
	dx := mustAdd(t, g, "add")
	require.NoError(t, g.Connect(ctx, dx, "a", x))
	require.NoError(t, g.SetLiteral(ctx, dx, "b", cty.NumberIntVal(10)))

	y := mustAdd(t, g, "number")
	require.NoError(t, g.SetLiteral(ctx, y, "value", cty.NumberIntVal(5)))
	dy := mustAdd(t, g, "add")
	require.NoError(t, g.Connect(ctx, dy, "a", y))
	require.NoError(t, g.SetLiteral(ctx, dy, "b", cty.NumberIntVal(20)))

	top := mustAdd(t, g, "add")
	require.NoError(t, g.Connect(ctx, top, "a", dx))
	require.NoError(t, g.Connect(ctx, top, "b", dy))

	result := func(generation uint64) float64 {
		pg, err := compiler.Compile(ctx, g.Snapshot(), reg, top, generation, c)
		require.NoError(t, err)
		require.True(t, pg.OutputNode().IsConstant())
		f, err := value.Float(*pg.OutputNode().Value)
		require.NoError(t, err)
		return f
	}

	assert.Equal(t, 38.0, result(1))
	assert.Equal(t, int64(5), computed.Load(), "first compile folds every node once")

	assert.Equal(t, 38.0, result(2))
	assert.Equal(t, int64(5), computed.Load(), "an unchanged graph refolds entirely from cache")

	// Editing one leaf re-evaluates only that leaf and its dependents.
	require.NoError(t, g.SetLiteral(ctx, x, "value", cty.NumberIntVal(4)))
	assert.Equal(t, 39.0, result(3))
	assert.Equal(t, int64(8), computed.Load(), "only x, dx, and top recompute; the y chain stays cached")
}
