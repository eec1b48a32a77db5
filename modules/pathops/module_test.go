package pathops_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/nodeflow/internal/testutil"
	"github.com/vk/nodeflow/internal/value"
)

func TestLineAndEvaluate(t *testing.T) {
	t.Parallel()

	src := `
node "line" "seg" {
  from = vec2(0, 0)
  to   = vec2(10, 20)
}
node "path_evaluate" "r" {
  path = node.seg
  t    = 0.5
}
output = node.r
`
	p := testutil.NewPipeline(t)
	v, _ := p.Render(t, src)
	x, y, err := value.Vec2Components(v)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, x, 1e-9)
	assert.InDelta(t, 10.0, y, 1e-9)
}

func TestCubicEndpoints(t *testing.T) {
	t.Parallel()

	src := `
node "cubic" "curve" {
  from = vec2(0, 0)
  c1   = vec2(1, 2)
  c2   = vec2(3, 2)
  to   = vec2(4, 0)
}
node "path_evaluate" "r" {
  path = node.curve
  t    = 1
}
output = node.r
`
	p := testutil.NewPipeline(t)
	v, _ := p.Render(t, src)
	x, y, err := value.Vec2Components(v)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, x, 1e-9)
	assert.InDelta(t, 0.0, y, 1e-9)
}

func TestSplitHalvesTraceTheCurve(t *testing.T) {
	t.Parallel()

	// The end of the first half and the start of the second half must
	// both land on the split point.
	src := `
node "line" "seg" {
  from = vec2(0, 0)
  to   = vec2(8, 4)
}
node "path_split_before" "head" {
  path = node.seg
  t    = 0.25
}
node "path_split_after" "tail" {
  path = node.seg
  t    = 0.25
}
node "path_evaluate" "head_end" {
  path = node.head
  t    = 1
}
node "path_evaluate" "tail_start" {
  path = node.tail
  t    = 0
}
output = node.head_end
`
	p := testutil.NewPipeline(t)
	v, _ := p.Render(t, src)
	x, y, err := value.Vec2Components(v)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, x, 1e-9)
	assert.InDelta(t, 1.0, y, 1e-9)

	src2 := src[:len(src)-len("output = node.head_end\n")] + "output = node.tail_start\n"
	p2 := testutil.NewPipeline(t)
	v2, _ := p2.Render(t, src2)
	x2, y2, err := value.Vec2Components(v2)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, x2, 1e-9)
	assert.InDelta(t, 1.0, y2, 1e-9)
}

func TestTransformOrderIsScaleRotateTranslate(t *testing.T) {
	t.Parallel()

	// Scaling (2, 2) then translating (10, 0) maps the endpoint (1, 1)
	// to (12, 2). Translate-then-scale would give (22, 2).
	src := `
node "line" "seg" {
  from = vec2(0, 0)
  to   = vec2(1, 1)
}
node "path_transform" "moved" {
  path      = node.seg
  translate = vec2(10, 0)
  scale     = vec2(2, 2)
}
node "path_evaluate" "r" {
  path = node.moved
  t    = 1
}
output = node.r
`
	p := testutil.NewPipeline(t)
	v, _ := p.Render(t, src)
	x, y, err := value.Vec2Components(v)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, x, 1e-9)
	assert.InDelta(t, 2.0, y, 1e-9)
}

func TestTransformDefaultsAreIdentity(t *testing.T) {
	t.Parallel()

	src := `
node "line" "seg" {
  from = vec2(3, 4)
  to   = vec2(5, 6)
}
node "path_transform" "same" {
  path = node.seg
}
node "path_evaluate" "r" {
  path = node.same
  t    = 0
}
output = node.r
`
	p := testutil.NewPipeline(t)
	v, _ := p.Render(t, src)
	x, y, err := value.Vec2Components(v)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, x, 1e-9)
	assert.InDelta(t, 4.0, y, 1e-9)
}

func TestBounds(t *testing.T) {
	t.Parallel()

	src := `
node "line" "seg" {
  from = vec2(5, -2)
  to   = vec2(-1, 7)
}
node "path_bounds_min" "lo" {
  path = node.seg
}
node "path_bounds_max" "hi" {
  path = node.seg
}
output = node.lo
`
	p := testutil.NewPipeline(t)
	v, _ := p.Render(t, src)
	x, y, err := value.Vec2Components(v)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, x, 1e-9)
	assert.InDelta(t, -2.0, y, 1e-9)

	src2 := src[:len(src)-len("output = node.lo\n")] + "output = node.hi\n"
	p2 := testutil.NewPipeline(t)
	v2, _ := p2.Render(t, src2)
	x2, y2, err := value.Vec2Components(v2)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, x2, 1e-9)
	assert.InDelta(t, 7.0, y2, 1e-9)
}

func TestEvaluateOutOfRange(t *testing.T) {
	t.Parallel()

	src := `
node "line" "seg" {
  from = vec2(0, 0)
  to   = vec2(1, 1)
}
node "path_evaluate" "r" {
  path = node.seg
  t    = 1.5
}
output = node.r
`
	p := testutil.NewPipeline(t)
	doc := testutil.MustLoadSource(t, p.Reg, src)
	pg := p.Compile(t, doc.Graph, doc.Output)
	_, err := p.TryEvaluate(pg)
	require.Error(t, err)
}
