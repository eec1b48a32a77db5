package arith_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/nodeflow/internal/testutil"
	"github.com/vk/nodeflow/internal/value"
)

// binarySrc renders a one-node definition for a two-operand kind.
func binarySrc(kind string, a, b float64) string {
	return fmt.Sprintf("node %q \"r\" {\n  a = %v\n  b = %v\n}\noutput = node.r\n", kind, a, b)
}

// unarySrc renders a one-node definition for a one-operand kind.
func unarySrc(kind string, a float64) string {
	return fmt.Sprintf("node %q \"r\" {\n  a = %v\n}\noutput = node.r\n", kind, a)
}

func TestArithmeticKinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  string
		want float64
	}{
		{name: "add", src: binarySrc("add", 2, 3), want: 5},
		{name: "subtract", src: binarySrc("subtract", 2, 3), want: -1},
		{name: "multiply", src: binarySrc("multiply", 4, 2.5), want: 10},
		{name: "divide", src: binarySrc("divide", 9, 2), want: 4.5},
		{name: "modulo", src: binarySrc("modulo", 7, 3), want: 1},
		{name: "min", src: binarySrc("min", 7, 3), want: 3},
		{name: "max", src: binarySrc("max", 7, 3), want: 7},
		{name: "negate", src: unarySrc("negate", 7), want: -7},
		{name: "sqrt", src: unarySrc("sqrt", 16), want: 4},
		{
			name: "lerp",
			src: `
node "lerp" "r" {
  a = 0
  b = 10
  t = 0.25
}
output = node.r
`,
			want: 2.5,
		},
		{
			name: "chained",
			src: `
node "add" "sum" {
  a = 2
  b = 3
}
node "multiply" "r" {
  a = node.sum
  b = node.sum
}
output = node.r
`,
			want: 25,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := testutil.NewPipeline(t)
			v, _ := p.Render(t, tc.src)
			f, err := value.Float(v)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, f, 1e-9)
		})
	}
}

func TestArithmeticErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  string
	}{
		{name: "divide by zero", src: binarySrc("divide", 1, 0)},
		{name: "modulo by zero", src: binarySrc("modulo", 1, 0)},
		{name: "sqrt of negative", src: unarySrc("sqrt", -4)},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := testutil.NewPipeline(t)
			doc := testutil.MustLoadSource(t, p.Reg, tc.src)
			// Folding defers the failure; it must surface at evaluation.
			pg := p.Compile(t, doc.Graph, doc.Output)
			_, err := p.TryEvaluate(pg)
			require.Error(t, err)
		})
	}
}
