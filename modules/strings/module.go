// Package strings registers the text node kinds.
package strings

import (
	"context"
	"fmt"
	gostrings "strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// maxRepeatCount bounds the explicit iteration construct; the graph
// language has no unbounded loops.
const maxRepeatCount = 10000

// Register registers the text kinds.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(&registry.Descriptor{
		Kind: "concat",
		Inputs: []registry.InputSignature{
			{Name: "a", Type: value.String()},
			{Name: "b", Type: value.String()},
		},
		Output: value.String(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return cty.StringVal(args[0].AsString() + args[1].AsString()), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "uppercase",
		Inputs: []registry.InputSignature{{Name: "text", Type: value.String()}},
		Output: value.String(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return cty.StringVal(gostrings.ToUpper(args[0].AsString())), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "lowercase",
		Inputs: []registry.InputSignature{{Name: "text", Type: value.String()}},
		Output: value.String(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return cty.StringVal(gostrings.ToLower(args[0].AsString())), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "text_length",
		Inputs: []registry.InputSignature{{Name: "text", Type: value.String()}},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return cty.NumberIntVal(int64(len(args[0].AsString()))), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "repeat",
		Inputs: []registry.InputSignature{
			{Name: "text", Type: value.String()},
			{Name: "count", Type: value.Number()},
		},
		Output: value.String(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				count, err := value.Float(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				n := int(count)
				if n < 0 || n > maxRepeatCount {
					return cty.NilVal, fmt.Errorf("repeat count %d out of range [0, %d]", n, maxRepeatCount)
				}
				return cty.StringVal(gostrings.Repeat(args[0].AsString(), n)), nil
			}
		},
	})
}
