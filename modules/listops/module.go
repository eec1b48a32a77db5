// Package listops registers the list-of-number node kinds, including
// the bounded range construct (iteration in the graph is explicit and
// bounded, never open-ended).
package listops

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// maxRangeLen bounds the range construct.
const maxRangeLen = 100000

// Register registers the list kinds.
func (m *Module) Register(r *registry.Registry) {
	one := cty.NumberIntVal(1)
	r.RegisterKind(&registry.Descriptor{
		Kind: "range",
		Inputs: []registry.InputSignature{
			{Name: "from", Type: value.Number()},
			{Name: "to", Type: value.Number()},
			{Name: "step", Type: value.Number(), Default: &one},
		},
		Output: value.List(value.Number()),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				from, err := value.Float(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				to, err := value.Float(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				step, err := value.Float(args[2])
				if err != nil {
					return cty.NilVal, err
				}
				if step <= 0 {
					return cty.NilVal, fmt.Errorf("range step must be positive, got %v", step)
				}
				if (to-from)/step > maxRangeLen {
					return cty.NilVal, fmt.Errorf("range longer than %d elements", maxRangeLen)
				}
				var elems []cty.Value
				for x := from; x < to; x += step {
					elems = append(elems, cty.NumberFloatVal(x))
				}
				if len(elems) == 0 {
					return cty.ListValEmpty(cty.Number), nil
				}
				return cty.ListVal(elems), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "list_sum",
		Inputs: []registry.InputSignature{{Name: "list", Type: value.List(value.Number())}},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				total := 0.0
				for it := args[0].ElementIterator(); it.Next(); {
					_, ev := it.Element()
					f, err := value.Float(ev)
					if err != nil {
						return cty.NilVal, err
					}
					total += f
				}
				return cty.NumberFloatVal(total), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "list_length",
		Inputs: []registry.InputSignature{{Name: "list", Type: value.List(value.Number())}},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return cty.NumberIntVal(int64(args[0].LengthInt())), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "list_get",
		Inputs: []registry.InputSignature{
			{Name: "list", Type: value.List(value.Number())},
			{Name: "index", Type: value.Number()},
		},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				idx, err := value.Float(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				i := int(idx)
				if i < 0 || i >= args[0].LengthInt() {
					return cty.NilVal, fmt.Errorf("index %d out of range [0, %d)", i, args[0].LengthInt())
				}
				return args[0].Index(cty.NumberIntVal(int64(i))), nil
			}
		},
	})
}
