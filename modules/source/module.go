// Package source registers the value-producing node kinds: typed
// passthroughs whose literal input the host edits to drive the graph,
// and the one volatile kind whose output is externally sourced.
package source

import (
	"context"
	"math/rand"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// passthrough returns its single argument unchanged.
func passthrough() registry.Computation {
	return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
		return args[0], nil
	}
}

// Register registers the source kinds.
func (m *Module) Register(r *registry.Registry) {
	zero := cty.Zero
	r.RegisterKind(&registry.Descriptor{
		Kind:   "number",
		Inputs: []registry.InputSignature{{Name: "value", Type: value.Number(), Default: &zero}},
		Output: value.Number(),
		Build:  passthrough,
	})

	empty := cty.StringVal("")
	r.RegisterKind(&registry.Descriptor{
		Kind:   "text",
		Inputs: []registry.InputSignature{{Name: "value", Type: value.String(), Default: &empty}},
		Output: value.String(),
		Build:  passthrough,
	})

	falseVal := cty.False
	r.RegisterKind(&registry.Descriptor{
		Kind:   "boolean",
		Inputs: []registry.InputSignature{{Name: "value", Type: value.Bool(), Default: &falseVal}},
		Output: value.Bool(),
		Build:  passthrough,
	})

	origin := value.Vec2Val(0, 0)
	r.RegisterKind(&registry.Descriptor{
		Kind:   "point",
		Inputs: []registry.InputSignature{{Name: "value", Type: value.Vec2(), Default: &origin}},
		Output: value.Vec2(),
		Build:  passthrough,
	})

	// random is not a pure function of its inputs: never cached, never
	// constant-folded. Hosts pair it with transitive cache invalidation.
	one := cty.NumberIntVal(1)
	r.RegisterKind(&registry.Descriptor{
		Kind: "random",
		Inputs: []registry.InputSignature{
			{Name: "min", Type: value.Number(), Default: &zero},
			{Name: "max", Type: value.Number(), Default: &one},
		},
		Output:   value.Number(),
		Volatile: true,
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				min, err := value.Float(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				max, err := value.Float(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				return cty.NumberFloatVal(min + rand.Float64()*(max-min)), nil
			}
		},
	})
}
