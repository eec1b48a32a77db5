// Package vector registers the 2D vector node kinds and the implicit
// number-to-vec2 splat coercion.
package vector

import (
	"context"
	"math"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the vector kinds and coercions.
func (m *Module) Register(r *registry.Registry) {
	// A bare number coerces to a uniform vec2, the usual splat shorthand
	// for scale factors.
	r.RegisterCoercion(value.Number(), value.Vec2(), func(v cty.Value) (cty.Value, error) {
		f, err := value.Float(v)
		if err != nil {
			return cty.NilVal, err
		}
		return value.Vec2Val(f, f), nil
	})

	r.RegisterKind(&registry.Descriptor{
		Kind: "vec2",
		Inputs: []registry.InputSignature{
			{Name: "x", Type: value.Number()},
			{Name: "y", Type: value.Number()},
		},
		Output: value.Vec2(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				x, err := value.Float(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				y, err := value.Float(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				return value.Vec2Val(x, y), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "vec2_add",
		Inputs: []registry.InputSignature{
			{Name: "a", Type: value.Vec2()},
			{Name: "b", Type: value.Vec2()},
		},
		Output: value.Vec2(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				ax, ay, err := value.Vec2Components(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				bx, by, err := value.Vec2Components(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				return value.Vec2Val(ax+bx, ay+by), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "vec2_scale",
		Inputs: []registry.InputSignature{
			{Name: "v", Type: value.Vec2()},
			{Name: "factor", Type: value.Number()},
		},
		Output: value.Vec2(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
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
	r.RegisterKind(&registry.Descriptor{
		Kind: "vec2_dot",
		Inputs: []registry.InputSignature{
			{Name: "a", Type: value.Vec2()},
			{Name: "b", Type: value.Vec2()},
		},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				ax, ay, err := value.Vec2Components(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				bx, by, err := value.Vec2Components(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				return cty.NumberFloatVal(ax*bx + ay*by), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "vec2_length",
		Inputs: []registry.InputSignature{{Name: "v", Type: value.Vec2()}},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				x, y, err := value.Vec2Components(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				return cty.NumberFloatVal(math.Hypot(x, y)), nil
			}
		},
	})
}
