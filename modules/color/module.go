// Package color registers the color node kinds and the implicit
// number-to-grayscale coercion.
package color

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func channel(v cty.Value, name string) (float64, error) {
	f, err := value.Float(v)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("channel '%s' value %v out of range [0, 1]", name, f)
	}
	return f, nil
}

// Register registers the color kinds and coercions.
func (m *Module) Register(r *registry.Registry) {
	// A bare number coerces to an opaque grayscale color.
	r.RegisterCoercion(value.Number(), value.Color(), func(v cty.Value) (cty.Value, error) {
		f, err := channel(v, "gray")
		if err != nil {
			return cty.NilVal, err
		}
		return value.ColorVal(f, f, f, 1), nil
	})

	one := cty.NumberIntVal(1)
	r.RegisterKind(&registry.Descriptor{
		Kind: "rgba",
		Inputs: []registry.InputSignature{
			{Name: "r", Type: value.Number()},
			{Name: "g", Type: value.Number()},
			{Name: "b", Type: value.Number()},
			{Name: "a", Type: value.Number(), Default: &one},
		},
		Output: value.Color(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				names := []string{"r", "g", "b", "a"}
				ch := make([]float64, 4)
				for i := range args {
					f, err := channel(args[i], names[i])
					if err != nil {
						return cty.NilVal, err
					}
					ch[i] = f
				}
				return value.ColorVal(ch[0], ch[1], ch[2], ch[3]), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "color_mix",
		Inputs: []registry.InputSignature{
			{Name: "a", Type: value.Color()},
			{Name: "b", Type: value.Color()},
			{Name: "t", Type: value.Number()},
		},
		Output: value.Color(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				ar, ag, ab, aa, err := value.ColorComponents(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				br, bg, bb, ba, err := value.ColorComponents(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				t, err := channel(args[2], "t")
				if err != nil {
					return cty.NilVal, err
				}
				mix := func(x, y float64) float64 { return x + (y-x)*t }
				return value.ColorVal(mix(ar, br), mix(ag, bg), mix(ab, bb), mix(aa, ba)), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "luminance",
		Inputs: []registry.InputSignature{{Name: "color", Type: value.Color()}},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				cr, cg, cb, _, err := value.ColorComponents(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				// Rec. 709 weights.
				return cty.NumberFloatVal(0.2126*cr + 0.7152*cg + 0.0722*cb), nil
			}
		},
	})
}
