// Package pathops registers the geometric path node kinds. Path values
// are opaque to the engine; every kind here delegates to the geometry
// library's public operations.
package pathops

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/geom"
	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func pointArg(v cty.Value) (geom.Point, error) {
	x, y, err := value.Vec2Components(v)
	if err != nil {
		return geom.Point{}, err
	}
	return geom.Point{X: x, Y: y}, nil
}

// Register registers the path kinds.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(&registry.Descriptor{
		Kind: "line",
		Inputs: []registry.InputSignature{
			{Name: "from", Type: value.Vec2()},
			{Name: "to", Type: value.Vec2()},
		},
		Output: value.Path(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				from, err := pointArg(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				to, err := pointArg(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				return value.PathVal(geom.Line(from, to)), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "cubic",
		Inputs: []registry.InputSignature{
			{Name: "from", Type: value.Vec2()},
			{Name: "c1", Type: value.Vec2()},
			{Name: "c2", Type: value.Vec2()},
			{Name: "to", Type: value.Vec2()},
		},
		Output: value.Path(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				pts := make([]geom.Point, 4)
				for i := range args {
					p, err := pointArg(args[i])
					if err != nil {
						return cty.NilVal, err
					}
					pts[i] = p
				}
				seg := geom.Segment{From: pts[0], C1: pts[1], C2: pts[2], To: pts[3]}
				return value.PathVal(geom.NewPath(seg)), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "path_evaluate",
		Inputs: []registry.InputSignature{
			{Name: "path", Type: value.Path()},
			{Name: "t", Type: value.Number()},
		},
		Output: value.Vec2(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				p, err := value.PathFromVal(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				t, err := value.Float(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				pt, err := p.Evaluate(t)
				if err != nil {
					return cty.NilVal, err
				}
				return value.Vec2Val(pt.X, pt.Y), nil
			}
		},
	})

	// Split produces two paths; the single-output node model exposes the
	// halves as two kinds.
	splitInputs := func() []registry.InputSignature {
		return []registry.InputSignature{
			{Name: "path", Type: value.Path()},
			{Name: "t", Type: value.Number()},
		}
	}
	split := func(second bool) registry.Computation {
		return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
			p, err := value.PathFromVal(args[0])
			if err != nil {
				return cty.NilVal, err
			}
			t, err := value.Float(args[1])
			if err != nil {
				return cty.NilVal, err
			}
			before, after, err := p.Split(t)
			if err != nil {
				return cty.NilVal, err
			}
			if second {
				return value.PathVal(after), nil
			}
			return value.PathVal(before), nil
		}
	}
	r.RegisterKind(&registry.Descriptor{
		Kind:   "path_split_before",
		Inputs: splitInputs(),
		Output: value.Path(),
		Build:  func() registry.Computation { return split(false) },
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "path_split_after",
		Inputs: splitInputs(),
		Output: value.Path(),
		Build:  func() registry.Computation { return split(true) },
	})

	zero := cty.Zero
	oneVec := value.Vec2Val(1, 1)
	zeroVec := value.Vec2Val(0, 0)
	r.RegisterKind(&registry.Descriptor{
		Kind: "path_transform",
		Inputs: []registry.InputSignature{
			{Name: "path", Type: value.Path()},
			{Name: "translate", Type: value.Vec2(), Default: &zeroVec},
			{Name: "scale", Type: value.Vec2(), Default: &oneVec},
			{Name: "rotate", Type: value.Number(), Default: &zero},
		},
		Output: value.Path(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				p, err := value.PathFromVal(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				translate, err := pointArg(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				scale, err := pointArg(args[2])
				if err != nil {
					return cty.NilVal, err
				}
				radians, err := value.Float(args[3])
				if err != nil {
					return cty.NilVal, err
				}
				// Scale, then rotate, then translate.
				out := p.Transform(geom.Scale(scale.X, scale.Y))
				if radians != 0 {
					out = out.Transform(geom.Rotate(radians))
				}
				out = out.Transform(geom.Translate(translate.X, translate.Y))
				return value.PathVal(out), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "path_bounds_min",
		Inputs: []registry.InputSignature{{Name: "path", Type: value.Path()}},
		Output: value.Vec2(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				p, err := value.PathFromVal(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				min, _, err := p.Bounds()
				if err != nil {
					return cty.NilVal, err
				}
				return value.Vec2Val(min.X, min.Y), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "path_bounds_max",
		Inputs: []registry.InputSignature{{Name: "path", Type: value.Path()}},
		Output: value.Vec2(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				p, err := value.PathFromVal(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				_, max, err := p.Bounds()
				if err != nil {
					return cty.NilVal, err
				}
				return value.Vec2Val(max.X, max.Y), nil
			}
		},
	})
}
