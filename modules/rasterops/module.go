// Package rasterops registers the image buffer node kinds. The final
// image value for a requested output is handed to the render backend
// unmodified.
package rasterops

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/raster"
	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// maxCanvasDim bounds a single canvas edge; buffers beyond this are a
// user error, not a legitimate document.
const maxCanvasDim = 16384

// Register registers the raster kinds.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(&registry.Descriptor{
		Kind: "canvas",
		Inputs: []registry.InputSignature{
			{Name: "width", Type: value.Number()},
			{Name: "height", Type: value.Number()},
		},
		Output: value.Image(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				w, err := value.Float(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				h, err := value.Float(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				if w > maxCanvasDim || h > maxCanvasDim {
					return cty.NilVal, fmt.Errorf("canvas %vx%v exceeds maximum edge %d", w, h, maxCanvasDim)
				}
				im, err := raster.New(int(w), int(h))
				if err != nil {
					return cty.NilVal, err
				}
				return value.ImageVal(im), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "fill",
		Inputs: []registry.InputSignature{
			{Name: "image", Type: value.Image()},
			{Name: "color", Type: value.Color()},
		},
		Output: value.Image(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				im, err := value.ImageFromVal(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				cr, cg, cb, ca, err := value.ColorComponents(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				return value.ImageVal(im.Fill(cr, cg, cb, ca)), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "composite_over",
		Inputs: []registry.InputSignature{
			{Name: "bottom", Type: value.Image()},
			{Name: "top", Type: value.Image()},
		},
		Output: value.Image(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				bottom, err := value.ImageFromVal(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				top, err := value.ImageFromVal(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				out, err := bottom.Over(top)
				if err != nil {
					return cty.NilVal, err
				}
				return value.ImageVal(out), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "opacity",
		Inputs: []registry.InputSignature{
			{Name: "image", Type: value.Image()},
			{Name: "factor", Type: value.Number()},
		},
		Output: value.Image(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				im, err := value.ImageFromVal(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				f, err := value.Float(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				out, err := im.Opacity(f)
				if err != nil {
					return cty.NilVal, err
				}
				return value.ImageVal(out), nil
			}
		},
	})
}
