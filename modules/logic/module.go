// Package logic registers the boolean and comparison node kinds.
package logic

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the logic kinds.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(&registry.Descriptor{
		Kind:   "not",
		Inputs: []registry.InputSignature{{Name: "a", Type: value.Bool()}},
		Output: value.Bool(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return cty.BoolVal(!args[0].True()), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "and",
		Inputs: []registry.InputSignature{
			{Name: "a", Type: value.Bool()},
			{Name: "b", Type: value.Bool()},
		},
		Output: value.Bool(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return cty.BoolVal(args[0].True() && args[1].True()), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "or",
		Inputs: []registry.InputSignature{
			{Name: "a", Type: value.Bool()},
			{Name: "b", Type: value.Bool()},
		},
		Output: value.Bool(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return cty.BoolVal(args[0].True() || args[1].True()), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "equals",
		Inputs: []registry.InputSignature{
			{Name: "a", Type: value.Number()},
			{Name: "b", Type: value.Number()},
		},
		Output: value.Bool(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return args[0].Equals(args[1]), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "greater_than",
		Inputs: []registry.InputSignature{
			{Name: "a", Type: value.Number()},
			{Name: "b", Type: value.Number()},
		},
		Output: value.Bool(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				return args[0].GreaterThan(args[1]), nil
			}
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "select",
		Inputs: []registry.InputSignature{
			{Name: "condition", Type: value.Bool()},
			{Name: "then", Type: value.Number()},
			{Name: "else", Type: value.Number()},
		},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				if args[0].True() {
					return args[1], nil
				}
				return args[2], nil
			}
		},
	})
}
