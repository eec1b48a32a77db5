// Package arith registers the scalar arithmetic node kinds.
package arith

import (
	"context"
	"fmt"
	"math"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// binary wraps a two-operand float computation as a registry computation.
func binary(fn func(a, b float64) (float64, error)) registry.Computation {
	return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
		a, err := value.Float(args[0])
		if err != nil {
			return cty.NilVal, err
		}
		b, err := value.Float(args[1])
		if err != nil {
			return cty.NilVal, err
		}
		out, err := fn(a, b)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.NumberFloatVal(out), nil
	}
}

// unary wraps a one-operand float computation.
func unary(fn func(a float64) (float64, error)) registry.Computation {
	return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
		a, err := value.Float(args[0])
		if err != nil {
			return cty.NilVal, err
		}
		out, err := fn(a)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.NumberFloatVal(out), nil
	}
}

func twoNumbers() []registry.InputSignature {
	return []registry.InputSignature{
		{Name: "a", Type: value.Number()},
		{Name: "b", Type: value.Number()},
	}
}

// Register registers the arithmetic kinds.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(&registry.Descriptor{
		Kind:   "add",
		Inputs: twoNumbers(),
		Output: value.Number(),
		Build: func() registry.Computation {
			return binary(func(a, b float64) (float64, error) { return a + b, nil })
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "subtract",
		Inputs: twoNumbers(),
		Output: value.Number(),
		Build: func() registry.Computation {
			return binary(func(a, b float64) (float64, error) { return a - b, nil })
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "multiply",
		Inputs: twoNumbers(),
		Output: value.Number(),
		Build: func() registry.Computation {
			return binary(func(a, b float64) (float64, error) { return a * b, nil })
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "divide",
		Inputs: twoNumbers(),
		Output: value.Number(),
		Build: func() registry.Computation {
			return binary(func(a, b float64) (float64, error) {
				if b == 0 {
					return 0, fmt.Errorf("division by zero")
				}
				return a / b, nil
			})
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "modulo",
		Inputs: twoNumbers(),
		Output: value.Number(),
		Build: func() registry.Computation {
			return binary(func(a, b float64) (float64, error) {
				if b == 0 {
					return 0, fmt.Errorf("modulo by zero")
				}
				return math.Mod(a, b), nil
			})
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "min",
		Inputs: twoNumbers(),
		Output: value.Number(),
		Build: func() registry.Computation {
			return binary(func(a, b float64) (float64, error) { return math.Min(a, b), nil })
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "max",
		Inputs: twoNumbers(),
		Output: value.Number(),
		Build: func() registry.Computation {
			return binary(func(a, b float64) (float64, error) { return math.Max(a, b), nil })
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "negate",
		Inputs: []registry.InputSignature{{Name: "a", Type: value.Number()}},
		Output: value.Number(),
		Build: func() registry.Computation {
			return unary(func(a float64) (float64, error) { return -a, nil })
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind:   "sqrt",
		Inputs: []registry.InputSignature{{Name: "a", Type: value.Number()}},
		Output: value.Number(),
		Build: func() registry.Computation {
			return unary(func(a float64) (float64, error) {
				if a < 0 {
					return 0, fmt.Errorf("square root of negative number %v", a)
				}
				return math.Sqrt(a), nil
			})
		},
	})
	r.RegisterKind(&registry.Descriptor{
		Kind: "lerp",
		Inputs: []registry.InputSignature{
			{Name: "a", Type: value.Number()},
			{Name: "b", Type: value.Number()},
			{Name: "t", Type: value.Number()},
		},
		Output: value.Number(),
		Build: func() registry.Computation {
			return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
				a, err := value.Float(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				b, err := value.Float(args[1])
				if err != nil {
					return cty.NilVal, err
				}
				t, err := value.Float(args[2])
				if err != nil {
					return cty.NilVal, err
				}
				return cty.NumberFloatVal(a + (b-a)*t), nil
			}
		},
	})
}
