// Package registry holds the static catalog of node kinds: input slot
// signatures, output types, computation factories, and the coercion
// table consulted whenever an edge connects two different types.
//
// A registry is populated once at process start by a fixed set of
// modules, sealed, and never mutated afterwards. Lookups at compile and
// evaluation time are therefore lock-free.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/nodeflow/internal/ctxlog"
	"github.com/vk/nodeflow/internal/value"
)

// Computation is a node kind's runtime evaluation function. Arguments
// arrive in the order of the kind's declared input slots, fully resolved
// to concrete values.
type Computation func(ctx context.Context, args []cty.Value) (cty.Value, error)

// InputSignature declares one input slot of a node kind.
type InputSignature struct {
	Name    string
	Type    value.Type
	Default *cty.Value
}

// Descriptor describes a registered node kind.
type Descriptor struct {
	// Kind is the unique kind identifier, e.g. "add" or "path_transform".
	Kind string
	// Inputs are the kind's input slots in declaration order.
	Inputs []InputSignature
	// Output is the concrete type every node of this kind produces.
	Output value.Type
	// Build constructs the runtime computation for one node instance.
	Build func() Computation
	// Volatile marks kinds whose computation is not a pure function of
	// its inputs (externally sourced data). Volatile results are never
	// cached and never constant-folded.
	Volatile bool
}

// Input returns the signature of the named slot, if declared.
func (d *Descriptor) Input(name string) (InputSignature, bool) {
	for _, in := range d.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputSignature{}, false
}

// CoerceFunc converts a value to a target type. It is only invoked with
// values of the source type it was registered for.
type CoerceFunc func(cty.Value) (cty.Value, error)

// Module is the interface all builtin node-kind packages implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry is the node-kind catalog plus coercion table for a single
// engine instance.
type Registry struct {
	kinds     map[string]*Descriptor
	coercions map[string]CoerceFunc
	sealed    bool
}

// New creates an empty, unsealed registry.
func New() *Registry {
	return &Registry{
		kinds:     make(map[string]*Descriptor),
		coercions: make(map[string]CoerceFunc),
	}
}

// coercionKey identifies a source/target type pair.
func coercionKey(from, to cty.Type) string {
	return from.GoString() + "\x00" + to.GoString()
}

// RegisterKind adds a node kind descriptor. It panics on duplicate kinds
// or registration after sealing; both are programming errors in module
// wiring, not runtime conditions.
func (r *Registry) RegisterKind(d *Descriptor) {
	if r.sealed {
		panic(fmt.Sprintf("kind '%s' registered after registry was sealed", d.Kind))
	}
	if _, exists := r.kinds[d.Kind]; exists {
		panic(fmt.Sprintf("node kind '%s' already registered", d.Kind))
	}
	slog.Debug("Registering node kind.", "kind", d.Kind)
	r.kinds[d.Kind] = d
}

// RegisterCoercion adds an implicit conversion from one type to another.
// Edges whose endpoint types differ are valid only if a coercion exists
// (either registered here or a built-in cty conversion).
func (r *Registry) RegisterCoercion(from, to value.Type, fn CoerceFunc) {
	if r.sealed {
		panic(fmt.Sprintf("coercion %s -> %s registered after registry was sealed", from, to))
	}
	key := coercionKey(from.Base, to.Base)
	if _, exists := r.coercions[key]; exists {
		panic(fmt.Sprintf("coercion %s -> %s already registered", from, to))
	}
	slog.Debug("Registering coercion.", "from", from.String(), "to", to.String())
	r.coercions[key] = fn
}

// Lookup returns the descriptor for a kind. The second return is false
// for unknown kinds; callers surface that as a document-integrity error,
// never as a silent default.
func (r *Registry) Lookup(kind string) (*Descriptor, bool) {
	d, ok := r.kinds[kind]
	return d, ok
}

// Kinds returns all registered kind identifiers in sorted order.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Sealed reports whether the registry has been sealed.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Seal validates every registered descriptor and marks the registry
// read-only. It must be called before the first compile.
func (r *Registry) Seal(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for kind, d := range r.kinds {
		if d.Build == nil {
			errs = append(errs, fmt.Sprintf("kind '%s': missing computation factory", kind))
		}
		seen := make(map[string]struct{}, len(d.Inputs))
		for _, in := range d.Inputs {
			if _, dup := seen[in.Name]; dup {
				errs = append(errs, fmt.Sprintf("kind '%s': duplicate input slot '%s'", kind, in.Name))
			}
			seen[in.Name] = struct{}{}

			if in.Default == nil {
				continue
			}
			def := *in.Default
			if def.IsNull() {
				if !in.Type.Optional {
					errs = append(errs, fmt.Sprintf("kind '%s', input '%s': null default on non-optional slot", kind, in.Name))
				}
				continue
			}
			if !def.Type().Equals(in.Type.Base) && !r.canConvertBase(def.Type(), in.Type.Base) {
				errs = append(errs, fmt.Sprintf("kind '%s', input '%s': default of type %s does not fit declared type %s",
					kind, in.Name, def.Type().FriendlyName(), in.Type))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	r.sealed = true
	logger.Debug("Registry sealed.", "kinds", len(r.kinds), "coercions", len(r.coercions))
	return nil
}

// canConvertBase reports whether a value of type from can be converted
// to type to, by identity, registered coercion, or built-in conversion.
func (r *Registry) canConvertBase(from, to cty.Type) bool {
	if from.Equals(to) {
		return true
	}
	if _, ok := r.coercions[coercionKey(from, to)]; ok {
		return true
	}
	return convert.GetConversion(from, to) != nil
}

// CanConvert reports whether an edge from an output of type from into a
// slot of type to is valid. An optional source feeding a non-optional
// slot is rejected because a null could flow through at runtime.
func (r *Registry) CanConvert(from, to value.Type) bool {
	if from.Optional && !to.Optional {
		return false
	}
	return r.canConvertBase(from.Base, to.Base)
}

// Convert applies the coercion from a value's actual type to the target
// declared type. Identity conversions return the value unchanged. Null
// values pass through only into optional targets.
func (r *Registry) Convert(v cty.Value, to value.Type) (cty.Value, error) {
	if v.IsNull() {
		if !to.Optional {
			return cty.NilVal, fmt.Errorf("null value for non-optional type %s", to)
		}
		return cty.NullVal(to.Base), nil
	}
	from := v.Type()
	if from.Equals(to.Base) {
		return v, nil
	}
	if fn, ok := r.coercions[coercionKey(from, to.Base)]; ok {
		out, err := fn(v)
		if err != nil {
			return cty.NilVal, fmt.Errorf("coercing %s to %s: %w", from.FriendlyName(), to, err)
		}
		return out, nil
	}
	out, err := convert.Convert(v, to.Base)
	if err != nil {
		return cty.NilVal, fmt.Errorf("converting %s to %s: %w", from.FriendlyName(), to, err)
	}
	return out, nil
}
