// Package value defines the closed set of domain value types flowing
// through the node graph. Values are cty values; the two opaque domain
// values (vector paths and image buffers) are carried as cty capsule
// types so they participate in the same type system as the primitives.
package value

import (
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/geom"
	"github.com/vk/nodeflow/internal/raster"
)

// Type is the declared type of an input slot or node output. Optional
// marks a slot that accepts a null value of the base type; a non-optional
// slot rejects null at bind time.
type Type struct {
	Base     cty.Type
	Optional bool
}

// PathCapsule is the cty capsule type wrapping *geom.Path.
var PathCapsule = cty.CapsuleWithOps("path", reflect.TypeOf(geom.Path{}), &cty.CapsuleOps{
	RawEquals: func(a, b interface{}) bool {
		return a.(*geom.Path).Equal(b.(*geom.Path))
	},
})

// ImageCapsule is the cty capsule type wrapping *raster.Image.
var ImageCapsule = cty.CapsuleWithOps("image", reflect.TypeOf(raster.Image{}), &cty.CapsuleOps{
	RawEquals: func(a, b interface{}) bool {
		return a.(*raster.Image).Equal(b.(*raster.Image))
	},
})

// vec2Type is an object with x/y number attributes.
var vec2Type = cty.Object(map[string]cty.Type{
	"x": cty.Number,
	"y": cty.Number,
})

// colorType is an object with r/g/b/a number attributes in [0, 1].
var colorType = cty.Object(map[string]cty.Type{
	"r": cty.Number,
	"g": cty.Number,
	"b": cty.Number,
	"a": cty.Number,
})

// Number is the scalar number type.
func Number() Type { return Type{Base: cty.Number} }

// Bool is the boolean type.
func Bool() Type { return Type{Base: cty.Bool} }

// String is the string type.
func String() Type { return Type{Base: cty.String} }

// Vec2 is the 2D vector type.
func Vec2() Type { return Type{Base: vec2Type} }

// Color is the RGBA color type.
func Color() Type { return Type{Base: colorType} }

// Path is the opaque geometric path type.
func Path() Type { return Type{Base: PathCapsule} }

// Image is the opaque image buffer type.
func Image() Type { return Type{Base: ImageCapsule} }

// List is the list-of-T type.
func List(elem Type) Type { return Type{Base: cty.List(elem.Base)} }

// Optional marks a type as accepting null.
func Optional(t Type) Type { return Type{Base: t.Base, Optional: true} }

// Equal reports whether two declared types are identical, including
// optionality.
func (t Type) Equal(other Type) bool {
	return t.Optional == other.Optional && t.Base.Equals(other.Base)
}

// String renders the type for error messages, with a trailing '?' for
// optional types.
func (t Type) String() string {
	name := t.Base.FriendlyName()
	switch {
	case t.Base.Equals(PathCapsule):
		name = "path"
	case t.Base.Equals(ImageCapsule):
		name = "image"
	case t.Base.Equals(vec2Type):
		name = "vec2"
	case t.Base.Equals(colorType):
		name = "color"
	}
	if t.Optional {
		return name + "?"
	}
	return name
}

// Vec2Val builds a vec2 value.
func Vec2Val(x, y float64) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"x": cty.NumberFloatVal(x),
		"y": cty.NumberFloatVal(y),
	})
}

// Vec2Components unpacks a vec2 value.
func Vec2Components(v cty.Value) (x, y float64, err error) {
	if !v.Type().Equals(vec2Type) {
		return 0, 0, fmt.Errorf("expected vec2, got %s", v.Type().FriendlyName())
	}
	x, _ = v.GetAttr("x").AsBigFloat().Float64()
	y, _ = v.GetAttr("y").AsBigFloat().Float64()
	return x, y, nil
}

// ColorVal builds an RGBA color value with channels in [0, 1].
func ColorVal(r, g, b, a float64) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"r": cty.NumberFloatVal(r),
		"g": cty.NumberFloatVal(g),
		"b": cty.NumberFloatVal(b),
		"a": cty.NumberFloatVal(a),
	})
}

// ColorComponents unpacks a color value.
func ColorComponents(v cty.Value) (r, g, b, a float64, err error) {
	if !v.Type().Equals(colorType) {
		return 0, 0, 0, 0, fmt.Errorf("expected color, got %s", v.Type().FriendlyName())
	}
	r, _ = v.GetAttr("r").AsBigFloat().Float64()
	g, _ = v.GetAttr("g").AsBigFloat().Float64()
	b, _ = v.GetAttr("b").AsBigFloat().Float64()
	a, _ = v.GetAttr("a").AsBigFloat().Float64()
	return r, g, b, a, nil
}

// PathVal wraps a geom.Path as a cty value.
func PathVal(p *geom.Path) cty.Value {
	return cty.CapsuleVal(PathCapsule, p)
}

// PathFromVal unwraps a path value.
func PathFromVal(v cty.Value) (*geom.Path, error) {
	if !v.Type().Equals(PathCapsule) {
		return nil, fmt.Errorf("expected path, got %s", v.Type().FriendlyName())
	}
	return v.EncapsulatedValue().(*geom.Path), nil
}

// ImageVal wraps a raster.Image as a cty value.
func ImageVal(im *raster.Image) cty.Value {
	return cty.CapsuleVal(ImageCapsule, im)
}

// ImageFromVal unwraps an image value.
func ImageFromVal(v cty.Value) (*raster.Image, error) {
	if !v.Type().Equals(ImageCapsule) {
		return nil, fmt.Errorf("expected image, got %s", v.Type().FriendlyName())
	}
	return v.EncapsulatedValue().(*raster.Image), nil
}

// Float unpacks a number value as a float64.
func Float(v cty.Value) (float64, error) {
	if !v.Type().Equals(cty.Number) {
		return 0, fmt.Errorf("expected number, got %s", v.Type().FriendlyName())
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}

// Format renders a value for human-readable CLI output. Opaque domain
// values render as short summaries rather than dumps.
func Format(v cty.Value) string {
	if v.IsNull() {
		return "null"
	}
	ty := v.Type()
	switch {
	case ty.Equals(PathCapsule):
		p := v.EncapsulatedValue().(*geom.Path)
		return fmt.Sprintf("path(%d segments)", p.NumSegments())
	case ty.Equals(ImageCapsule):
		im := v.EncapsulatedValue().(*raster.Image)
		return fmt.Sprintf("image(%dx%d)", im.Width(), im.Height())
	case ty.Equals(cty.Number):
		f, _ := v.AsBigFloat().Float64()
		return fmt.Sprintf("%g", f)
	case ty.Equals(cty.String):
		return fmt.Sprintf("%q", v.AsString())
	case ty.Equals(cty.Bool):
		return fmt.Sprintf("%t", v.True())
	case ty.Equals(vec2Type):
		x, y, _ := Vec2Components(v)
		return fmt.Sprintf("vec2(%g, %g)", x, y)
	case ty.Equals(colorType):
		r, g, b, a, _ := ColorComponents(v)
		return fmt.Sprintf("rgba(%g, %g, %g, %g)", r, g, b, a)
	case ty.IsListType() || ty.IsTupleType():
		out := "["
		first := true
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			if !first {
				out += ", "
			}
			out += Format(ev)
			first = false
		}
		return out + "]"
	default:
		return v.GoString()
	}
}

// sizer is implemented by encapsulated domain values that can report
// their own memory footprint.
type sizer interface {
	EstimatedSize() int
}

// EstimateSize reports the approximate in-memory size of a value in
// bytes. The cache uses it for capacity accounting; precision is not
// required, only monotonicity with the real footprint.
func EstimateSize(v cty.Value) int {
	if v.IsNull() {
		return 8
	}
	ty := v.Type()
	switch {
	case ty.IsCapsuleType():
		if s, ok := v.EncapsulatedValue().(sizer); ok {
			return s.EstimatedSize()
		}
		return 64
	case ty.Equals(cty.Number):
		return 16
	case ty.Equals(cty.Bool):
		return 1
	case ty.Equals(cty.String):
		return len(v.AsString()) + 16
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		total := 24
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			total += EstimateSize(ev)
		}
		return total
	case ty.IsObjectType() || ty.IsMapType():
		total := 24
		for it := v.ElementIterator(); it.Next(); {
			kv, ev := it.Element()
			total += EstimateSize(kv) + EstimateSize(ev)
		}
		return total
	default:
		return 32
	}
}
