// Package geom implements the 2D vector path value consumed by path node
// kinds. The rest of the engine treats Path as an opaque value; only the
// operations exposed here (evaluate, split, transform) are available to
// node computations.
package geom

import (
	"fmt"
	"hash"
	"math"
)

// Point is a position in 2D document space.
type Point struct {
	X float64
	Y float64
}

// Lerp returns the linear interpolation between p and q at parameter t.
func (p Point) Lerp(q Point, t float64) Point {
	return Point{
		X: p.X + (q.X-p.X)*t,
		Y: p.Y + (q.Y-p.Y)*t,
	}
}

// Affine is a 2D affine transform in column-major form:
//
//	| A C Tx |
//	| B D Ty |
type Affine struct {
	A, B, C, D, Tx, Ty float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{A: 1, D: 1}
}

// Translate returns a pure translation transform.
func Translate(tx, ty float64) Affine {
	return Affine{A: 1, D: 1, Tx: tx, Ty: ty}
}

// Scale returns a pure scale transform about the origin.
func Scale(sx, sy float64) Affine {
	return Affine{A: sx, D: sy}
}

// Rotate returns a rotation about the origin by the given angle in radians.
func Rotate(radians float64) Affine {
	sin, cos := math.Sincos(radians)
	return Affine{A: cos, B: sin, C: -sin, D: cos}
}

// Apply maps the point through the transform.
func (m Affine) Apply(p Point) Point {
	return Point{
		X: m.A*p.X + m.C*p.Y + m.Tx,
		Y: m.B*p.X + m.D*p.Y + m.Ty,
	}
}

// Segment is a single cubic Bezier span: start anchor, two control
// handles, end anchor.
type Segment struct {
	From Point
	C1   Point
	C2   Point
	To   Point
}

// Evaluate returns the point on the segment at parameter t in [0, 1],
// using de Casteljau subdivision.
func (s Segment) Evaluate(t float64) Point {
	ab := s.From.Lerp(s.C1, t)
	bc := s.C1.Lerp(s.C2, t)
	cd := s.C2.Lerp(s.To, t)
	abbc := ab.Lerp(bc, t)
	bccd := bc.Lerp(cd, t)
	return abbc.Lerp(bccd, t)
}

// Split divides the segment at parameter t into two segments that
// together trace the same curve.
func (s Segment) Split(t float64) (Segment, Segment) {
	ab := s.From.Lerp(s.C1, t)
	bc := s.C1.Lerp(s.C2, t)
	cd := s.C2.Lerp(s.To, t)
	abbc := ab.Lerp(bc, t)
	bccd := bc.Lerp(cd, t)
	mid := abbc.Lerp(bccd, t)

	first := Segment{From: s.From, C1: ab, C2: abbc, To: mid}
	second := Segment{From: mid, C1: bccd, C2: cd, To: s.To}
	return first, second
}

// transform maps all four control points through m.
func (s Segment) transform(m Affine) Segment {
	return Segment{
		From: m.Apply(s.From),
		C1:   m.Apply(s.C1),
		C2:   m.Apply(s.C2),
		To:   m.Apply(s.To),
	}
}

// Path is an open sequence of cubic Bezier segments. Paths are immutable:
// every operation returns a new Path and never mutates the receiver, so a
// Path value can be shared freely between cache entries and computations.
type Path struct {
	segments []Segment
}

// NewPath builds a path from the given segments. The segment slice is
// copied so later mutation by the caller cannot leak into the path.
func NewPath(segments ...Segment) *Path {
	out := make([]Segment, len(segments))
	copy(out, segments)
	return &Path{segments: out}
}

// Line returns a single-segment path tracing a straight line.
func Line(from, to Point) *Path {
	return NewPath(Segment{
		From: from,
		C1:   from.Lerp(to, 1.0/3.0),
		C2:   from.Lerp(to, 2.0/3.0),
		To:   to,
	})
}

// NumSegments reports how many cubic segments the path contains.
func (p *Path) NumSegments() int {
	return len(p.segments)
}

// Segments returns a copy of the path's segment list.
func (p *Path) Segments() []Segment {
	out := make([]Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

// Evaluate returns the point at global parameter t in [0, 1], where t
// spans the whole path with each segment owning an equal share of the
// parameter range.
func (p *Path) Evaluate(t float64) (Point, error) {
	if len(p.segments) == 0 {
		return Point{}, fmt.Errorf("cannot evaluate an empty path")
	}
	if t < 0 || t > 1 {
		return Point{}, fmt.Errorf("parameter %v out of range [0, 1]", t)
	}

	scaled := t * float64(len(p.segments))
	index := int(scaled)
	if index == len(p.segments) {
		index--
	}
	return p.segments[index].Evaluate(scaled - float64(index)), nil
}

// Split divides the path at global parameter t into two paths. A split
// at an interior segment boundary moves whole segments; otherwise the
// segment containing t is subdivided.
func (p *Path) Split(t float64) (*Path, *Path, error) {
	if len(p.segments) == 0 {
		return nil, nil, fmt.Errorf("cannot split an empty path")
	}
	if t < 0 || t > 1 {
		return nil, nil, fmt.Errorf("parameter %v out of range [0, 1]", t)
	}

	scaled := t * float64(len(p.segments))
	index := int(scaled)
	local := scaled - float64(index)

	if index == len(p.segments) {
		index--
		local = 1
	}

	first := make([]Segment, 0, index+1)
	second := make([]Segment, 0, len(p.segments)-index)

	first = append(first, p.segments[:index]...)
	switch local {
	case 0:
		second = append(second, p.segments[index:]...)
	case 1:
		first = append(first, p.segments[index])
		second = append(second, p.segments[index+1:]...)
	default:
		a, b := p.segments[index].Split(local)
		first = append(first, a)
		second = append(second, b)
		second = append(second, p.segments[index+1:]...)
	}

	return &Path{segments: first}, &Path{segments: second}, nil
}

// Transform returns a new path with every control point mapped through m.
func (p *Path) Transform(m Affine) *Path {
	out := make([]Segment, len(p.segments))
	for i, s := range p.segments {
		out[i] = s.transform(m)
	}
	return &Path{segments: out}
}

// Bounds returns the axis-aligned bounding box of the path's control
// polygon. The true curve is always contained within it.
func (p *Path) Bounds() (min, max Point, err error) {
	if len(p.segments) == 0 {
		return Point{}, Point{}, fmt.Errorf("empty path has no bounds")
	}

	min = Point{X: math.Inf(1), Y: math.Inf(1)}
	max = Point{X: math.Inf(-1), Y: math.Inf(-1)}
	extend := func(pt Point) {
		min.X = math.Min(min.X, pt.X)
		min.Y = math.Min(min.Y, pt.Y)
		max.X = math.Max(max.X, pt.X)
		max.Y = math.Max(max.Y, pt.Y)
	}
	for _, s := range p.segments {
		extend(s.From)
		extend(s.C1)
		extend(s.C2)
		extend(s.To)
	}
	return min, max, nil
}

// Equal reports bit-exact equality of the two paths' control points.
func (p *Path) Equal(other *Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// Fingerprint writes a canonical bit-exact encoding of the path into h.
// Float coordinates are hashed via their IEEE-754 bit patterns, so two
// paths fingerprint equal exactly when Equal reports true.
func (p *Path) Fingerprint(h hash.Hash) {
	var buf [8]byte
	writeFloat := func(f float64) {
		bits := math.Float64bits(f)
		for i := 0; i < 8; i++ {
			buf[i] = byte(bits >> (8 * i))
		}
		h.Write(buf[:])
	}
	for _, s := range p.segments {
		for _, pt := range []Point{s.From, s.C1, s.C2, s.To} {
			writeFloat(pt.X)
			writeFloat(pt.Y)
		}
	}
}

// EstimatedSize reports the approximate in-memory size of the path in
// bytes, used by the cache for capacity accounting.
func (p *Path) EstimatedSize() int {
	return len(p.segments) * 64
}
