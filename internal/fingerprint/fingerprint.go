// Package fingerprint derives deterministic digests of node input values
// for use as cache keys. Digests are content-based, never time-based:
// the same effective inputs always produce the same digest across
// recompiles and process restarts.
//
// Floating-point values are hashed bit-exactly (IEEE-754 bit patterns at
// float64 precision). Epsilon-aware hashing was considered and rejected:
// a tolerance bucket boundary would split values that compare equal, so
// near-equal floats are treated as distinct and simply recomputed.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"

	"github.com/zclconf/go-cty/cty"
)

// Digest is a fixed-size content digest.
type Digest [sha256.Size]byte

// String renders a short hex prefix of the digest for logs.
func (d Digest) String() string {
	return hex.EncodeToString(d[:8])
}

// Fingerprinter is implemented by encapsulated domain values (paths,
// image buffers) that know how to write their own canonical encoding.
type Fingerprinter interface {
	Fingerprint(h hash.Hash)
}

// value encoding tags; each value is prefixed with one so that, for
// example, an empty string and an empty list cannot collide.
const (
	tagNull byte = iota
	tagBool
	tagNumber
	tagString
	tagSequence
	tagMapping
	tagCapsule
	tagDigest
)

// Builder accumulates the components of a node's input fingerprint:
// the node kind, literal argument values, and upstream digests.
type Builder struct {
	h hash.Hash
}

// New returns an empty fingerprint builder.
func New() *Builder {
	return &Builder{h: sha256.New()}
}

// WriteString mixes a label (node kind, argument name) into the digest.
func (b *Builder) WriteString(s string) {
	b.writeLen(tagString, len(s))
	b.h.Write([]byte(s))
}

// WriteDigest mixes an upstream dependency's digest into the digest.
func (b *Builder) WriteDigest(d Digest) {
	b.h.Write([]byte{tagDigest})
	b.h.Write(d[:])
}

// WriteValue mixes a canonical encoding of a cty value into the digest.
func (b *Builder) WriteValue(v cty.Value) {
	b.writeValue(v)
}

// Sum finalizes the builder and returns the digest.
func (b *Builder) Sum() Digest {
	var d Digest
	copy(d[:], b.h.Sum(nil))
	return d
}

// OfValue returns the digest of a single value.
func OfValue(v cty.Value) Digest {
	b := New()
	b.WriteValue(v)
	return b.Sum()
}

func (b *Builder) writeLen(tag byte, n int) {
	var buf [9]byte
	buf[0] = tag
	binary.LittleEndian.PutUint64(buf[1:], uint64(n))
	b.h.Write(buf[:])
}

func (b *Builder) writeFloat(f float64) {
	var buf [9]byte
	buf[0] = tagNumber
	binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(f))
	b.h.Write(buf[:])
}

func (b *Builder) writeValue(v cty.Value) {
	if v.IsNull() {
		b.h.Write([]byte{tagNull})
		b.WriteString(v.Type().FriendlyName())
		return
	}

	ty := v.Type()
	switch {
	case ty.IsCapsuleType():
		b.h.Write([]byte{tagCapsule})
		b.WriteString(ty.FriendlyName())
		ev := v.EncapsulatedValue()
		if fp, ok := ev.(Fingerprinter); ok {
			fp.Fingerprint(b.h)
		} else {
			// Unknown capsule kinds fall back to their Go representation.
			b.WriteString(fmt.Sprintf("%#v", ev))
		}
	case ty.Equals(cty.Bool):
		if v.True() {
			b.h.Write([]byte{tagBool, 1})
		} else {
			b.h.Write([]byte{tagBool, 0})
		}
	case ty.Equals(cty.Number):
		f, _ := v.AsBigFloat().Float64()
		b.writeFloat(f)
	case ty.Equals(cty.String):
		b.WriteString(v.AsString())
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		b.writeLen(tagSequence, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			b.writeValue(ev)
		}
	case ty.IsObjectType() || ty.IsMapType():
		// cty iterates object attributes and map keys in sorted order,
		// which keeps the encoding canonical.
		b.writeLen(tagMapping, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			kv, ev := it.Element()
			b.writeValue(kv)
			b.writeValue(ev)
		}
	default:
		b.WriteString(ty.GoString())
		b.WriteString(v.GoString())
	}
}
