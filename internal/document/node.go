package document

import (
	"github.com/rs/xid"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/value"
)

// ID is a stable node identity. It is assigned when the node is added,
// persists across edits, is the cache key unit, and is never reused
// after the node is deleted.
type ID string

// NewID mints a fresh globally-unique node identity.
func NewID() ID {
	return ID(xid.New().String())
}

// DefaultOutput is the name of a node's single output.
const DefaultOutput = "out"

// Metadata is free-form editor state attached to a node. It is carried
// by the document but irrelevant to execution: metadata edits never
// dirty compilation and never change fingerprints.
type Metadata struct {
	X     float64
	Y     float64
	Label string
}

// Binding is the state of one input slot. Exactly one of the following
// holds:
//   - Literal is non-nil: the slot carries a literal value.
//   - Source is non-empty: the slot is connected to another node's output.
//   - neither: the slot is unbound (a structural error at compile time).
type Binding struct {
	Literal *cty.Value
	Source  ID
	Output  string
}

// LiteralBinding binds a slot to a literal value.
func LiteralBinding(v cty.Value) Binding {
	return Binding{Literal: &v}
}

// ConnectionBinding binds a slot to another node's output.
func ConnectionBinding(source ID, output string) Binding {
	return Binding{Source: source, Output: output}
}

// IsLiteral reports whether the binding carries a literal.
func (b Binding) IsLiteral() bool { return b.Literal != nil }

// IsConnection reports whether the binding references another node.
func (b Binding) IsConnection() bool { return b.Source != "" }

// IsBound reports whether the slot is bound at all.
func (b Binding) IsBound() bool { return b.IsLiteral() || b.IsConnection() }

// InputSlot is one input of a document node: its declared signature
// plus its current binding. Dangling marks a connection whose source
// node has been removed; it must be rebound before the next compile.
type InputSlot struct {
	Name     string
	Type     value.Type
	Binding  Binding
	Dangling bool
}

// Node is a single node in the document graph.
type Node struct {
	id   ID
	kind string
	// seq is the document insertion sequence, used as the deterministic
	// tie-break for topological ordering of independent nodes.
	seq    uint64
	inputs []InputSlot
	meta   Metadata
}

// ID returns the node's stable identity.
func (n *Node) ID() ID { return n.id }

// Kind returns the node's registered kind identifier.
func (n *Node) Kind() string { return n.kind }

// Seq returns the node's document insertion sequence number.
func (n *Node) Seq() uint64 { return n.seq }

// Metadata returns the node's editor metadata.
func (n *Node) Metadata() Metadata { return n.meta }

// Inputs returns a copy of the node's input slots.
func (n *Node) Inputs() []InputSlot {
	out := make([]InputSlot, len(n.inputs))
	copy(out, n.inputs)
	return out
}

// Input returns the named input slot.
func (n *Node) Input(name string) (InputSlot, bool) {
	for _, in := range n.inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputSlot{}, false
}

// clone deep-copies the node for snapshotting. cty values are immutable
// so bindings can share them.
func (n *Node) clone() *Node {
	out := &Node{id: n.id, kind: n.kind, seq: n.seq, meta: n.meta}
	out.inputs = make([]InputSlot, len(n.inputs))
	copy(out.inputs, n.inputs)
	return out
}
