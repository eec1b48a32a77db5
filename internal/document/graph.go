// Package document implements the mutable, user-facing node graph: an
// arena of nodes addressed by stable identity, each input slot bound to
// a literal or to another node's output. The document is edited between
// evaluations; compilation always operates on an immutable Snapshot.
package document

import (
	"context"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/ctxlog"
	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// Graph is the editable document graph. It is not synchronized: the
// host serializes edits against snapshotting (an edit phase strictly
// precedes a compile+evaluate phase).
type Graph struct {
	reg     *registry.Registry
	nodes   map[ID]*Node
	nextSeq uint64
}

// NewGraph creates an empty document bound to a sealed registry.
func NewGraph(reg *registry.Registry) *Graph {
	return &Graph{
		reg:   reg,
		nodes: make(map[ID]*Node),
	}
}

// Len reports the number of nodes in the document.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// AddNode creates a node of the given kind and returns its identity.
// Input slots are initialized from the kind's declared defaults; slots
// without a default start unbound. Fails with UnknownKindError for
// kinds missing from the registry.
func (g *Graph) AddNode(ctx context.Context, kind string, meta Metadata) (ID, error) {
	desc, ok := g.reg.Lookup(kind)
	if !ok {
		return "", &UnknownKindError{Kind: kind}
	}

	id := NewID()
	n := &Node{id: id, kind: kind, seq: g.nextSeq, meta: meta}
	g.nextSeq++
	n.inputs = slotsFromSignature(desc)
	g.nodes[id] = n

	ctxlog.FromContext(ctx).Debug("Node added.", "id", string(id), "kind", kind)
	return id, nil
}

// slotsFromSignature builds the initial slot list for a descriptor.
func slotsFromSignature(desc *registry.Descriptor) []InputSlot {
	inputs := make([]InputSlot, len(desc.Inputs))
	for i, sig := range desc.Inputs {
		slot := InputSlot{Name: sig.Name, Type: sig.Type}
		if sig.Default != nil {
			slot.Binding = LiteralBinding(*sig.Default)
		}
		inputs[i] = slot
	}
	return inputs
}

// RemoveNode deletes a node. Any downstream slot bound to its outputs
// becomes dangling and must be rebound before the next compile; the
// identity is never reused.
func (g *Graph) RemoveNode(ctx context.Context, id ID) error {
	if _, ok := g.nodes[id]; !ok {
		return &NodeNotFoundError{Node: id}
	}
	delete(g.nodes, id)

	dangling := 0
	for _, n := range g.nodes {
		for i := range n.inputs {
			if n.inputs[i].Binding.Source == id {
				n.inputs[i].Dangling = true
				dangling++
			}
		}
	}
	ctxlog.FromContext(ctx).Debug("Node removed.", "id", string(id), "dangling_slots", dangling)
	return nil
}

// SetInput rebinds one input slot. The binding is validated against the
// slot's declared type using registry-declared coercions before any
// mutation: an incompatible binding fails with TypeMismatchError and
// the graph is left unchanged.
func (g *Graph) SetInput(ctx context.Context, id ID, slot string, b Binding) error {
	n, ok := g.nodes[id]
	if !ok {
		return &NodeNotFoundError{Node: id}
	}
	idx := -1
	for i := range n.inputs {
		if n.inputs[i].Name == slot {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &UnknownSlotError{Node: id, Slot: slot}
	}
	declared := n.inputs[idx].Type

	switch {
	case b.IsLiteral():
		lit := *b.Literal
		if lit.IsNull() {
			if !declared.Optional {
				return &TypeMismatchError{Node: id, Slot: slot, Expected: declared.String(), Actual: "null"}
			}
		} else if !g.reg.CanConvert(value.Type{Base: lit.Type()}, declared) {
			return &TypeMismatchError{
				Node: id, Slot: slot,
				Expected: declared.String(),
				Actual:   value.Type{Base: lit.Type()}.String(),
			}
		}
	case b.IsConnection():
		src, ok := g.nodes[b.Source]
		if !ok {
			// Binding to a nonexistent source is rejected immediately, not
			// deferred to compile time.
			return &DanglingReferenceError{Node: id, Slot: slot}
		}
		if b.Output != DefaultOutput {
			return &DanglingReferenceError{Node: id, Slot: slot}
		}
		srcDesc, ok := g.reg.Lookup(src.kind)
		if !ok {
			return &UnknownKindError{Kind: src.kind}
		}
		if !g.reg.CanConvert(srcDesc.Output, declared) {
			return &TypeMismatchError{
				Node: id, Slot: slot,
				Expected: declared.String(),
				Actual:   srcDesc.Output.String(),
			}
		}
	default:
		return &DanglingReferenceError{Node: id, Slot: slot}
	}

	n.inputs[idx].Binding = b
	n.inputs[idx].Dangling = false
	ctxlog.FromContext(ctx).Debug("Input rebound.", "id", string(id), "slot", slot, "connection", b.IsConnection())
	return nil
}

// SetLiteral is a convenience wrapper binding a slot to a literal.
func (g *Graph) SetLiteral(ctx context.Context, id ID, slot string, v cty.Value) error {
	return g.SetInput(ctx, id, slot, LiteralBinding(v))
}

// Connect is a convenience wrapper binding a slot to a source node's
// default output.
func (g *Graph) Connect(ctx context.Context, id ID, slot string, source ID) error {
	return g.SetInput(ctx, id, slot, ConnectionBinding(source, DefaultOutput))
}

// ChangeKind swaps a node's kind, preserving bindings for slots whose
// name and declared type are unchanged. All other slots reset to the new
// kind's defaults. The node's cached output is invalidated downstream by
// its fingerprint, which includes the kind.
func (g *Graph) ChangeKind(ctx context.Context, id ID, kind string) error {
	n, ok := g.nodes[id]
	if !ok {
		return &NodeNotFoundError{Node: id}
	}
	desc, ok := g.reg.Lookup(kind)
	if !ok {
		return &UnknownKindError{Kind: kind}
	}

	fresh := slotsFromSignature(desc)
	for i := range fresh {
		if old, ok := n.Input(fresh[i].Name); ok && old.Type.Equal(fresh[i].Type) && old.Binding.IsBound() {
			fresh[i].Binding = old.Binding
			fresh[i].Dangling = old.Dangling
		}
	}

	n.kind = kind
	n.inputs = fresh
	ctxlog.FromContext(ctx).Debug("Node kind changed.", "id", string(id), "kind", kind)
	return nil
}

// SetMetadata replaces a node's editor metadata. Metadata is invisible
// to compilation and caching.
func (g *Graph) SetMetadata(id ID, meta Metadata) error {
	n, ok := g.nodes[id]
	if !ok {
		return &NodeNotFoundError{Node: id}
	}
	n.meta = meta
	return nil
}

// Get returns a read-only view of a node.
func (g *Graph) Get(id ID) (*Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.clone(), true
}

// SlotRef names one input slot of one node.
type SlotRef struct {
	Node ID
	Slot string
}

// DanglingSlots returns every slot whose connection source has been
// removed, in deterministic (insertion, slot) order. A non-empty result
// marks the document dirty: compilation fails fast rather than
// compiling a partial result.
func (g *Graph) DanglingSlots() []SlotRef {
	var out []SlotRef
	for _, n := range g.nodesBySeq() {
		for _, in := range n.inputs {
			if in.Dangling {
				out = append(out, SlotRef{Node: n.id, Slot: in.Name})
			}
		}
	}
	return out
}

// Dirty reports whether the document has dangling references.
func (g *Graph) Dirty() bool {
	for _, n := range g.nodes {
		for _, in := range n.inputs {
			if in.Dangling {
				return true
			}
		}
	}
	return false
}

// nodesBySeq returns the live nodes ordered by insertion sequence.
func (g *Graph) nodesBySeq() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Snapshot produces an immutable deep copy of the document for the
// compiler. Edits after the snapshot is taken do not affect it, so an
// in-flight evaluation can run on a stale snapshot while the user keeps
// editing.
func (g *Graph) Snapshot() *Snapshot {
	nodes := make(map[ID]*Node, len(g.nodes))
	order := make([]ID, 0, len(g.nodes))
	for _, n := range g.nodesBySeq() {
		nodes[n.id] = n.clone()
		order = append(order, n.id)
	}
	return &Snapshot{nodes: nodes, order: order}
}

// Snapshot is a frozen copy of the document graph. It is safe for
// concurrent use.
type Snapshot struct {
	nodes map[ID]*Node
	order []ID
}

// Node returns the snapshotted node with the given identity.
func (s *Snapshot) Node(id ID) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Order returns all node identities in insertion order.
func (s *Snapshot) Order() []ID {
	out := make([]ID, len(s.order))
	copy(out, s.order)
	return out
}

// Len reports the number of nodes in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.nodes)
}

// DanglingSlots mirrors Graph.DanglingSlots for the frozen copy, and
// additionally reports unbound slots, which are equally unresolvable at
// compile time.
func (s *Snapshot) DanglingSlots() []SlotRef {
	var out []SlotRef
	for _, id := range s.order {
		n := s.nodes[id]
		for _, in := range n.inputs {
			if in.Dangling || !in.Binding.IsBound() {
				out = append(out, SlotRef{Node: n.id, Slot: in.Name})
			}
		}
	}
	return out
}
