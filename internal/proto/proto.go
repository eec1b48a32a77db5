// Package proto defines the compiled, immutable artifact produced by the
// compiler: a flattened, ordinal-ordered list of proto-nodes with fully
// resolved types and argument sources. One proto graph corresponds to
// exactly one (document snapshot, requested output) pair.
package proto

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/document"
	"github.com/vk/nodeflow/internal/value"
)

// Arg is one resolved argument of a proto-node: either an inlined
// literal or a back-reference (by ordinal) to an earlier proto-node's
// output. Convert, when non-nil, names the declared slot type a
// back-referenced value must be coerced to before the computation runs.
type Arg struct {
	Name    string
	Literal *cty.Value
	Ref     int
	Convert *value.Type
}

// LiteralArg builds an inlined literal argument.
func LiteralArg(name string, v cty.Value) Arg {
	return Arg{Name: name, Literal: &v, Ref: -1}
}

// RefArg builds a back-reference argument.
func RefArg(name string, ordinal int, conv *value.Type) Arg {
	return Arg{Name: name, Ref: ordinal, Convert: conv}
}

// IsLiteral reports whether the argument is an inlined literal.
func (a Arg) IsLiteral() bool { return a.Literal != nil }

// Node is a single proto-node: position in the topological order,
// originating document identity, resolved kind and output type, and
// resolved arguments.
type Node struct {
	Ordinal    int
	DocumentID document.ID
	Kind       string
	Output     value.Type
	Volatile   bool
	Args       []Arg
	// Value, when non-nil, marks a constant-folded node: the value was
	// computed once at compile time and the executor never invokes the
	// kind's computation for it.
	Value *cty.Value
}

// IsConstant reports whether the node was constant-folded at compile
// time.
func (n Node) IsConstant() bool { return n.Value != nil }

// Graph is the compiled executable form. It is immutable once built:
// every accessor returns copies or values, never internal slices.
type Graph struct {
	nodes      []Node
	output     int
	generation uint64
	dependents [][]int
	ordinals   map[document.ID]int
}

// NewGraph assembles and validates a proto graph. Every back-reference
// must point strictly backward in the ordering and the output ordinal
// must be in range; violations indicate a compiler bug and are returned
// as errors rather than panics so callers can refuse to publish the
// artifact.
func NewGraph(nodes []Node, output int, generation uint64) (*Graph, error) {
	if output < 0 || output >= len(nodes) {
		return nil, fmt.Errorf("output ordinal %d out of range [0, %d)", output, len(nodes))
	}

	dependents := make([][]int, len(nodes))
	ordinals := make(map[document.ID]int, len(nodes))
	for i, n := range nodes {
		if n.Ordinal != i {
			return nil, fmt.Errorf("proto-node at position %d carries ordinal %d", i, n.Ordinal)
		}
		if _, dup := ordinals[n.DocumentID]; dup {
			return nil, fmt.Errorf("document node %s appears twice in proto graph", n.DocumentID)
		}
		ordinals[n.DocumentID] = i

		for _, a := range n.Args {
			if a.IsLiteral() {
				continue
			}
			if a.Ref < 0 || a.Ref >= i {
				return nil, fmt.Errorf("proto-node %d argument '%s' references ordinal %d, not strictly backward", i, a.Name, a.Ref)
			}
			dependents[a.Ref] = append(dependents[a.Ref], i)
		}
	}

	return &Graph{
		nodes:      nodes,
		output:     output,
		generation: generation,
		dependents: dependents,
		ordinals:   ordinals,
	}, nil
}

// Len reports the number of proto-nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the proto-node at the given ordinal.
func (g *Graph) Node(ordinal int) Node { return g.nodes[ordinal] }

// Output returns the ordinal of the requested output.
func (g *Graph) Output() int { return g.output }

// OutputNode returns the proto-node for the requested output.
func (g *Graph) OutputNode() Node { return g.nodes[g.output] }

// Generation identifies the compile that produced this graph. The cache
// uses it to lazily evict entries for nodes that no longer exist.
func (g *Graph) Generation() uint64 { return g.generation }

// OrdinalOf maps a document identity to its proto ordinal. Ordinals are
// unstable across recompiles; document identities are the stable key.
func (g *Graph) OrdinalOf(id document.ID) (int, bool) {
	ord, ok := g.ordinals[id]
	return ord, ok
}

// Dependents returns the ordinals that consume the given ordinal's
// output directly.
func (g *Graph) Dependents(ordinal int) []int {
	out := make([]int, len(g.dependents[ordinal]))
	copy(out, g.dependents[ordinal])
	return out
}

// ForwardReach returns the document identities of every node reachable
// forward from the given identity, including itself. Used for
// transitive cache invalidation.
func (g *Graph) ForwardReach(id document.ID) []document.ID {
	start, ok := g.ordinals[id]
	if !ok {
		return nil
	}

	seen := make(map[int]struct{})
	stack := []int{start}
	for len(stack) > 0 {
		ord := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, dup := seen[ord]; dup {
			continue
		}
		seen[ord] = struct{}{}
		stack = append(stack, g.dependents[ord]...)
	}

	out := make([]document.ID, 0, len(seen))
	// Walk in ordinal order for deterministic output.
	for ord := start; ord < len(g.nodes); ord++ {
		if _, ok := seen[ord]; ok {
			out = append(out, g.nodes[ord].DocumentID)
		}
	}
	return out
}
