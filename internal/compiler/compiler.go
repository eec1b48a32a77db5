// Package compiler turns a document snapshot into an immutable proto
// graph: backward reachability from the requested output (dead-node
// elimination), cycle detection, type resolution with registered
// coercions, constant folding of literal-only subgraphs, and a
// deterministic topological ordering.
//
// Compile is deterministic: the same snapshot and requested output
// always produce the same ordering and the same folded literals, with
// or without a fold cache. Failure never publishes a partial artifact:
// the caller receives either a complete proto graph or a structural
// error.
package compiler

import (
	"context"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/ctxlog"
	"github.com/vk/nodeflow/internal/document"
	"github.com/vk/nodeflow/internal/fingerprint"
	"github.com/vk/nodeflow/internal/proto"
	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// resolvedArg is a type-checked argument before ordinals are assigned.
type resolvedArg struct {
	name    string
	literal *cty.Value
	source  document.ID
	convert *value.Type
}

// FoldCache memoizes constant folding across compiles. Without it,
// every compile would re-evaluate the entire literal-rooted subgraph,
// defeating incremental recompute for fully foldable documents. A nil
// FoldCache disables memoization.
type FoldCache interface {
	Get(id document.ID, fp fingerprint.Digest, generation uint64) (cty.Value, bool)
	Put(id document.ID, fp fingerprint.Digest, v cty.Value, generation uint64)
}

// Compile compiles one (snapshot, requested output) pair. The generation
// tags the resulting proto graph so the cache can lazily evict entries
// from earlier compiles.
func Compile(ctx context.Context, snap *document.Snapshot, reg *registry.Registry, output document.ID, generation uint64, fc FoldCache) (*proto.Graph, error) {
	logger := ctxlog.FromContext(ctx)

	if _, ok := snap.Node(output); !ok {
		return nil, &document.OutputNotFoundError{Node: output}
	}

	// A dirty document (any dangling reference, anywhere) never compiles,
	// even when the dangling slot is not reachable from the output.
	for _, id := range snap.Order() {
		n, _ := snap.Node(id)
		for _, in := range n.Inputs() {
			if in.Dangling {
				return nil, &document.DanglingReferenceError{Node: id, Slot: in.Name}
			}
		}
	}

	reachable, err := reachableFrom(snap, output)
	if err != nil {
		return nil, err
	}
	logger.Debug("Reachability computed.", "reachable", len(reachable), "total", snap.Len())

	order, err := topoOrder(snap, reachable)
	if err != nil {
		return nil, err
	}

	resolved := make(map[document.ID][]resolvedArg, len(order))
	descs := make(map[document.ID]*registry.Descriptor, len(order))
	for _, id := range order {
		desc, args, err := resolveNode(snap, reg, id)
		if err != nil {
			return nil, err
		}
		descs[id] = desc
		resolved[id] = args
	}
	logger.Debug("Type resolution complete.", "nodes", len(order))

	folded := foldConstants(ctx, reg, fc, generation, order, descs, resolved)
	if len(folded) > 0 {
		logger.Debug("Constant folding complete.", "folded", len(folded))
	}

	nodes, outputOrdinal := assemble(snap, reg, output, order, descs, resolved, folded)

	g, err := proto.NewGraph(nodes, outputOrdinal, generation)
	if err != nil {
		return nil, err
	}
	logger.Debug("Compile succeeded.", "proto_nodes", g.Len(), "generation", generation)
	return g, nil
}

// reachableFrom walks input bindings backward from the output, returning
// the set of transitively required nodes. The walk is iterative with an
// explicit visiting set, so a cyclic document fails with CycleError
// instead of hanging or overflowing the stack.
func reachableFrom(snap *document.Snapshot, output document.ID) (map[document.ID]struct{}, error) {
	const (
		white = iota // unvisited
		gray         // on the current path
		black        // fully visited
	)
	state := make(map[document.ID]int)

	type frame struct {
		id   document.ID
		next int // index of the next dependency to visit
	}

	deps := func(id document.ID) []document.ID {
		n, _ := snap.Node(id)
		var out []document.ID
		for _, in := range n.Inputs() {
			if in.Binding.IsConnection() {
				out = append(out, in.Binding.Source)
			}
		}
		return out
	}

	stack := []frame{{id: output}}
	state[output] = gray
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		d := deps(top.id)
		if top.next < len(d) {
			next := d[top.next]
			top.next++
			switch state[next] {
			case gray:
				return nil, &document.CycleError{Node: next}
			case white:
				if _, ok := snap.Node(next); !ok {
					// Should have been caught as dangling; treat defensively.
					return nil, &document.DanglingReferenceError{Node: top.id}
				}
				state[next] = gray
				stack = append(stack, frame{id: next})
			}
			continue
		}
		state[top.id] = black
		stack = stack[:len(stack)-1]
	}

	reachable := make(map[document.ID]struct{}, len(state))
	for id, st := range state {
		if st == black {
			reachable[id] = struct{}{}
		}
	}
	return reachable, nil
}

// topoOrder orders the reachable set dependency-first. Ties among
// independent nodes are broken by document insertion sequence, so an
// unchanged graph compiles to an identical ordering every time.
func topoOrder(snap *document.Snapshot, reachable map[document.ID]struct{}) ([]document.ID, error) {
	pending := make(map[document.ID]int, len(reachable))
	dependents := make(map[document.ID][]document.ID, len(reachable))

	for id := range reachable {
		n, _ := snap.Node(id)
		count := 0
		for _, in := range n.Inputs() {
			if !in.Binding.IsConnection() {
				continue
			}
			src := in.Binding.Source
			if _, ok := reachable[src]; ok {
				count++
				dependents[src] = append(dependents[src], id)
			}
		}
		pending[id] = count
	}

	seq := func(id document.ID) uint64 {
		n, _ := snap.Node(id)
		return n.Seq()
	}

	var ready []document.ID
	for id, count := range pending {
		if count == 0 {
			ready = append(ready, id)
		}
	}

	out := make([]document.ID, 0, len(reachable))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return seq(ready[i]) > seq(ready[j]) })
		id := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		out = append(out, id)

		for _, dep := range dependents[id] {
			pending[dep]--
			if pending[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(out) != len(reachable) {
		// Unreachable given the cycle check above, but never publish a
		// partial ordering.
		for id, count := range pending {
			if count > 0 {
				return nil, &document.CycleError{Node: id}
			}
		}
	}
	return out, nil
}

// resolveNode type-checks one node's bindings against its kind's
// declared signature, producing resolved arguments in slot order.
// Literal bindings are converted to the declared slot type here, at
// compile time; connection bindings record the coercion for the
// executor to apply per value.
func resolveNode(snap *document.Snapshot, reg *registry.Registry, id document.ID) (*registry.Descriptor, []resolvedArg, error) {
	n, _ := snap.Node(id)
	desc, ok := reg.Lookup(n.Kind())
	if !ok {
		return nil, nil, &document.UnknownKindError{Kind: n.Kind()}
	}

	args := make([]resolvedArg, 0, len(desc.Inputs))
	for _, sig := range desc.Inputs {
		slot, ok := n.Input(sig.Name)
		if !ok || !slot.Binding.IsBound() {
			return nil, nil, &document.DanglingReferenceError{Node: id, Slot: sig.Name}
		}

		switch {
		case slot.Binding.IsLiteral():
			converted, err := reg.Convert(*slot.Binding.Literal, sig.Type)
			if err != nil {
				actual := "null"
				if !slot.Binding.Literal.IsNull() {
					actual = value.Type{Base: slot.Binding.Literal.Type()}.String()
				}
				return nil, nil, &document.TypeMismatchError{
					Node: id, Slot: sig.Name,
					Expected: sig.Type.String(), Actual: actual,
				}
			}
			args = append(args, resolvedArg{name: sig.Name, literal: &converted})
		default:
			src, ok := snap.Node(slot.Binding.Source)
			if !ok {
				return nil, nil, &document.DanglingReferenceError{Node: id, Slot: sig.Name}
			}
			srcDesc, ok := reg.Lookup(src.Kind())
			if !ok {
				return nil, nil, &document.UnknownKindError{Kind: src.Kind()}
			}
			if !reg.CanConvert(srcDesc.Output, sig.Type) {
				return nil, nil, &document.TypeMismatchError{
					Node: id, Slot: sig.Name,
					Expected: sig.Type.String(), Actual: srcDesc.Output.String(),
				}
			}
			arg := resolvedArg{name: sig.Name, source: slot.Binding.Source}
			if !srcDesc.Output.Equal(sig.Type) {
				conv := sig.Type
				arg.convert = &conv
			}
			args = append(args, arg)
		}
	}
	return desc, args, nil
}

// foldConstants evaluates, at compile time, every non-volatile node all
// of whose arguments resolve (transitively) to literals. Folding is
// memoized through the FoldCache keyed by each node's input fingerprint,
// so a recompile after a leaf edit re-evaluates only the edited node and
// its dependents. A computation that fails during folding is left
// unfolded so the failure surfaces at evaluation time with the node's
// identity, keeping compile errors purely structural.
func foldConstants(ctx context.Context, reg *registry.Registry, fc FoldCache, generation uint64, order []document.ID, descs map[document.ID]*registry.Descriptor, resolved map[document.ID][]resolvedArg) map[document.ID]cty.Value {
	logger := ctxlog.FromContext(ctx)
	folded := make(map[document.ID]cty.Value)
	digests := make(map[document.ID]fingerprint.Digest)

	for _, id := range order {
		desc := descs[id]
		if desc.Volatile {
			continue
		}

		args := resolved[id]
		concrete := make([]cty.Value, len(args))
		b := fingerprint.New()
		b.WriteString(desc.Kind)
		foldable := true
		for i, a := range args {
			b.WriteString(a.name)
			switch {
			case a.literal != nil:
				concrete[i] = *a.literal
				b.WriteValue(*a.literal)
			default:
				v, ok := folded[a.source]
				if !ok {
					foldable = false
					break
				}
				b.WriteDigest(digests[a.source])
				if a.convert != nil {
					converted, err := reg.Convert(v, *a.convert)
					if err != nil {
						foldable = false
						break
					}
					v = converted
				}
				concrete[i] = v
			}
			if !foldable {
				break
			}
		}
		if !foldable {
			continue
		}
		fp := b.Sum()
		digests[id] = fp

		if fc != nil {
			if v, ok := fc.Get(id, fp, generation); ok {
				folded[id] = v
				continue
			}
		}

		out, err := desc.Build()(ctx, concrete)
		if err != nil {
			logger.Debug("Fold attempt failed, deferring to evaluation.", "id", string(id), "kind", desc.Kind, "error", err)
			continue
		}
		folded[id] = out
		if fc != nil {
			fc.Put(id, fp, out, generation)
		}
	}
	return folded
}

// assemble emits proto-nodes for every node still required at runtime.
// Folded nodes are inlined as literals into their consumers; a folded
// node survives as its own proto-node only when it is the requested
// output, in which case the whole graph collapses to one literal entry.
func assemble(snap *document.Snapshot, reg *registry.Registry, output document.ID, order []document.ID, descs map[document.ID]*registry.Descriptor, resolved map[document.ID][]resolvedArg, folded map[document.ID]cty.Value) ([]proto.Node, int) {
	if v, ok := folded[output]; ok {
		desc := descs[output]
		return []proto.Node{{
			Ordinal:    0,
			DocumentID: output,
			Kind:       desc.Kind,
			Output:     desc.Output,
			Value:      &v,
		}}, 0
	}

	// Re-run reachability from the output, treating folded sources as
	// terminals: subgraphs that only fed folded values disappear.
	needed := make(map[document.ID]struct{})
	stack := []document.ID{output}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, dup := needed[id]; dup {
			continue
		}
		needed[id] = struct{}{}
		for _, a := range resolved[id] {
			if a.literal != nil {
				continue
			}
			if _, isFolded := folded[a.source]; isFolded {
				continue
			}
			stack = append(stack, a.source)
		}
	}

	ordinals := make(map[document.ID]int, len(needed))
	var nodes []proto.Node
	for _, id := range order {
		if _, ok := needed[id]; !ok {
			continue
		}
		desc := descs[id]
		ordinal := len(nodes)
		ordinals[id] = ordinal

		args := make([]proto.Arg, 0, len(resolved[id]))
		for _, a := range resolved[id] {
			switch {
			case a.literal != nil:
				args = append(args, proto.LiteralArg(a.name, *a.literal))
			default:
				if v, isFolded := folded[a.source]; isFolded {
					if a.convert != nil {
						// CanConvert held at resolution; a dynamic failure
						// here falls back to a runtime coercion.
						if converted, err := reg.Convert(v, *a.convert); err == nil {
							v = converted
						}
					}
					args = append(args, proto.LiteralArg(a.name, v))
					continue
				}
				args = append(args, proto.RefArg(a.name, ordinals[a.source], a.convert))
			}
		}

		nodes = append(nodes, proto.Node{
			Ordinal:    ordinal,
			DocumentID: id,
			Kind:       desc.Kind,
			Output:     desc.Output,
			Volatile:   desc.Volatile,
			Args:       args,
		})
	}

	return nodes, ordinals[output]
}
