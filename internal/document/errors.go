package document

import "fmt"

// Structural is the marker interface for all document-integrity errors.
// Structural errors are raised at edit or compile time, before any node
// computation runs, and always leave prior valid state untouched.
type Structural interface {
	error
	isStructural()
}

// UnknownKindError reports a node kind missing from the registry.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown node kind '%s'", e.Kind)
}

func (e *UnknownKindError) isStructural() {}

// TypeMismatchError reports an edge or literal binding whose type is
// neither identical nor coercible to the slot's declared type.
type TypeMismatchError struct {
	Node     ID
	Slot     string
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch on node %s slot '%s': expected %s, got %s",
		e.Node, e.Slot, e.Expected, e.Actual)
}

func (e *TypeMismatchError) isStructural() {}

// DanglingReferenceError reports a slot bound to a source that no longer
// exists (or an unbound required slot). A dangling reference is a
// structural error, never silently treated as a default.
type DanglingReferenceError struct {
	Node ID
	Slot string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("dangling reference on node %s slot '%s'", e.Node, e.Slot)
}

func (e *DanglingReferenceError) isStructural() {}

// CycleError reports a dependency cycle reachable from the requested
// output.
type CycleError struct {
	Node ID
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected involving node %s", e.Node)
}

func (e *CycleError) isStructural() {}

// OutputNotFoundError reports a requested output node missing from the
// document.
type OutputNotFoundError struct {
	Node ID
}

func (e *OutputNotFoundError) Error() string {
	return fmt.Sprintf("requested output node %s not found", e.Node)
}

func (e *OutputNotFoundError) isStructural() {}

// NodeNotFoundError reports an edit operation addressing a node that is
// not in the document.
type NodeNotFoundError struct {
	Node ID
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %s not found", e.Node)
}

func (e *NodeNotFoundError) isStructural() {}

// UnknownSlotError reports an edit addressing an input slot the node's
// kind does not declare.
type UnknownSlotError struct {
	Node ID
	Slot string
}

func (e *UnknownSlotError) Error() string {
	return fmt.Sprintf("node %s has no input slot '%s'", e.Node, e.Slot)
}

func (e *UnknownSlotError) isStructural() {}
