// Package vm implements a small LISP2-style mark-compact heap: a
// contiguous array of fixed-size cells, a bounded root stack, and a
// collector that slides live cells toward the low end of the heap.
package vm

// Ref is a heap reference, represented as an index into the heap's own
// cell array rather than as a raw address. Every Ref is implicitly
// relative to the current heap's base: when the collector relocates or
// resizes the heap, a Ref's numeric value does not need to be rebased,
// because it never encoded an absolute address in the first place. This
// is the representation the design notes call for a faithful
// reimplementation in a language without pointer arithmetic.
type Ref int32

// NilRef is the absent marker: no cell, no forwarding target.
const NilRef Ref = -1

// Tag discriminates the two object variants a cell may hold.
type Tag uint8

const (
	TagInteger Tag = iota
	TagPair
)

func (t Tag) String() string {
	switch t {
	case TagInteger:
		return "Integer"
	case TagPair:
		return "Pair"
	default:
		return "Unknown"
	}
}

// Cell is one fixed-size heap slot. Forward is the reserved forwarding
// slot: absent (NilRef) outside of a collection cycle, and written only
// by the collector during one. IntValue is meaningful for TagInteger;
// Head and Tail are meaningful for TagPair.
type Cell struct {
	Tag      Tag
	Forward  Ref
	IntValue int64
	Head     Ref
	Tail     Ref
}

func newCell(tag Tag) Cell {
	return Cell{Tag: tag, Forward: NilRef, Head: NilRef, Tail: NilRef}
}
