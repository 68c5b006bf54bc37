package vm

import (
	"errors"
	"math"
	"time"
)

// ErrOutOfMemory is returned when, even after a collection, the heap
// cannot fit one more cell. Only the fixed-heap variant can raise this;
// the reallocating variant always grows to fit unless the underlying
// allocator itself fails (ErrAllocationFailed).
var ErrOutOfMemory = errors.New("vm: out of memory")

// collect runs one complete LISP2 mark-compact cycle: mark from roots,
// plan forwarding addresses, optionally resize the heap, fix up every
// live reference, then slide live cells down. additionalCells is the
// headroom the triggering allocation needs on top of whatever survives.
//
// This is a stop-the-world transaction: no other Runtime method may run
// concurrently with it, and none does, because the whole package is
// single-threaded by construction (no goroutines touch heap or stack).
func (rt *Runtime) collect(additionalCells int) (CollectionStats, error) {
	heap, stack := rt.heap, rt.stack
	start := time.Now()

	mark(heap, stack)
	liveCells := planForwarding(heap)

	var oldCells []Cell
	oldUsed := heap.frontier

	if heap.variant == Reallocating {
		newCap := newCapacityCells(liveCells, additionalCells, rt.config)
		evicted, err := heap.Reallocate(newCap)
		if err != nil {
			return CollectionStats{}, err
		}
		oldCells = evicted
	} else {
		oldCells = heap.cells
	}

	updateReferences(oldCells, oldUsed, stack)
	slide(heap, oldCells, oldUsed, liveCells)

	stats := newCollectionStats(rt, liveCells)
	stats.Duration = time.Since(start)
	if rt.history != nil {
		if err := rt.history.Append(stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// mark performs phase 1. It visits every cell reachable from the root
// stack exactly once, using an explicit work list rather than recursion
// over Pair fields, so that deep or cyclic chains cannot exhaust the
// host call stack. A cell's forwarding slot doubles as its mark: absent
// means unreached, anything else means reached (its own address is used
// as the sentinel, per the specification).
func mark(heap *Heap, stack *RootStack) {
	worklist := make([]Ref, 0, stack.Len())
	worklist = append(worklist, stack.Iterate()...)

	for len(worklist) > 0 {
		r := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if r == NilRef {
			continue
		}
		c := heap.Cell(r)
		if c.Forward != NilRef {
			continue
		}
		c.Forward = r
		if c.Tag == TagPair {
			worklist = append(worklist, c.Head, c.Tail)
		}
	}
}

// planForwarding performs phase 2. It scans the used region of the heap
// once, overwriting each live cell's forwarding slot with its planned
// post-compaction address and returning the number of live cells.
func planForwarding(heap *Heap) int {
	to := 0
	for from := 0; from < heap.frontier; from++ {
		c := &heap.cells[from]
		if c.Forward == NilRef {
			continue
		}
		c.Forward = Ref(to)
		to++
	}
	return to
}

// newCapacityCells implements the reallocating variant's sizing policy
// (specification §4.4.2): grow to liveCells * HeapHeadroom plus the
// requested headroom, never below HeapMinCells.
func newCapacityCells(liveCells, additionalCells int, cfg RuntimeConfig) int {
	want := int(math.Round(float64(liveCells)*cfg.HeapHeadroom)) + additionalCells
	if want < cfg.HeapMinCells {
		want = cfg.HeapMinCells
	}
	if want < 1 {
		want = 1
	}
	return want
}

// updateReferences performs phase 4a. It walks every cell in the
// pre-slide array plus the root stack and rewrites each reference from
// its pre-collection address to its planned post-collection address, by
// looking up the referenced cell's own forwarding slot. This must run to
// completion before any cell is moved, because it depends on forwarding
// slots that the slide phase clears.
func updateReferences(oldCells []Cell, oldUsed int, stack *RootStack) {
	translate := func(r Ref) Ref {
		if r == NilRef {
			return NilRef
		}
		return oldCells[r].Forward
	}

	for from := 0; from < oldUsed; from++ {
		c := &oldCells[from]
		if c.Forward == NilRef {
			continue
		}
		if c.Tag == TagPair {
			c.Head = translate(c.Head)
			c.Tail = translate(c.Tail)
		}
	}

	for i := 0; i < stack.Len(); i++ {
		stack.Set(i, translate(stack.At(i)))
	}
}

// slide performs phase 4b. It copies every live cell from its pre-slide
// position into its planned destination, clearing the destination's
// forwarding slot back to absent, then fixes the heap's frontier. A
// forward copy in increasing `from` order is safe because a cell's
// planned destination is never past its own source index.
func slide(heap *Heap, oldCells []Cell, oldUsed, liveCells int) {
	for from := 0; from < oldUsed; from++ {
		c := oldCells[from]
		if c.Forward == NilRef {
			continue
		}
		dst := c.Forward
		c.Forward = NilRef
		heap.cells[dst] = c
	}
	heap.SetFrontier(liveCells)
}
