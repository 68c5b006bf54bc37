package vm

import "fmt"

// Runtime bundles a heap, its root stack, and the configuration the
// collector uses to size the heap — the handle the driver holds for the
// lifetime of one program. It has no exported fields: every interaction
// goes through its methods (the core operations in this file, Snapshot
// and Print in snapshot.go).
type Runtime struct {
	heap    *Heap
	stack   *RootStack
	config  RuntimeConfig
	history *HistoryLog
}

// NewRuntime creates an instance with an empty stack and an empty heap
// sized per DefaultConfig: HeapSize cells for the fixed variant, or
// HeapMinCells for the reallocating variant.
func NewRuntime(variant Variant) (*Runtime, error) {
	return NewRuntimeWithConfig(DefaultConfig(), variant)
}

// NewRuntimeWithConfig is NewRuntime with an explicit, possibly
// LoadConfig-sourced, RuntimeConfig.
func NewRuntimeWithConfig(cfg RuntimeConfig, variant Variant) (*Runtime, error) {
	capacity := cfg.HeapSize
	if variant == Reallocating {
		capacity = cfg.HeapMinCells
	}
	heap, err := NewHeap(capacity, variant)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		heap:   heap,
		stack:  NewRootStack(cfg.StackMax),
		config: cfg,
	}, nil
}

// AttachHistory wires an optional SQLite-backed log that records every
// CollectionStats produced by GC. The core collector never depends on
// this; it is purely a driver-side diagnostic, appended synchronously
// inside GC so the stop-the-world guarantee is never broken by a
// background writer.
func (rt *Runtime) AttachHistory(log *HistoryLog) { rt.history = log }

// allocate implements the object model's allocate(type) operation: try
// the bump allocator, and on exhaustion invoke the collector requesting
// exactly one cell of headroom before retrying once.
func (rt *Runtime) allocate(tag Tag) (Ref, error) {
	if r, ok := rt.heap.AllocateCell(); ok {
		*rt.heap.Cell(r) = newCell(tag)
		return r, nil
	}
	if _, err := rt.collect(1); err != nil {
		return NilRef, err
	}
	if r, ok := rt.heap.AllocateCell(); ok {
		*rt.heap.Cell(r) = newCell(tag)
		return r, nil
	}
	return NilRef, ErrOutOfMemory
}

// PushInt allocates an Integer cell holding n and pushes it.
func (rt *Runtime) PushInt(n int64) error {
	r, err := rt.allocate(TagInteger)
	if err != nil {
		return err
	}
	rt.heap.Cell(r).IntValue = n
	return rt.stack.Push(r)
}

// PushPair allocates a Pair, then pops tail then head from the root
// stack and assigns them, then pushes the new pair and returns its
// reference. Allocation strictly precedes both pops: a collection
// triggered by the allocation must still see the would-be children
// rooted on the stack, not yet detached from it.
func (rt *Runtime) PushPair() (Ref, error) {
	r, err := rt.allocate(TagPair)
	if err != nil {
		return NilRef, err
	}
	tail, err := rt.stack.Pop()
	if err != nil {
		return NilRef, err
	}
	head, err := rt.stack.Pop()
	if err != nil {
		return NilRef, err
	}
	cell := rt.heap.Cell(r)
	cell.Head = head
	cell.Tail = tail
	if err := rt.stack.Push(r); err != nil {
		return NilRef, err
	}
	return r, nil
}

// Pop removes and returns the top of the root stack.
func (rt *Runtime) Pop() (Ref, error) {
	return rt.stack.Pop()
}

// GC forces a collection, requesting additionalCells of headroom for the
// allocation that follows it.
func (rt *Runtime) GC(additionalCells int) (CollectionStats, error) {
	return rt.collect(additionalCells)
}

// LiveCount returns liveBytes / cellSize: the number of cells currently
// occupying the heap's used region. Immediately after a collection this
// is exactly the number of survivors.
func (rt *Runtime) LiveCount() int {
	return rt.heap.LiveCells()
}

// Variant reports which collector strategy this runtime was built with.
func (rt *Runtime) Variant() Variant { return rt.heap.variant }

// HeapCapacity reports the heap's current total cell capacity.
func (rt *Runtime) HeapCapacity() int { return rt.heap.Capacity() }

// Free releases the heap and then the instance record itself, in that
// order, matching the resource lifecycle the specification describes.
// Go's own collector reclaims the backing arrays once nothing
// references them; Free's job is only to make that moment deterministic
// for the caller rather than to manage memory by hand.
func (rt *Runtime) Free() {
	rt.heap = nil
	rt.stack = nil
	rt.history = nil
}

// cellAt exposes read-only access to a single heap cell, for diagnostics
// (snapshot, print) that need to walk the reachable graph.
func (rt *Runtime) cellAt(r Ref) Cell { return *rt.heap.Cell(r) }

// LinkTails sets the tail field of the Pair at ref to target, letting a
// driver build cycles the way the mutator would (spec.md §8 scenario 4
// links two rooted pairs into a cycle through their tail fields). ref
// must currently reference a Pair.
func (rt *Runtime) LinkTails(ref, target Ref) error {
	cell := rt.heap.Cell(ref)
	if cell.Tag != TagPair {
		return fmt.Errorf("vm: LinkTails: %v is not a Pair", ref)
	}
	cell.Tail = target
	return nil
}
