package vm

import "testing"

func newTestRuntime(t *testing.T, variant Variant) *Runtime {
	t.Helper()
	rt, err := NewRuntime(variant)
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	return rt
}

func bothVariants(t *testing.T, run func(t *testing.T, variant Variant)) {
	for _, v := range []Variant{FixedHeap, Reallocating} {
		v := v
		t.Run(v.String(), func(t *testing.T) { run(t, v) })
	}
}

// Scenario 1: push two integers, collect, expect two survivors.
func TestScenarioStackPreservation(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		rt := newTestRuntime(t, variant)
		must(t, rt.PushInt(1))
		must(t, rt.PushInt(2))
		if _, err := rt.GC(0); err != nil {
			t.Fatalf("GC() error = %v", err)
		}
		if got := rt.LiveCount(); got != 2 {
			t.Errorf("LiveCount() = %d, want 2", got)
		}
	})
}

// Scenario 2: push two integers, pop both, collect, expect nothing survives.
func TestScenarioDeadCollection(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		rt := newTestRuntime(t, variant)
		must(t, rt.PushInt(1))
		must(t, rt.PushInt(2))
		mustPop(t, rt)
		mustPop(t, rt)
		if _, err := rt.GC(0); err != nil {
			t.Fatalf("GC() error = %v", err)
		}
		if got := rt.LiveCount(); got != 0 {
			t.Errorf("LiveCount() = %d, want 0", got)
		}
	})
}

// Scenario 3: nested graph of 4 ints + 3 pairs, all rooted. Expect 7 survivors.
func TestScenarioNestedGraph(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		rt := newTestRuntime(t, variant)
		must(t, rt.PushInt(1))
		must(t, rt.PushInt(2))
		if _, err := rt.PushPair(); err != nil { // P1 = (1 . 2)
			t.Fatalf("PushPair() error = %v", err)
		}
		must(t, rt.PushInt(3))
		must(t, rt.PushInt(4))
		if _, err := rt.PushPair(); err != nil { // P2 = (3 . 4)
			t.Fatalf("PushPair() error = %v", err)
		}
		if _, err := rt.PushPair(); err != nil { // P3 = (P1 . P2)
			t.Fatalf("PushPair() error = %v", err)
		}
		if _, err := rt.GC(0); err != nil {
			t.Fatalf("GC() error = %v", err)
		}
		if got := rt.LiveCount(); got != 7 {
			t.Errorf("LiveCount() = %d, want 7", got)
		}
	})
}

// Scenario 4: a cycle between two rooted pairs. Both A and B stay on the
// root stack, so expected survivors are A, B, A.head, B.head (4 cells);
// the integers originally assigned as A.tail/B.tail become unreachable
// the moment A.tail is repointed at B and are reclaimed.
func TestScenarioCycle(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		rt := newTestRuntime(t, variant)

		must(t, rt.PushInt(1))
		must(t, rt.PushInt(2))
		a, err := rt.PushPair() // A = (1 . 2)
		if err != nil {
			t.Fatalf("PushPair() error = %v", err)
		}

		must(t, rt.PushInt(3))
		must(t, rt.PushInt(4))
		b, err := rt.PushPair() // B = (3 . 4)
		if err != nil {
			t.Fatalf("PushPair() error = %v", err)
		}

		// A and B are both still on the stack at this point (pushed by
		// PushPair above). Wire the cycle directly through the heap.
		rt.heap.Cell(a).Tail = b
		rt.heap.Cell(b).Tail = a

		if _, err := rt.GC(0); err != nil {
			t.Fatalf("GC() error = %v", err)
		}
		if got := rt.LiveCount(); got != 4 {
			t.Errorf("LiveCount() = %d, want 4", got)
		}
	})
}

// Scenario 5: churn with no retention across many iterations.
func TestScenarioChurnWithoutRetention(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		rt := newTestRuntime(t, variant)
		const iterations = 1000 // scaled down from the spec's 100000 for test speed
		for i := 0; i < iterations; i++ {
			for j := 0; j < 20; j++ {
				if err := rt.PushInt(int64(j)); err != nil {
					t.Fatalf("iteration %d: PushInt() error = %v", i, err)
				}
			}
			for j := 0; j < 20; j++ {
				if _, err := rt.Pop(); err != nil {
					t.Fatalf("iteration %d: Pop() error = %v", i, err)
				}
			}
		}
		if _, err := rt.GC(0); err != nil {
			t.Fatalf("GC() error = %v", err)
		}
		if got := rt.LiveCount(); got != 0 {
			t.Errorf("LiveCount() = %d, want 0", got)
		}
	})
}

// Scenario 6: from a minimal reallocating heap, grow while keeping
// everything rooted; every triggered collection must preserve all
// survivors.
func TestScenarioReallocatingGrowth(t *testing.T) {
	rt := newTestRuntime(t, Reallocating)
	const n = 100
	for i := 0; i < n; i++ {
		if err := rt.PushInt(int64(i)); err != nil {
			t.Fatalf("PushInt(%d) error = %v", i, err)
		}
	}
	if _, err := rt.GC(0); err != nil {
		t.Fatalf("GC() error = %v", err)
	}
	if got := rt.LiveCount(); got != n {
		t.Errorf("LiveCount() = %d, want %d", got, n)
	}
	if rt.HeapCapacity() < n {
		t.Errorf("HeapCapacity() = %d, want >= %d", rt.HeapCapacity(), n)
	}
}

// Boundary: an empty root stack collects down to zero live bytes, and
// the reallocating variant shrinks to HeapMinCells.
func TestBoundaryEmptyStackShrinksToMinimum(t *testing.T) {
	rt := newTestRuntime(t, Reallocating)
	must(t, rt.PushInt(1))
	mustPop(t, rt)
	if _, err := rt.GC(0); err != nil {
		t.Fatalf("GC() error = %v", err)
	}
	if got := rt.LiveCount(); got != 0 {
		t.Errorf("LiveCount() = %d, want 0", got)
	}
	if got := rt.HeapCapacity(); got != rt.config.HeapMinCells {
		t.Errorf("HeapCapacity() = %d, want %d", got, rt.config.HeapMinCells)
	}
}

// Boundary: a self-cycle (a cycle of length 1) preserves the pair plus its
// head integer, 2 cells; the integer displaced from the tail is reclaimed.
func TestBoundarySingleCycle(t *testing.T) {
	rt := newTestRuntime(t, FixedHeap)
	must(t, rt.PushInt(1))
	must(t, rt.PushInt(2))
	p, err := rt.PushPair() // p = (1 . 2); its tail is repointed at p below
	if err != nil {
		t.Fatalf("PushPair() error = %v", err)
	}
	rt.heap.Cell(p).Tail = p

	if _, err := rt.GC(0); err != nil {
		t.Fatalf("GC() error = %v", err)
	}
	if got := rt.LiveCount(); got != 2 {
		t.Errorf("LiveCount() = %d, want 2", got)
	}
}

// Round-trip: two consecutive collections with no mutator activity
// between them; the second is a no-op.
func TestConsecutiveCollectionsAreIdempotent(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		rt := newTestRuntime(t, variant)
		must(t, rt.PushInt(1))
		must(t, rt.PushInt(2))
		if _, err := rt.PushPair(); err != nil {
			t.Fatalf("PushPair() error = %v", err)
		}

		if _, err := rt.GC(0); err != nil {
			t.Fatalf("first GC() error = %v", err)
		}
		before := rt.LiveCount()
		snapshotBefore := rt.Print()

		if _, err := rt.GC(0); err != nil {
			t.Fatalf("second GC() error = %v", err)
		}
		if got := rt.LiveCount(); got != before {
			t.Errorf("LiveCount() after second GC = %d, want %d (unchanged)", got, before)
		}
		if got := rt.Print(); got != snapshotBefore {
			t.Errorf("Print() after second GC = %q, want %q (unchanged)", got, snapshotBefore)
		}
	})
}

// Round-trip: the printed graph survives a collection byte-for-byte.
func TestPrintStableAcrossCollection(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		rt := newTestRuntime(t, variant)
		must(t, rt.PushInt(1))
		must(t, rt.PushInt(2))
		if _, err := rt.PushPair(); err != nil {
			t.Fatalf("PushPair() error = %v", err)
		}
		must(t, rt.PushInt(99))

		before := rt.Print()
		if _, err := rt.GC(0); err != nil {
			t.Fatalf("GC() error = %v", err)
		}
		after := rt.Print()
		if before != after {
			t.Errorf("Print() changed across collection: before=%q after=%q", before, after)
		}
	})
}

// Boundary: allocation that exactly fills the fixed heap succeeds
// without a collection; the next allocation triggers one.
func TestFixedHeapExactFitDoesNotCollect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeapSize = 2
	rt, err := NewRuntimeWithConfig(cfg, FixedHeap)
	if err != nil {
		t.Fatalf("NewRuntimeWithConfig() error = %v", err)
	}

	must(t, rt.PushInt(1))
	must(t, rt.PushInt(2))
	if got := rt.heap.Frontier(); got != 2 {
		t.Fatalf("Frontier() = %d, want 2 (heap exactly full, no collection yet)", got)
	}

	// The heap is full. After one cell is popped, the next allocation
	// must trigger a collection, which reclaims the popped cell and so
	// makes room for the new one.
	mustPop(t, rt)
	must(t, rt.PushInt(3))
	if got := rt.LiveCount(); got != 2 {
		t.Errorf("LiveCount() = %d, want 2", got)
	}
}

func TestFixedHeapOutOfMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeapSize = 1
	rt, err := NewRuntimeWithConfig(cfg, FixedHeap)
	if err != nil {
		t.Fatalf("NewRuntimeWithConfig() error = %v", err)
	}
	must(t, rt.PushInt(1))
	if err := rt.PushInt(2); err != ErrOutOfMemory {
		t.Fatalf("PushInt() error = %v, want ErrOutOfMemory", err)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func mustPop(t *testing.T, rt *Runtime) Ref {
	t.Helper()
	r, err := rt.Pop()
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	return r
}
