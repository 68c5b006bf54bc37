package vm

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// cellSize is reported to the diagnostic layer as the nominal byte cost
// of one cell, so CollectionStats can speak in the bytes the
// specification's external interface is phrased in even though the
// collector itself is cell-indexed throughout.
var cellSize = int(unsafe.Sizeof(Cell{}))

// CollectionStats is produced by every call to Runtime.GC. It mirrors
// the teacher's sweep-statistics pattern (ConcurrencyRegistry's
// SweepChannels and friends report a count; here a whole cycle reports
// a richer record) without any of that registry's own concurrency.
type CollectionStats struct {
	ID           string
	Variant      Variant
	LiveCells    int
	LiveBytes    int
	HeapCapacity int
	Duration     time.Duration
}

func newCollectionStats(rt *Runtime, liveCells int) CollectionStats {
	return CollectionStats{
		ID:           uuid.New().String(),
		Variant:      rt.heap.variant,
		LiveCells:    liveCells,
		LiveBytes:    liveCells * cellSize,
		HeapCapacity: rt.heap.Capacity(),
	}
}

// Summary renders the human-readable diagnostic line the specification
// requires after every collection: live bytes and heap size.
func (s CollectionStats) Summary() string {
	return fmt.Sprintf("gc[%s/%s]: %s live, heap %s (%d cells)",
		s.ID[:8], s.Variant,
		humanize.Bytes(uint64(s.LiveBytes)),
		humanize.Bytes(uint64(s.HeapCapacity*cellSize)),
		s.LiveCells,
	)
}
