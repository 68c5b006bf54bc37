package vm

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// snapshotCborMode is a canonical CBOR encoder, matching the teacher's
// dist package convention of encoding wire values deterministically so
// round-trips are byte-for-byte comparable.
var snapshotCborMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	snapshotCborMode = em
}

// SnapshotNode is one object in a Snapshot's graph, addressed by its
// position in Snapshot.Nodes rather than by heap Ref, so a snapshot
// taken before a collection and one taken after it are comparable even
// though the collector has since renumbered everything.
type SnapshotNode struct {
	Tag      Tag   `cbor:"tag"`
	IntValue int64 `cbor:"int,omitempty"`
	Head     int   `cbor:"head,omitempty"` // index into Nodes, or -1
	Tail     int   `cbor:"tail,omitempty"` // index into Nodes, or -1
}

// Snapshot is a CBOR-serializable copy of the graph reachable from the
// root stack at the moment it was taken: Roots holds indices into Nodes
// for each live root, in stack order.
type Snapshot struct {
	Roots []int          `cbor:"roots"`
	Nodes []SnapshotNode `cbor:"nodes"`
}

// Snapshot walks the graph reachable from the root stack and captures it
// as a CBOR-ready value, generalizing the teacher's image writer/reader
// pair down to this runtime's two-variant object model.
func (rt *Runtime) Snapshot() Snapshot {
	index := make(map[Ref]int)
	var nodes []SnapshotNode

	var visit func(r Ref) int
	visit = func(r Ref) int {
		if r == NilRef {
			return -1
		}
		if idx, ok := index[r]; ok {
			return idx
		}
		idx := len(nodes)
		index[r] = idx
		nodes = append(nodes, SnapshotNode{})
		c := rt.cellAt(r)
		node := SnapshotNode{Tag: c.Tag}
		if c.Tag == TagInteger {
			node.IntValue = c.IntValue
		} else {
			node.Head = visit(c.Head)
			node.Tail = visit(c.Tail)
		}
		nodes[idx] = node
		return idx
	}

	roots := make([]int, rt.stack.Len())
	for i := 0; i < rt.stack.Len(); i++ {
		roots[i] = visit(rt.stack.At(i))
	}

	return Snapshot{Roots: roots, Nodes: nodes}
}

// EncodeSnapshot serializes a Snapshot to canonical CBOR bytes.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	return snapshotCborMode.Marshal(s)
}

// DecodeSnapshot deserializes a Snapshot from CBOR bytes.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("vm: unmarshal snapshot: %w", err)
	}
	return s, nil
}

// Print renders the graph reachable from the root stack as
// "(1 2 (3 . 4))"-style text, bottom of stack first. It is a diagnostic
// convenience, not a compatibility surface, and is comparable
// before/after a collection precisely because it names structure, not
// heap addresses.
func (rt *Runtime) Print() string {
	return rt.Snapshot().String()
}

// String renders a Snapshot the same way Runtime.Print does, so a
// snapshot taken before a collection and one decoded after it can be
// compared textually.
func (s Snapshot) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, root := range s.Roots {
		if i > 0 {
			b.WriteByte(' ')
		}
		s.writeNode(&b, root)
	}
	b.WriteByte(')')
	return b.String()
}

func (s Snapshot) writeNode(b *strings.Builder, idx int) {
	if idx < 0 {
		b.WriteString("nil")
		return
	}
	n := s.Nodes[idx]
	if n.Tag == TagInteger {
		fmt.Fprintf(b, "%d", n.IntValue)
		return
	}
	b.WriteByte('(')
	s.writeNode(b, n.Head)
	b.WriteString(" . ")
	s.writeNode(b, n.Tail)
	b.WriteByte(')')
}
