package crdt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

var ErrInvalidSnapshot = errors.New("invalid snapshot")

// NodeEntry is one placement of a snapshotted tree.
type NodeEntry[ID TreeID, M TreeMeta] struct {
	Child  ID `json:"child"`
	Parent ID `json:"parent"`
	Meta   M  `json:"meta"`
}

// Snapshot is a serializable copy of a replica: its clock, tree, log and
// the floor the log was truncated at. Nodes are ordered by the JSON encoding
// of their child ID, so equal replicas produce equal snapshots.
type Snapshot[ID TreeID, M TreeMeta, A Actor] struct {
	Actor   A                     `json:"actor"`
	Counter uint64                `json:"counter"`
	Nodes   []NodeEntry[ID, M]    `json:"nodes"`
	Log     []LogOpMove[ID, M, A] `json:"log"`
	Floor   *Timestamp[A]         `json:"floor,omitempty"`
}

// Snapshot copies the replica's state.
func (r *Replica[ID, M, A]) Snapshot() Snapshot[ID, M, A] {
	snap := Snapshot[ID, M, A]{
		Actor:   r.Actor(),
		Counter: r.clock.Counter(),
		Log:     r.state.Log(),
	}
	keys := make(map[ID]string, r.state.tree.Len())
	for child, n := range r.state.tree.nodes {
		snap.Nodes = append(snap.Nodes, NodeEntry[ID, M]{Child: child, Parent: n.Parent, Meta: n.Meta})
		keys[child] = sortKey(child)
	}
	sort.Slice(snap.Nodes, func(i, j int) bool {
		return keys[snap.Nodes[i].Child] < keys[snap.Nodes[j].Child]
	})
	if floor, ok := r.state.Floor(); ok {
		snap.Floor = &floor
	}
	return snap
}

func sortKey(v any) string {
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%#v", v)
}

// FromSnapshot rebuilds a replica bound to actor from snap. The actor may
// differ from the one that took the snapshot; the clock resumes after every
// timestamp the snapshot has seen.
func FromSnapshot[ID TreeID, M TreeMeta, A Actor](actor A, snap Snapshot[ID, M, A]) (*Replica[ID, M, A], error) {
	r := NewReplica[ID, M, A](actor)
	r.clock.Merge(Timestamp[A]{Counter: snap.Counter})

	for _, n := range snap.Nodes {
		if _, ok := r.state.tree.Find(n.Child); ok {
			return nil, fmt.Errorf("%w: child %v placed twice", ErrInvalidSnapshot, n.Child)
		}
		r.state.tree.Add(n.Child, TreeNode[ID, M]{Parent: n.Parent, Meta: n.Meta})
	}
	for _, n := range snap.Nodes {
		if n.Parent == n.Child || r.state.tree.IsAncestor(n.Parent, n.Child) {
			return nil, fmt.Errorf("%w: cycle through %v", ErrInvalidSnapshot, n.Child)
		}
	}

	for _, e := range snap.Log {
		if snap.Floor != nil && e.Op.Timestamp.Less(*snap.Floor) {
			return nil, fmt.Errorf("%w: log entry %v before floor %v", ErrInvalidSnapshot, e.Op.Timestamp, *snap.Floor)
		}
		if _, replaced := r.state.log.ReplaceOrInsert(e); replaced {
			return nil, fmt.Errorf("%w: duplicate log timestamp %v", ErrInvalidSnapshot, e.Op.Timestamp)
		}
		r.clock.Merge(e.Op.Timestamp)
	}
	if snap.Floor != nil {
		r.state.floor, r.state.hasFloor = *snap.Floor, true
		r.clock.Merge(*snap.Floor)
	}
	return r, nil
}

// Save writes a JSON snapshot of r to path.
func Save[ID TreeID, M TreeMeta, A Actor](path string, r *Replica[ID, M, A]) error {
	b, err := json.Marshal(r.Snapshot())
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644) // skipcq: GSC-G302
}

// Load reads a snapshot written by Save and rebuilds it as a replica bound to actor.
func Load[ID TreeID, M TreeMeta, A Actor](path string, actor A) (*Replica[ID, M, A], error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var snap Snapshot[ID, M, A]
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return FromSnapshot(actor, snap)
}
