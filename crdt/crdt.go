// Package crdt implements a replicated move-tree: a forest of nodes that
// independent replicas mutate with timestamped move operations and that
// converges to the same structure once every replica has applied the same
// set of operations, in any order.
//
// Operations are integrated with the undo/redo algorithm described in
// "A highly-available move operation for replicated trees" (Kleppmann et al.).
// A move that would make a node its own ancestor is logged but leaves the
// tree unchanged.
package crdt

import "cmp"

// TreeID is the constraint satisfied by node identifiers.
type TreeID interface {
	comparable
}

// TreeMeta is the constraint satisfied by the metadata attached to a placement.
type TreeMeta interface {
	comparable
}

// Actor is the constraint satisfied by replica identities. Actors must be
// ordered so that timestamps with equal counters still sort deterministically.
type Actor interface {
	cmp.Ordered
}
