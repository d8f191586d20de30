// Package brbtree adapts the replicated move-tree to the brb data type
// contract, so that a Byzantine reliable broadcast layer can drive it.
package brbtree

import (
	"github.com/burntcarrot/treecrdt/brb"
	"github.com/burntcarrot/treecrdt/crdt"
)

// Tree is a brb.DataType wrapping a crdt.Replica.
type Tree[ID crdt.TreeID, M crdt.TreeMeta, A crdt.Actor] struct {
	actor   A
	replica *crdt.Replica[ID, M, A]
}

var _ brb.DataType[string, crdt.OpMoveTx[string, string, string]] = (*Tree[string, string, string])(nil)

// New returns a tree bound to actor with an empty state.
func New[ID crdt.TreeID, M crdt.TreeMeta, A crdt.Actor](actor A) *Tree[ID, M, A] {
	return &Tree[ID, M, A]{
		actor:   actor,
		replica: crdt.NewReplica[ID, M, A](actor),
	}
}

// FromReplica wraps an existing replica, for instance one loaded from a snapshot.
func FromReplica[ID crdt.TreeID, M crdt.TreeMeta, A crdt.Actor](replica *crdt.Replica[ID, M, A]) *Tree[ID, M, A] {
	return &Tree[ID, M, A]{actor: replica.Actor(), replica: replica}
}

// Factory returns a brb.Factory constructing trees.
func Factory[ID crdt.TreeID, M crdt.TreeMeta, A crdt.Actor]() brb.Factory[A, crdt.OpMoveTx[ID, M, A], *Tree[ID, M, A]] {
	return New[ID, M, A]
}

// OpMove mints a single move.
func (t *Tree[ID, M, A]) OpMove(parent ID, meta M, child ID) crdt.OpMove[ID, M, A] {
	return t.replica.OpMove(parent, meta, child)
}

// OpMoveTx mints a transaction holding one move.
func (t *Tree[ID, M, A]) OpMoveTx(parent ID, meta M, child ID) crdt.OpMoveTx[ID, M, A] {
	return t.replica.OpMoves([]crdt.Move[ID, M]{{Parent: parent, Meta: meta, Child: child}})
}

// OpMoveTxMulti mints a transaction of moves with successive timestamps.
func (t *Tree[ID, M, A]) OpMoveTxMulti(moves []crdt.Move[ID, M]) crdt.OpMoveTx[ID, M, A] {
	return t.replica.OpMoves(moves)
}

func (t *Tree[ID, M, A]) Actor() A {
	return t.actor
}

func (t *Tree[ID, M, A]) TreeState() *crdt.State[ID, M, A] {
	return t.replica.State()
}

func (t *Tree[ID, M, A]) TreeReplica() *crdt.Replica[ID, M, A] {
	return t.replica
}

// Validate checks that every move in tx was authored by source.
func (t *Tree[ID, M, A]) Validate(source A, tx crdt.OpMoveTx[ID, M, A]) error {
	for i, op := range tx {
		if op.Timestamp.Actor != source {
			return &ValidationError[A]{
				Kind:   SourceDoesNotMatchOp,
				Index:  i,
				Source: source,
				Author: op.Timestamp.Actor,
			}
		}
	}
	return nil
}

// Apply merges every move of tx in order. The caller must have validated tx.
// Moves the tree cannot integrate (a reused timestamp, or one older than the
// truncated log) are skipped and returned; the rest of tx still applies.
func (t *Tree[ID, M, A]) Apply(tx crdt.OpMoveTx[ID, M, A]) error {
	return t.replica.ApplyOps(tx)
}
