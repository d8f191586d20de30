package crdt

import (
	"errors"
	"fmt"

	"github.com/google/btree"
)

const logDegree = 32

var (
	// ErrTimestampConflict is returned for an operation that reuses the
	// timestamp of a different, already logged operation.
	ErrTimestampConflict = errors.New("timestamp already used by a different operation")

	// ErrBeforeTruncation is returned for an operation older than the point
	// the log was truncated at. It can no longer be placed correctly.
	ErrBeforeTruncation = errors.New("operation is older than the truncated log")
)

// State is the materialized tree plus the timestamp-ordered log of every
// applied operation. Replaying the log from an empty tree reproduces the tree.
type State[ID TreeID, M TreeMeta, A Actor] struct {
	tree *Tree[ID, M]
	log  *btree.BTreeG[LogOpMove[ID, M, A]]

	// floor is the timestamp the log was truncated before, if any.
	floor    Timestamp[A]
	hasFloor bool
}

func logLess[ID TreeID, M TreeMeta, A Actor](a, b LogOpMove[ID, M, A]) bool {
	return a.Op.Timestamp.Less(b.Op.Timestamp)
}

// NewState returns an empty tree with an empty log.
func NewState[ID TreeID, M TreeMeta, A Actor]() *State[ID, M, A] {
	return &State[ID, M, A]{
		tree: NewTree[ID, M](),
		log:  btree.NewG(logDegree, logLess[ID, M, A]),
	}
}

// Tree returns the materialized tree. Callers must not modify it.
func (s *State[ID, M, A]) Tree() *Tree[ID, M] {
	return s.tree
}

// Log returns the applied operations in ascending timestamp order.
func (s *State[ID, M, A]) Log() []LogOpMove[ID, M, A] {
	entries := make([]LogOpMove[ID, M, A], 0, s.log.Len())
	s.log.Ascend(func(e LogOpMove[ID, M, A]) bool {
		entries = append(entries, e)
		return true
	})
	return entries
}

func (s *State[ID, M, A]) LogLen() int {
	return s.log.Len()
}

// LastTimestamp returns the timestamp of the newest logged operation.
func (s *State[ID, M, A]) LastTimestamp() (Timestamp[A], bool) {
	last, ok := s.log.Max()
	return last.Op.Timestamp, ok
}

// ApplyOp integrates op at its timestamp position. Operations newer than op
// are undone, op is applied, then the undone operations are redone.
//
// A timestamp identifies an operation: redelivering a logged operation is a
// no-op, while a different operation with a logged timestamp is rejected
// with ErrTimestampConflict. Operations older than the truncation floor are
// rejected with ErrBeforeTruncation. Rejected operations leave the state
// untouched.
func (s *State[ID, M, A]) ApplyOp(op OpMove[ID, M, A]) error {
	key := LogOpMove[ID, M, A]{Op: op}
	if logged, ok := s.log.Get(key); ok {
		if logged.Op != op {
			return fmt.Errorf("%w: %v", ErrTimestampConflict, op.Timestamp)
		}
		return nil
	}
	if s.hasFloor && op.Timestamp.Less(s.floor) {
		return fmt.Errorf("%w: %v before %v", ErrBeforeTruncation, op.Timestamp, s.floor)
	}

	var undone []LogOpMove[ID, M, A]
	s.log.DescendGreaterThan(key, func(e LogOpMove[ID, M, A]) bool {
		undone = append(undone, e)
		return true
	})
	for _, e := range undone {
		s.undoOp(e)
		s.log.Delete(e)
	}

	s.log.ReplaceOrInsert(s.doOp(op))

	for i := len(undone) - 1; i >= 0; i-- {
		s.log.ReplaceOrInsert(s.doOp(undone[i].Op))
	}
	return nil
}

// ApplyOps applies every op in order, even after a rejection, and returns
// the rejections joined together.
func (s *State[ID, M, A]) ApplyOps(ops []OpMove[ID, M, A]) error {
	var errs []error
	for _, op := range ops {
		if err := s.ApplyOp(op); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Floor returns the timestamp the log was truncated before.
func (s *State[ID, M, A]) Floor() (Timestamp[A], bool) {
	return s.floor, s.hasFloor
}

// TruncateLogBefore drops log entries older than ts and returns how many
// were removed. ts becomes the floor: operations older than it are rejected
// from then on. The caller must only pass a timestamp that every replica has
// delivered everything before, which this package cannot know.
func (s *State[ID, M, A]) TruncateLogBefore(ts Timestamp[A]) int {
	if s.hasFloor && ts.Less(s.floor) {
		return 0
	}
	s.floor, s.hasFloor = ts, true

	var stale []LogOpMove[ID, M, A]
	s.log.AscendLessThan(LogOpMove[ID, M, A]{Op: OpMove[ID, M, A]{Timestamp: ts}}, func(e LogOpMove[ID, M, A]) bool {
		stale = append(stale, e)
		return true
	})
	for _, e := range stale {
		s.log.Delete(e)
	}
	return len(stale)
}

// doOp moves op.Child unless that would create a cycle, and returns the
// log entry recording the child's previous placement.
func (s *State[ID, M, A]) doOp(op OpMove[ID, M, A]) LogOpMove[ID, M, A] {
	entry := LogOpMove[ID, M, A]{Op: op}
	if old, ok := s.tree.Find(op.Child); ok {
		entry.OldNode = &old
	}

	if op.Parent == op.Child || s.tree.IsAncestor(op.Parent, op.Child) {
		return entry
	}

	s.tree.Remove(op.Child)
	s.tree.Add(op.Child, TreeNode[ID, M]{Parent: op.Parent, Meta: op.Meta})
	return entry
}

func (s *State[ID, M, A]) undoOp(e LogOpMove[ID, M, A]) {
	s.tree.Remove(e.Op.Child)
	if e.OldNode != nil {
		s.tree.Add(e.Op.Child, *e.OldNode)
	}
}
