package crdt

import "errors"

// Replica binds one actor to one State. It mints operations stamped by its
// own clock and merges operations from any actor into its state.
// A Replica is not safe for concurrent use.
type Replica[ID TreeID, M TreeMeta, A Actor] struct {
	state *State[ID, M, A]
	clock *Clock[A]
}

// NewReplica returns a replica for actor with an empty state.
func NewReplica[ID TreeID, M TreeMeta, A Actor](actor A) *Replica[ID, M, A] {
	return &Replica[ID, M, A]{
		state: NewState[ID, M, A](),
		clock: NewClock(actor),
	}
}

func (r *Replica[ID, M, A]) Actor() A {
	return r.clock.Actor()
}

// State returns the replica's tree state. Callers must not modify it.
func (r *Replica[ID, M, A]) State() *State[ID, M, A] {
	return r.state
}

// Time returns the current timestamp of the replica's clock.
func (r *Replica[ID, M, A]) Time() Timestamp[A] {
	return r.clock.Timestamp()
}

// OpMove mints a move of child under parent. The operation is not applied.
func (r *Replica[ID, M, A]) OpMove(parent ID, meta M, child ID) OpMove[ID, M, A] {
	return OpMove[ID, M, A]{
		Timestamp: r.clock.Tick(),
		Parent:    parent,
		Meta:      meta,
		Child:     child,
	}
}

// OpMoves mints a transaction, stamping each move with a successive timestamp.
func (r *Replica[ID, M, A]) OpMoves(moves []Move[ID, M]) OpMoveTx[ID, M, A] {
	tx := make(OpMoveTx[ID, M, A], 0, len(moves))
	for _, m := range moves {
		tx = append(tx, r.OpMove(m.Parent, m.Meta, m.Child))
	}
	return tx
}

// ApplyOp merges op into the replica's state. A rejected op, see
// State.ApplyOp, does not advance the clock.
func (r *Replica[ID, M, A]) ApplyOp(op OpMove[ID, M, A]) error {
	if err := r.state.ApplyOp(op); err != nil {
		return err
	}
	r.clock.Merge(op.Timestamp)
	return nil
}

// ApplyOps merges every op in order and returns the rejections joined together.
func (r *Replica[ID, M, A]) ApplyOps(ops []OpMove[ID, M, A]) error {
	var errs []error
	for _, op := range ops {
		if err := r.ApplyOp(op); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TruncateLogBefore drops log entries older than stable. stable must be
// causally stable: the broadcast layer has delivered every operation older
// than it to every replica. Operations older than stable that still arrive
// are rejected with ErrBeforeTruncation.
func (r *Replica[ID, M, A]) TruncateLogBefore(stable Timestamp[A]) int {
	return r.state.TruncateLogBefore(stable)
}
