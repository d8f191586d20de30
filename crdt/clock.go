package crdt

import "cmp"

// Timestamp is a Lamport timestamp tagged with the actor that minted it.
// Timestamps are totally ordered by (Counter, Actor).
type Timestamp[A Actor] struct {
	Counter uint64 `json:"counter"`
	Actor   A      `json:"actor"`
}

// Compare returns -1, 0 or +1 depending on whether t sorts before, equal to or after o.
func (t Timestamp[A]) Compare(o Timestamp[A]) int {
	if c := cmp.Compare(t.Counter, o.Counter); c != 0 {
		return c
	}
	return cmp.Compare(t.Actor, o.Actor)
}

// Less reports whether t sorts before o.
func (t Timestamp[A]) Less(o Timestamp[A]) bool {
	return t.Compare(o) < 0
}

// Clock is the logical clock of a single actor. It is not safe for concurrent use.
type Clock[A Actor] struct {
	actor   A
	counter uint64
}

// NewClock returns a clock for actor with its counter at zero.
func NewClock[A Actor](actor A) *Clock[A] {
	return &Clock[A]{actor: actor}
}

// Tick increments the counter and returns the new timestamp.
func (c *Clock[A]) Tick() Timestamp[A] {
	c.counter++
	return c.Timestamp()
}

// Merge advances the counter to at least ts.Counter, so that the next
// Tick sorts after every timestamp this clock has observed.
func (c *Clock[A]) Merge(ts Timestamp[A]) {
	if ts.Counter > c.counter {
		c.counter = ts.Counter
	}
}

// Timestamp returns the current timestamp without advancing the clock.
func (c *Clock[A]) Timestamp() Timestamp[A] {
	return Timestamp[A]{Counter: c.counter, Actor: c.actor}
}

func (c *Clock[A]) Actor() A {
	return c.actor
}

func (c *Clock[A]) Counter() uint64 {
	return c.counter
}
