package brb

import (
	"errors"
	"math/rand"
)

var ErrUnknownActor = errors.New("unknown actor")

type delivery[A comparable, Op any] struct {
	source A
	op     Op
}

// Network is an in-memory reliable broadcast between data types. Every
// broadcast op is queued for every member, including the source, and is
// delivered when Flush runs. Delivery order may be shuffled per member.
type Network[A comparable, Op any, D DataType[A, Op]] struct {
	factory Factory[A, Op, D]
	members map[A]D
	order   []A
	queues  map[A][]delivery[A, Op]
	rand    *rand.Rand

	// Rejected counts failed deliveries per receiving member.
	Rejected map[A]int
}

// NewNetwork returns an empty network. If r is non-nil, Flush delivers each
// member's queue in a random order drawn from r.
func NewNetwork[A comparable, Op any, D DataType[A, Op]](factory Factory[A, Op, D], r *rand.Rand) *Network[A, Op, D] {
	return &Network[A, Op, D]{
		factory:  factory,
		members:  make(map[A]D),
		queues:   make(map[A][]delivery[A, Op]),
		rand:     r,
		Rejected: make(map[A]int),
	}
}

// Join constructs a member for actor. Joining twice returns the existing member.
func (n *Network[A, Op, D]) Join(actor A) D {
	if d, ok := n.members[actor]; ok {
		return d
	}
	d := n.factory(actor)
	n.members[actor] = d
	n.order = append(n.order, actor)
	return d
}

func (n *Network[A, Op, D]) Member(actor A) (D, bool) {
	d, ok := n.members[actor]
	return d, ok
}

// Broadcast queues op for every member, attested as coming from source.
func (n *Network[A, Op, D]) Broadcast(source A, op Op) error {
	if _, ok := n.members[source]; !ok {
		return ErrUnknownActor
	}
	for _, actor := range n.order {
		n.queues[actor] = append(n.queues[actor], delivery[A, Op]{source: source, op: op})
	}
	return nil
}

// Flush delivers every queued op to every member.
func (n *Network[A, Op, D]) Flush() {
	for _, actor := range n.order {
		queue := n.queues[actor]
		n.queues[actor] = nil
		if n.rand != nil {
			n.rand.Shuffle(len(queue), func(i, j int) { queue[i], queue[j] = queue[j], queue[i] })
		}
		for _, m := range queue {
			if err := Deliver[A, Op](n.members[actor], m.source, m.op); err != nil {
				n.Rejected[actor]++
			}
		}
	}
}
