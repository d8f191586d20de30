package brbtree

import (
	"errors"
	"fmt"
)

// ErrSourceDoesNotMatchOp is matched by errors.Is for every ValidationError
// of kind SourceDoesNotMatchOp.
var ErrSourceDoesNotMatchOp = errors.New("the source actor does not match the actor associated with the operation")

// ValidationErrorKind enumerates the reasons an operation fails validation.
type ValidationErrorKind int

const (
	SourceDoesNotMatchOp ValidationErrorKind = iota + 1
)

func (k ValidationErrorKind) String() string {
	switch k {
	case SourceDoesNotMatchOp:
		return "SourceDoesNotMatchOp"
	default:
		return fmt.Sprintf("ValidationErrorKind(%d)", int(k))
	}
}

// ValidationError is returned by Tree.Validate.
type ValidationError[A comparable] struct {
	Kind ValidationErrorKind

	// Index is the position of the offending move in the transaction.
	Index  int
	Source A
	Author A
}

func (e *ValidationError[A]) Error() string {
	switch e.Kind {
	case SourceDoesNotMatchOp:
		return fmt.Sprintf("%v: op %d authored by %v, broadcast by %v", ErrSourceDoesNotMatchOp, e.Index, e.Author, e.Source)
	default:
		return e.Kind.String()
	}
}

func (e *ValidationError[A]) Is(target error) bool {
	return e.Kind == SourceDoesNotMatchOp && target == ErrSourceDoesNotMatchOp
}
