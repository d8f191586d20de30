// Package brb holds the contract between a Byzantine reliable broadcast
// layer and the replicated data types it drives.
package brb

// DataType is a replicated data type that the broadcast layer can drive.
// Validate must not mutate the data type. Apply is only called with
// operations that passed Validate for the same source; it applies
// unconditionally and only reports operations that broke an invariant of
// the data type, which it leaves out.
type DataType[A comparable, Op any] interface {
	// Validate checks op against the actor that the broadcast layer
	// attests as its source.
	Validate(source A, op Op) error
	// Apply merges a validated op.
	Apply(op Op) error
}

// Factory constructs a fresh data type bound to actor.
type Factory[A comparable, Op any, D DataType[A, Op]] func(actor A) D

// Deliver validates op against source and applies it only if validation passed.
func Deliver[A comparable, Op any](d DataType[A, Op], source A, op Op) error {
	if err := d.Validate(source, op); err != nil {
		return err
	}
	return d.Apply(op)
}
