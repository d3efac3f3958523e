package domain

import (
	"fmt"
	"reflect"
)

// KeyKind distinguishes the three registrable pipeline shapes.
type KeyKind uint8

const (
	// KeyEnter selects the pipeline run when a machine enters a value.
	KeyEnter KeyKind = iota + 1
	// KeyExit selects the pipeline run when a machine exits a value.
	KeyExit
	// KeyTransition selects the pipeline run on an exact from->to pair.
	// It runs after the exit pipeline and before the enter pipeline.
	KeyTransition
)

func (k KeyKind) String() string {
	switch k {
	case KeyEnter:
		return "enter"
	case KeyExit:
		return "exit"
	case KeyTransition:
		return "transition"
	default:
		return "unknown"
	}
}

// PipelineKey identifies a registrable pipeline by shape, machine type and
// the state value(s) involved. Identity is full structural equality
// including the machine type, so two machine types sharing a value type
// never collide. Keys are valid map keys as long as the state value type
// is comparable, which registration already requires.
type PipelineKey struct {
	Kind    KeyKind
	Machine reflect.Type

	// From holds the exited value for KeyExit and KeyTransition; To holds
	// the entered value for KeyEnter and KeyTransition. The unused slot is nil.
	From any
	To   any
}

func (k PipelineKey) String() string {
	switch k.Kind {
	case KeyEnter:
		return fmt.Sprintf("enter[%v](%v)", k.Machine, k.To)
	case KeyExit:
		return fmt.Sprintf("exit[%v](%v)", k.Machine, k.From)
	case KeyTransition:
		return fmt.Sprintf("transition[%v](%v->%v)", k.Machine, k.From, k.To)
	default:
		return fmt.Sprintf("unknown[%v]", k.Machine)
	}
}

// EnterKey builds the key for the pipeline run when S enters v.
func EnterKey[S comparable](v S) PipelineKey {
	return PipelineKey{Kind: KeyEnter, Machine: reflect.TypeFor[S](), To: v}
}

// ExitKey builds the key for the pipeline run when S exits v.
func ExitKey[S comparable](v S) PipelineKey {
	return PipelineKey{Kind: KeyExit, Machine: reflect.TypeFor[S](), From: v}
}

// TransitionKey builds the key for the pipeline run when S moves exactly
// from one value to another.
func TransitionKey[S comparable](from, to S) PipelineKey {
	return PipelineKey{Kind: KeyTransition, Machine: reflect.TypeFor[S](), From: from, To: to}
}
