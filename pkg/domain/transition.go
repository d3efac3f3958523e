package domain

// TransitionKind classifies an applied transition by its shape.
type TransitionKind string

const (
	// KindInsert marks a machine becoming active for the first time (no prior value).
	KindInsert TransitionKind = "insert"
	// KindUpdate marks a change from one active value to another.
	KindUpdate TransitionKind = "update"
	// KindRemoval marks a machine becoming inactive (value removed).
	KindRemoval TransitionKind = "removal"
)

// Transition records a single applied state change for machine type S.
//
// Exited is nil when the machine was inactive before the change (insert);
// Entered is nil when the machine is inactive after it (removal). Both
// fields nil is an internal-consistency bug and is never published.
type Transition[S comparable] struct {
	Exited  *S
	Entered *S
}

// Kind reports the shape of the transition.
func (t Transition[S]) Kind() TransitionKind {
	switch {
	case t.Exited == nil:
		return KindInsert
	case t.Entered == nil:
		return KindRemoval
	default:
		return KindUpdate
	}
}
