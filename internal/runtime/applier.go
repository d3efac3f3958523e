package runtime

import "github.com/solis-lumine-vorago/phase/pkg/domain"

// Apply is the transition decision table. Given the current cell contents
// and a requested next value (nil requests removal), it returns the new
// cell contents and the event to publish, if any.
//
// The four effective shapes:
//
//	current	requested	result
//	Some(c)	Some(c)		no-op, no event
//	Some(c)	Some(v)		update, event {c, v}
//	None	Some(v)		insert, event {nil, v}
//	Some(c)	None		removal, event {c, nil}
//	None	None		no-op, no event
//
// Apply is pure: it copies values and never aliases its arguments.
func Apply[S comparable](current, requested *S) (*S, *domain.Transition[S]) {
	switch {
	case requested != nil && current != nil:
		if *current == *requested {
			c := *current
			return &c, nil
		}
		exited, entered := *current, *requested
		next := entered
		return &next, &domain.Transition[S]{Exited: &exited, Entered: &entered}
	case requested != nil:
		entered := *requested
		next := entered
		return &next, &domain.Transition[S]{Entered: &entered}
	case current != nil:
		exited := *current
		return nil, &domain.Transition[S]{Exited: &exited}
	default:
		return nil, nil
	}
}
