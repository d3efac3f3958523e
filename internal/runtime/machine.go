package runtime

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/solis-lumine-vorago/phase/pkg/domain"
	"github.com/solis-lumine-vorago/phase/pkg/ports"
)

// Marker is the per-type ordering handle for a state machine's apply point
// in the orchestration pipeline. Every registered machine owns exactly one;
// markers of computed machines sort strictly after all root apply points
// and strictly before the exit stage.
type Marker struct {
	machine reflect.Type
}

// MarkerFor returns the ordering handle for machine type S.
func MarkerFor[S comparable]() Marker {
	return Marker{machine: reflect.TypeFor[S]()}
}

func (m Marker) String() string {
	return m.machine.String()
}

// requestKind is the three-valued shape of a pending request.
type requestKind uint8

const (
	requestNone requestKind = iota // nothing requested this cycle
	requestSet
	requestClear // request removal of the cell
)

type request[S comparable] struct {
	kind  requestKind
	value S
}

// machine is the type-erased view the engine drives. One implementation
// exists per registered state machine type.
type machine interface {
	marker() Marker
	computed() bool

	// applyPending consumes the coalesced pending request (roots only).
	applyPending(ctx context.Context, host ports.Host)
	// recompute derives and applies the next value (computed only).
	recompute(ctx context.Context, host ports.Host)
	// dispatch runs the registered pipeline for this cycle's latest event,
	// if both exist, for one of the three dispatch stages.
	dispatch(ctx context.Context, host ports.Host, stage domain.Stage)
	// clearEvents drops the previous cycle's events for this type.
	clearEvents(host ports.Host)
}

// stateMachine is the per-type bookkeeping for S: the coalesced pending
// request and, for computed machines, the recompute routine. The current
// value itself lives in the host's resource store so pipelines observe the
// post-transition state.
type stateMachine[S comparable] struct {
	eng *Engine
	mk  Marker

	// compute derives the requested value each cycle; nil for root machines.
	compute func(ports.Host) (S, bool)

	mu      sync.Mutex
	pending request[S]
}

func newStateMachine[S comparable](eng *Engine, compute func(ports.Host) (S, bool)) *stateMachine[S] {
	return &stateMachine[S]{eng: eng, mk: MarkerFor[S](), compute: compute}
}

func (m *stateMachine[S]) marker() Marker { return m.mk }

func (m *stateMachine[S]) computed() bool { return m.compute != nil }

// setNext records a pending request. Multiple writes before the cycle
// boundary coalesce to the last one.
func (m *stateMachine[S]) setNext(v S) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = request[S]{kind: requestSet, value: v}
}

// requestRemoval records a pending removal of the cell.
func (m *stateMachine[S]) requestRemoval() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = request[S]{kind: requestClear}
}

func (m *stateMachine[S]) take() request[S] {
	m.mu.Lock()
	defer m.mu.Unlock()
	req := m.pending
	m.pending = request[S]{}
	return req
}

func (m *stateMachine[S]) applyPending(ctx context.Context, host ports.Host) {
	req := m.take()
	if req.kind == requestNone {
		return
	}
	var requested *S
	if req.kind == requestSet {
		requested = &req.value
	}
	m.apply(ctx, host, requested)
}

func (m *stateMachine[S]) recompute(ctx context.Context, host ports.Host) {
	v, ok := m.compute(host)
	var requested *S
	if ok {
		requested = &v
	}
	m.apply(ctx, host, requested)
}

// apply runs the decision table against the live cell and commits the
// outcome: the cell mutation goes through the deferred command queue, the
// event onto the per-type channel.
func (m *stateMachine[S]) apply(ctx context.Context, host ports.Host, requested *S) {
	current := resourcePtr[S](host)
	next, ev := Apply(current, requested)
	if ev == nil {
		return
	}
	if ev.Exited == nil && ev.Entered == nil {
		panic(fmt.Sprintf("phase: empty transition event for %v", m.mk))
	}

	topic := m.mk.machine
	if next != nil {
		value := *next
		host.Defer(func(rs ports.ResourceStore) { rs.InsertResource(topic, value) })
	} else {
		host.Defer(func(rs ports.ResourceStore) { rs.RemoveResource(topic) })
	}
	host.Publish(topic, *ev)

	m.eng.observeTransition(ctx, &domain.TransitionRecord{
		Machine: m.mk.String(),
		Kind:    ev.Kind(),
		Exited:  formatValue(ev.Exited),
		Entered: formatValue(ev.Entered),
	})
}

func (m *stateMachine[S]) dispatch(ctx context.Context, host ports.Host, stage domain.Stage) {
	ev := LastTransition[S](host)
	if ev == nil {
		return
	}
	if ev.Exited == nil && ev.Entered == nil {
		panic(fmt.Sprintf("phase: empty transition event reached dispatch for %v", m.mk))
	}

	var key domain.PipelineKey
	switch stage {
	case domain.StageExitPipelines:
		if ev.Exited == nil {
			return
		}
		key = domain.ExitKey(*ev.Exited)
	case domain.StageTransitionPipelines:
		if ev.Exited == nil || ev.Entered == nil {
			return
		}
		key = domain.TransitionKey(*ev.Exited, *ev.Entered)
	case domain.StageEnterPipelines:
		if ev.Entered == nil {
			return
		}
		key = domain.EnterKey(*ev.Entered)
	default:
		return
	}

	ran, err := host.TryRunSchedule(ctx, key)
	m.eng.observeDispatch(ctx, &domain.DispatchEvent{
		Stage: stage,
		Key:   key,
		Ran:   ran,
		Err:   err,
	})
}

func (m *stateMachine[S]) clearEvents(host ports.Host) {
	host.ClearEvents(m.mk.machine)
}

// resourcePtr reads the live cell for S, nil when the machine is inactive.
func resourcePtr[S comparable](host ports.ResourceStore) *S {
	v, ok := host.Resource(reflect.TypeFor[S]())
	if !ok {
		return nil
	}
	s := v.(S)
	return &s
}

// Current returns the active value of machine type S, if any.
func Current[S comparable](host ports.ResourceStore) (S, bool) {
	v, ok := host.Resource(reflect.TypeFor[S]())
	if !ok {
		var zero S
		return zero, false
	}
	return v.(S), true
}

// LastTransition returns the most recent transition event of type S
// published this cycle, discarding earlier ones, or nil if no transition
// occurred.
func LastTransition[S comparable](host ports.EventBus) *domain.Transition[S] {
	events := host.Events(reflect.TypeFor[S]())
	if len(events) == 0 {
		return nil
	}
	ev := events[len(events)-1].(domain.Transition[S])
	return &ev
}

func formatValue[S any](v *S) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", *v)
}
