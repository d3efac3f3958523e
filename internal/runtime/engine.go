package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solis-lumine-vorago/phase/internal/logging"
	"github.com/solis-lumine-vorago/phase/pkg/domain"
	"github.com/solis-lumine-vorago/phase/pkg/ports"
)

// Engine is the core transition orchestrator. It owns the per-type machine
// bookkeeping and contributes the five-stage orchestration pipeline to the
// host's schedule registry.
type Engine struct {
	host   ports.Host
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	trace  bool

	mu       sync.Mutex
	machines []machine
	byType   map[Marker]machine

	cycleMu sync.Mutex
	cycleID string
	began   time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithTrace enables debug logging of every dispatch attempt.
func WithTrace(trace bool) EngineOption {
	return func(e *Engine) {
		e.trace = trace
	}
}

// NewEngine creates an engine bound to a host context.
func NewEngine(host ports.Host, opts ...EngineOption) *Engine {
	e := &Engine{
		host:   host,
		logger: logging.NewNop(),
		byType: make(map[Marker]machine),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// engineType keys the installed engine in the host's resource store, so
// later initializers sharing the host can find it through InstalledIn.
var engineType = reflect.TypeOf((*Engine)(nil))

// InstalledIn returns the engine that installed the orchestration pipeline
// in host, if any. Initializers sharing a host must bind to it instead of
// installing a second engine: the machine registry lives in the engine,
// and the installed stage systems only orchestrate its machines.
func InstalledIn(host ports.ResourceStore) (*Engine, bool) {
	v, ok := host.Resource(engineType)
	if !ok {
		return nil, false
	}
	return v.(*Engine), true
}

// Install registers the orchestration pipeline in the host, chaining the
// five stages in strict sequence, and stores the engine in the host so
// InstalledIn can recover it. Idempotent: if the pipeline already exists
// the call is a no-op. When startup is non-nil, a one-shot invocation of
// the pipeline is appended to that schedule so the first meaningful state
// is established before the first regular cycle.
func (e *Engine) Install(startup any) {
	if e.host.ContainsSchedule(domain.StateTransition) {
		e.logger.Debug("orchestration pipeline already installed")
		return
	}

	e.host.AddSystems(domain.StateTransition,
		e.beginCycle,
		e.stageApply(domain.StageRootTransitions),
		e.stageApply(domain.StageDependentTransitions),
		e.stageDispatch(domain.StageExitPipelines),
		e.stageDispatch(domain.StageTransitionPipelines),
		e.stageDispatch(domain.StageEnterPipelines),
		e.endCycle,
	)

	if startup != nil {
		e.host.AddSystems(startup, func(ctx context.Context, host ports.Host) error {
			_, err := host.TryRunSchedule(ctx, domain.StateTransition)
			return err
		})
	}

	e.host.InsertResource(engineType, e)
	e.logger.Info("orchestration pipeline installed", "startup", startup != nil)
}

// RunCycle runs the orchestration pipeline once. Convenience for hosts
// without their own scheduler.
func (e *Engine) RunCycle(ctx context.Context) error {
	ran, err := e.host.TryRunSchedule(ctx, domain.StateTransition)
	if !ran {
		return domain.ErrNotInstalled
	}
	return err
}

// Machines returns the markers of all registered machines, roots first in
// registration order, then computed machines in registration order.
func (e *Engine) Machines() []Marker {
	var roots, deps []Marker
	for _, m := range e.snapshot() {
		if m.computed() {
			deps = append(deps, m.marker())
		} else {
			roots = append(roots, m.marker())
		}
	}
	return append(roots, deps...)
}

func (e *Engine) snapshot() []machine {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]machine, len(e.machines))
	copy(out, e.machines)
	return out
}

func (e *Engine) register(m machine) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.byType[m.marker()]; ok {
		if existing.computed() != m.computed() {
			return fmt.Errorf("%w: %v", domain.ErrMachineConflict, m.marker())
		}
		e.logger.Debug("machine already registered", "machine", m.marker().String())
		return nil
	}
	e.byType[m.marker()] = m
	e.machines = append(e.machines, m)
	e.logger.Info("machine registered", "machine", m.marker().String(), "computed", m.computed())
	return nil
}

func (e *Engine) lookup(mk Marker) (machine, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.byType[mk]
	return m, ok
}

// beginCycle opens a new cycle: drains the previous cycle's events for
// every machine and stamps a fresh correlation ID.
func (e *Engine) beginCycle(ctx context.Context, host ports.Host) error {
	e.cycleMu.Lock()
	e.cycleID = uuid.NewString()
	e.began = time.Now()
	id, began := e.cycleID, e.began
	e.cycleMu.Unlock()

	for _, m := range e.snapshot() {
		m.clearEvents(host)
	}

	if e.hooks.OnCycleBegin != nil {
		e.hooks.OnCycleBegin(ctx, &domain.CycleEvent{CycleID: id, Began: began})
	}
	e.logger.Debug("cycle begin", "cycle", id)
	return nil
}

func (e *Engine) endCycle(ctx context.Context, _ ports.Host) error {
	e.cycleMu.Lock()
	id := e.cycleID
	duration := time.Since(e.began)
	began := e.began
	e.cycleMu.Unlock()

	if e.hooks.OnCycleEnd != nil {
		e.hooks.OnCycleEnd(ctx, &domain.CycleEvent{CycleID: id, Began: began, Duration: duration})
	}
	e.logger.Debug("cycle end", "cycle", id, "duration", duration)
	return nil
}

// stageApply builds the system for one of the two applier stages. Roots
// apply their coalesced pending request; computed machines derive theirs,
// in registration order, strictly after every root. Commands flush after
// each machine so later recomputations and every pipeline observe the
// post-transition state.
func (e *Engine) stageApply(stage domain.Stage) ports.System {
	dependent := stage == domain.StageDependentTransitions
	return func(ctx context.Context, host ports.Host) error {
		for _, m := range e.snapshot() {
			if m.computed() != dependent {
				continue
			}
			if dependent {
				m.recompute(ctx, host)
			} else {
				m.applyPending(ctx, host)
			}
			host.FlushCommands()
		}
		return nil
	}
}

// stageDispatch builds the system for one of the three dispatch stages.
// Order across machine types within a stage is unobservable by contract;
// the engine happens to use registration order.
func (e *Engine) stageDispatch(stage domain.Stage) ports.System {
	return func(ctx context.Context, host ports.Host) error {
		for _, m := range e.snapshot() {
			m.dispatch(ctx, host, stage)
		}
		return nil
	}
}

func (e *Engine) currentCycleID() string {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()
	return e.cycleID
}

func (e *Engine) observeTransition(ctx context.Context, rec *domain.TransitionRecord) {
	rec.CycleID = e.currentCycleID()
	e.logger.Info("state transition",
		"cycle", rec.CycleID,
		"machine", rec.Machine,
		"kind", string(rec.Kind),
		"exited", rec.Exited,
		"entered", rec.Entered,
	)
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, rec)
	}
}

func (e *Engine) observeDispatch(ctx context.Context, ev *domain.DispatchEvent) {
	ev.CycleID = e.currentCycleID()
	if ev.Err != nil {
		// The failure surfaced from inside the dispatched pipeline; the
		// cycle's remaining stages still run and the applied cell mutation
		// stands.
		e.logger.Error("pipeline failed",
			"cycle", ev.CycleID,
			"stage", ev.Stage.String(),
			"pipeline", ev.Key.String(),
			"err", ev.Err,
		)
	} else if e.trace {
		e.logger.Debug("dispatch",
			"cycle", ev.CycleID,
			"stage", ev.Stage.String(),
			"pipeline", ev.Key.String(),
			"ran", ev.Ran,
		)
	}
	if e.hooks.OnDispatch != nil {
		e.hooks.OnDispatch(ctx, ev)
	}
}

// Register adds a root state machine for type S. Root machines are driven
// solely by pending requests. Re-registering the same type is an
// idempotent no-op.
func Register[S comparable](e *Engine) error {
	return e.register(newStateMachine[S](e, nil))
}

// RegisterComputed adds a dependent state machine for type S. Its value is
// derived once per cycle by recompute, which runs strictly after every
// root transition has been applied and is free to read their events
// through LastTransition. A false second return deactivates the machine.
func RegisterComputed[S comparable](e *Engine, recompute func(ports.Host) (S, bool)) error {
	if recompute == nil {
		return fmt.Errorf("recompute routine is required for computed machine %v", MarkerFor[S]())
	}
	return e.register(newStateMachine[S](e, recompute))
}

// SetNext requests a transition of machine S to v at the next cycle
// boundary. Multiple requests in one cycle coalesce to the last.
func SetNext[S comparable](e *Engine, v S) error {
	m, err := rootMachine[S](e)
	if err != nil {
		return err
	}
	m.setNext(v)
	return nil
}

// RequestRemoval requests deactivation of machine S at the next cycle
// boundary.
func RequestRemoval[S comparable](e *Engine) error {
	m, err := rootMachine[S](e)
	if err != nil {
		return err
	}
	m.requestRemoval()
	return nil
}

func rootMachine[S comparable](e *Engine) (*stateMachine[S], error) {
	mk := MarkerFor[S]()
	m, ok := e.lookup(mk)
	if !ok {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnknownMachine, mk)
	}
	if m.computed() {
		return nil, fmt.Errorf("%w: %v", domain.ErrComputedMachine, mk)
	}
	return m.(*stateMachine[S]), nil
}
