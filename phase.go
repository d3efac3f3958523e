package phase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solis-lumine-vorago/phase/internal/config"
	"github.com/solis-lumine-vorago/phase/internal/logging"
	"github.com/solis-lumine-vorago/phase/internal/runtime"
	"github.com/solis-lumine-vorago/phase/pkg/adapters/memory"
	"github.com/solis-lumine-vorago/phase/pkg/domain"
	"github.com/solis-lumine-vorago/phase/pkg/ports"
)

// System is re-exported for convenience when composing pipelines.
type System = ports.System

// Orchestrator is the high-level entry point for the phase library.
// It wraps the internal engine and the host context behind a simplified API.
type Orchestrator struct {
	host    ports.Host
	engine  *runtime.Engine
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	trace   bool
	startup bool
	fromEnv bool
}

// Option defines a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithHost injects a custom host context, bypassing the default in-memory
// world.
func WithHost(host ports.Host) Option {
	return func(o *Orchestrator) {
		o.host = host
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithoutStartupRun disables chaining the orchestration pipeline after the
// startup hook. The first transitions then apply on the first regular cycle.
func WithoutStartupRun() Option {
	return func(o *Orchestrator) {
		o.startup = false
	}
}

// FromEnv reads settings (log level, trace, event channel capacity) from
// the process environment. Explicit options take precedence.
func FromEnv() Option {
	return func(o *Orchestrator) {
		o.fromEnv = true
	}
}

// New initializes a new Orchestrator and installs the orchestration
// pipeline into the host context. Several initializers may share one host:
// when the host already carries an installed engine, New binds to it, so
// machines registered through any of the orchestrators share one registry.
// The first initializer's logger, hooks and startup choice stay in effect
// for the shared engine.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{startup: true}
	for _, opt := range opts {
		opt(o)
	}

	var cfg config.Config
	if o.fromEnv {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		o.trace = cfg.Trace
	}

	if o.logger == nil {
		if o.fromEnv {
			o.logger = logging.New(logging.ParseLevel(cfg.LogLevel))
		} else {
			o.logger = logging.NewNop()
		}
	}

	if o.host == nil {
		var worldOpts []memory.Option
		if cfg.EventCapacity > 0 {
			worldOpts = append(worldOpts, memory.WithEventCapacity(cfg.EventCapacity))
		}
		o.host = memory.NewWorld(worldOpts...)
	}

	if existing, ok := runtime.InstalledIn(o.host); ok {
		o.engine = existing
		return o, nil
	}

	o.engine = runtime.NewEngine(o.host,
		runtime.WithLogger(o.logger),
		runtime.WithLifecycleHooks(o.hooks),
		runtime.WithTrace(o.trace),
	)

	var startup any
	if o.startup {
		startup = domain.Startup
	}
	o.engine.Install(startup)

	return o, nil
}

// World returns the host context the orchestrator executes against.
func (o *Orchestrator) World() ports.Host {
	return o.host
}

// AddSystems registers systems under a pipeline label, creating the
// pipeline lazily. Use OnEnter, OnExit and OnTransition to build keys for
// the transition pipelines; any comparable label is accepted for custom
// pipelines.
func (o *Orchestrator) AddSystems(label any, systems ...System) {
	o.host.AddSystems(label, systems...)
}

// RunStartup runs the startup pipeline once. Hosts with their own
// scheduler run the domain.Startup schedule themselves instead.
func (o *Orchestrator) RunStartup(ctx context.Context) error {
	_, err := o.host.TryRunSchedule(ctx, domain.Startup)
	return err
}

// RunCycle runs the orchestration pipeline once. Hosts with their own
// scheduler run the domain.StateTransition schedule themselves instead.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	return o.engine.RunCycle(ctx)
}

// Machines lists the registered state machine types, roots first.
func (o *Orchestrator) Machines() []string {
	markers := o.engine.Machines()
	out := make([]string, len(markers))
	for i, mk := range markers {
		out[i] = mk.String()
	}
	return out
}

// Register adds a root state machine for the comparable value type S.
// Root machines change only through SetNext and Remove requests.
// Re-registering the same type is an idempotent no-op.
func Register[S comparable](o *Orchestrator) error {
	return runtime.Register[S](o.engine)
}

// RegisterWithInitial registers S and queues v as its first value, so the
// machine activates (and its enter pipeline fires) on the startup run.
func RegisterWithInitial[S comparable](o *Orchestrator, v S) error {
	if err := runtime.Register[S](o.engine); err != nil {
		return err
	}
	return runtime.SetNext(o.engine, v)
}

// RegisterComputed adds a dependent state machine for type S. Once per
// cycle, strictly after every root transition has been applied, recompute
// derives the machine's next value from the host context, typically by
// reading parent events via LastTransition. Returning false deactivates
// the machine.
func RegisterComputed[S comparable](o *Orchestrator, recompute func(ports.Host) (S, bool)) error {
	return runtime.RegisterComputed(o.engine, recompute)
}

// SetNext requests a transition of machine S to v at the next cycle
// boundary. Requests written in the same cycle coalesce: only the last one
// is applied. Requesting the current value is a free no-op.
func SetNext[S comparable](o *Orchestrator, v S) error {
	return runtime.SetNext(o.engine, v)
}

// Remove requests deactivation of machine S at the next cycle boundary.
func Remove[S comparable](o *Orchestrator) error {
	return runtime.RequestRemoval[S](o.engine)
}

// Current returns the active value of machine S, if any.
func Current[S comparable](o *Orchestrator) (S, bool) {
	return runtime.Current[S](o.host)
}

// LastTransition returns the most recent transition event of machine S
// published this cycle, or nil if none occurred.
func LastTransition[S comparable](o *Orchestrator) *domain.Transition[S] {
	return runtime.LastTransition[S](o.host)
}

// CurrentIn reads the active value of machine S directly from a host
// context. Useful inside systems and recompute routines, which receive the
// host rather than the Orchestrator.
func CurrentIn[S comparable](host ports.ResourceStore) (S, bool) {
	return runtime.Current[S](host)
}

// LastTransitionIn reads the latest transition event of machine S directly
// from a host context. Recompute routines use it to observe their parents'
// root transitions.
func LastTransitionIn[S comparable](host ports.EventBus) *domain.Transition[S] {
	return runtime.LastTransition[S](host)
}

// OnEnter keys the pipeline run whenever machine S enters v.
func OnEnter[S comparable](v S) domain.PipelineKey {
	return domain.EnterKey(v)
}

// OnExit keys the pipeline run whenever machine S exits v.
func OnExit[S comparable](v S) domain.PipelineKey {
	return domain.ExitKey(v)
}

// OnTransition keys the pipeline run only when machine S exits from AND
// enters to, after the exit pipeline and before the enter pipeline.
func OnTransition[S comparable](from, to S) domain.PipelineKey {
	return domain.TransitionKey(from, to)
}
