/*
Package phase is a deterministic finite-state transition orchestrator. It
runs named pipelines of systems against a shared mutable context once per
update cycle, driven by the transitions of independently registered,
strongly-typed state machines.

Any comparable value type can act as a state machine. Machines request
their next value during a cycle; at the cycle boundary the orchestrator
applies the last request of each machine exactly once, publishes a
transition event, and dispatches the pipelines registered for the
transition's shape.

# Cycle order

Every cycle executes five strictly ordered stages:

 1. Root transitions: apply the coalesced pending request of every root machine.
 2. Dependent transitions: recompute every computed machine, strictly after all roots.
 3. Exit pipelines: for every transition that left a value.
 4. Transition pipelines: for every exact from->to pair.
 5. Enter pipelines: for every transition that entered a value.

Missing pipeline registrations are silently skipped. A failure inside a
dispatched pipeline is surfaced through the logger and lifecycle hooks but
never aborts the remaining stages.

# Usage

	type AppState string

	const (
		Loading AppState = "loading"
		Ready   AppState = "ready"
	)

	orc, err := phase.New()
	if err != nil {
		log.Fatal(err)
	}

	_ = phase.RegisterWithInitial(orc, Loading)

	orc.AddSystems(phase.OnEnter(Ready), func(ctx context.Context, host ports.Host) error {
		fmt.Println("ready")
		return nil
	})

	// Host loop: startup once, then one cycle per frame/tick.
	_ = orc.RunStartup(ctx)
	for running {
		_ = phase.SetNext(orc, nextValue)
		_ = orc.RunCycle(ctx)
	}

Computed machines derive their value from other machines' transitions and
are recomputed once per cycle, after every root transition has applied:

	_ = phase.RegisterComputed(orc, func(host ports.Host) (Paused, bool) {
		app, ok := phase.CurrentIn[AppState](host)
		return Paused(ok && app == InGame), ok
	})

The default host is the in-process world in pkg/adapters/memory. Hosts
with their own scheduling runtime implement ports.Host and run the
domain.Startup and domain.StateTransition schedules themselves.
*/
package phase
