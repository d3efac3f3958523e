package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solis-lumine-vorago/phase/internal/runtime"
	"github.com/solis-lumine-vorago/phase/pkg/adapters/memory"
	"github.com/solis-lumine-vorago/phase/pkg/domain"
	"github.com/solis-lumine-vorago/phase/pkg/ports"
)

type menuState string

const (
	menuMain   menuState = "main"
	menuInGame menuState = "in_game"
)

// pausedState is derived from menuState by a computed machine.
type pausedState bool

func newEngine(t *testing.T, opts ...runtime.EngineOption) (*runtime.Engine, *memory.World) {
	t.Helper()
	world := memory.NewWorld()
	engine := runtime.NewEngine(world, opts...)
	engine.Install(domain.Startup)
	return engine, world
}

// record appends a label to trace when the pipeline runs.
func record(trace *[]string, label string) ports.System {
	return func(ctx context.Context, host ports.Host) error {
		*trace = append(*trace, label)
		return nil
	}
}

func TestEngine_InstallIsIdempotent(t *testing.T) {
	world := memory.NewWorld()

	engine := runtime.NewEngine(world)
	engine.Install(domain.Startup)
	installed := world.SystemCount(domain.StateTransition)
	require.Greater(t, installed, 0)

	// Same engine, and an independent initializer sharing the world.
	engine.Install(domain.Startup)
	runtime.NewEngine(world).Install(domain.Startup)

	assert.Equal(t, installed, world.SystemCount(domain.StateTransition),
		"re-entrant setup must register exactly one orchestration pipeline")
	assert.Equal(t, 1, world.SystemCount(domain.Startup),
		"startup hook must carry exactly one one-shot invocation")
}

func TestEngine_RunCycleWithoutInstall(t *testing.T) {
	world := memory.NewWorld()
	engine := runtime.NewEngine(world)

	err := engine.RunCycle(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotInstalled)
}

func TestEngine_InstalledInBindsSharedHost(t *testing.T) {
	world := memory.NewWorld()

	_, ok := runtime.InstalledIn(world)
	require.False(t, ok, "a fresh host carries no engine")

	first := runtime.NewEngine(world)
	first.Install(domain.Startup)

	bound, ok := runtime.InstalledIn(world)
	require.True(t, ok)
	require.Same(t, first, bound)

	// Machines registered through the bound engine land in the shared
	// registry, so the installed stage systems orchestrate them.
	require.NoError(t, runtime.Register[menuState](bound))
	assert.Len(t, first.Machines(), 1)
}

func TestEngine_RegisterIsIdempotent(t *testing.T) {
	engine, _ := newEngine(t)

	require.NoError(t, runtime.Register[menuState](engine))
	require.NoError(t, runtime.Register[menuState](engine))
	assert.Len(t, engine.Machines(), 1)
}

func TestEngine_RegisterConflict(t *testing.T) {
	engine, _ := newEngine(t)

	require.NoError(t, runtime.Register[menuState](engine))
	err := runtime.RegisterComputed(engine, func(ports.Host) (menuState, bool) {
		return menuMain, true
	})
	assert.ErrorIs(t, err, domain.ErrMachineConflict)
}

func TestEngine_RequestValidation(t *testing.T) {
	engine, _ := newEngine(t)

	t.Run("unregistered machine", func(t *testing.T) {
		err := runtime.SetNext(engine, menuMain)
		assert.ErrorIs(t, err, domain.ErrUnknownMachine)
	})

	t.Run("computed machine rejects direct requests", func(t *testing.T) {
		require.NoError(t, runtime.RegisterComputed(engine, func(ports.Host) (pausedState, bool) {
			return false, true
		}))
		err := runtime.SetNext(engine, pausedState(true))
		assert.ErrorIs(t, err, domain.ErrComputedMachine)
	})
}

func TestEngine_TransitionScenarios(t *testing.T) {
	ctx := context.Background()

	// Scenario A: insert dispatches only the enter pipeline.
	t.Run("insert", func(t *testing.T) {
		engine, world := newEngine(t)
		require.NoError(t, runtime.Register[appState](engine))

		var trace []string
		world.AddSystems(domain.ExitKey(stateLoading), record(&trace, "exit"))
		world.AddSystems(domain.EnterKey(stateLoading), record(&trace, "enter"))
		world.AddSystems(domain.TransitionKey(stateLoading, stateLoading), record(&trace, "transition"))

		require.NoError(t, runtime.SetNext(engine, stateLoading))
		require.NoError(t, engine.RunCycle(ctx))

		assert.Equal(t, []string{"enter"}, trace)

		current, ok := runtime.Current[appState](world)
		require.True(t, ok)
		assert.Equal(t, stateLoading, current)

		event := runtime.LastTransition[appState](world)
		require.NotNil(t, event)
		assert.Nil(t, event.Exited)
		assert.Equal(t, stateLoading, *event.Entered)
	})

	// Scenario B: re-requesting the current value yields no event and no dispatch.
	t.Run("no-op", func(t *testing.T) {
		engine, world := newEngine(t)
		require.NoError(t, runtime.Register[appState](engine))
		require.NoError(t, runtime.SetNext(engine, stateLoading))
		require.NoError(t, engine.RunCycle(ctx))

		var trace []string
		world.AddSystems(domain.EnterKey(stateLoading), record(&trace, "enter"))

		require.NoError(t, runtime.SetNext(engine, stateLoading))
		require.NoError(t, engine.RunCycle(ctx))

		assert.Empty(t, trace)
		assert.Nil(t, runtime.LastTransition[appState](world))
	})

	// Scenario C: update dispatches exit, transition, enter in that order.
	t.Run("update", func(t *testing.T) {
		engine, world := newEngine(t)
		require.NoError(t, runtime.Register[appState](engine))
		require.NoError(t, runtime.SetNext(engine, stateLoading))
		require.NoError(t, engine.RunCycle(ctx))

		var trace []string
		world.AddSystems(domain.ExitKey(stateLoading), record(&trace, "exit(loading)"))
		world.AddSystems(domain.TransitionKey(stateLoading, stateReady), record(&trace, "transition(loading->ready)"))
		world.AddSystems(domain.EnterKey(stateReady), record(&trace, "enter(ready)"))

		require.NoError(t, runtime.SetNext(engine, stateReady))
		require.NoError(t, engine.RunCycle(ctx))

		assert.Equal(t, []string{"exit(loading)", "transition(loading->ready)", "enter(ready)"}, trace)

		event := runtime.LastTransition[appState](world)
		require.NotNil(t, event)
		assert.Equal(t, stateLoading, *event.Exited)
		assert.Equal(t, stateReady, *event.Entered)
	})

	// Scenario D: removal dispatches only the exit pipeline and empties the cell.
	t.Run("removal", func(t *testing.T) {
		engine, world := newEngine(t)
		require.NoError(t, runtime.Register[appState](engine))
		require.NoError(t, runtime.SetNext(engine, stateReady))
		require.NoError(t, engine.RunCycle(ctx))

		var trace []string
		world.AddSystems(domain.ExitKey(stateReady), record(&trace, "exit"))
		world.AddSystems(domain.EnterKey(stateReady), record(&trace, "enter"))

		require.NoError(t, runtime.RequestRemoval[appState](engine))
		require.NoError(t, engine.RunCycle(ctx))

		assert.Equal(t, []string{"exit"}, trace)

		_, ok := runtime.Current[appState](world)
		assert.False(t, ok, "cell must be empty after removal")

		event := runtime.LastTransition[appState](world)
		require.NotNil(t, event)
		assert.Equal(t, stateReady, *event.Exited)
		assert.Nil(t, event.Entered)
	})
}

func TestEngine_RequestsCoalesce(t *testing.T) {
	ctx := context.Background()

	t.Run("last set wins", func(t *testing.T) {
		engine, world := newEngine(t)
		require.NoError(t, runtime.Register[appState](engine))

		var trace []string
		world.AddSystems(domain.EnterKey(stateLoading), record(&trace, "enter(loading)"))
		world.AddSystems(domain.EnterKey(stateReady), record(&trace, "enter(ready)"))

		require.NoError(t, runtime.SetNext(engine, stateLoading))
		require.NoError(t, runtime.SetNext(engine, stateReady))
		require.NoError(t, engine.RunCycle(ctx))

		assert.Equal(t, []string{"enter(ready)"}, trace, "only the final request may apply")
	})

	t.Run("insert then remove collapses to a no-op", func(t *testing.T) {
		engine, world := newEngine(t)
		require.NoError(t, runtime.Register[appState](engine))

		var trace []string
		world.AddSystems(domain.EnterKey(stateLoading), record(&trace, "enter"))
		world.AddSystems(domain.ExitKey(stateLoading), record(&trace, "exit"))

		require.NoError(t, runtime.SetNext(engine, stateLoading))
		require.NoError(t, runtime.RequestRemoval[appState](engine))
		require.NoError(t, engine.RunCycle(ctx))

		assert.Empty(t, trace)
		assert.Nil(t, runtime.LastTransition[appState](world))
	})
}

func TestEngine_ComputedMachines(t *testing.T) {
	ctx := context.Background()

	t.Run("recompute observes root transitions of the same cycle", func(t *testing.T) {
		engine, world := newEngine(t)
		require.NoError(t, runtime.Register[menuState](engine))

		var sawRootEvent bool
		require.NoError(t, runtime.RegisterComputed(engine, func(host ports.Host) (pausedState, bool) {
			if ev := runtime.LastTransition[menuState](host); ev != nil {
				sawRootEvent = true
			}
			current, ok := runtime.Current[menuState](host)
			return pausedState(ok && current == menuInGame), ok
		}))

		require.NoError(t, runtime.SetNext(engine, menuInGame))
		require.NoError(t, engine.RunCycle(ctx))

		assert.True(t, sawRootEvent, "recompute must run after the root transition applied")

		paused, ok := runtime.Current[pausedState](world)
		require.True(t, ok)
		assert.Equal(t, pausedState(true), paused)
	})

	t.Run("computed pipelines dispatch in the same cycle", func(t *testing.T) {
		engine, world := newEngine(t)
		require.NoError(t, runtime.Register[menuState](engine))
		require.NoError(t, runtime.RegisterComputed(engine, func(host ports.Host) (pausedState, bool) {
			current, ok := runtime.Current[menuState](host)
			return pausedState(ok && current == menuInGame), ok
		}))

		var trace []string
		world.AddSystems(domain.EnterKey(menuInGame), record(&trace, "enter(menu)"))
		world.AddSystems(domain.EnterKey(pausedState(true)), record(&trace, "enter(paused)"))

		require.NoError(t, runtime.SetNext(engine, menuInGame))
		require.NoError(t, engine.RunCycle(ctx))

		assert.Equal(t, []string{"enter(menu)", "enter(paused)"}, trace)
	})

	t.Run("deactivation removes the derived cell", func(t *testing.T) {
		engine, world := newEngine(t)
		require.NoError(t, runtime.Register[menuState](engine))
		require.NoError(t, runtime.RegisterComputed(engine, func(host ports.Host) (pausedState, bool) {
			current, ok := runtime.Current[menuState](host)
			return pausedState(ok && current == menuInGame), ok
		}))

		require.NoError(t, runtime.SetNext(engine, menuInGame))
		require.NoError(t, engine.RunCycle(ctx))
		_, ok := runtime.Current[pausedState](world)
		require.True(t, ok)

		require.NoError(t, runtime.RequestRemoval[menuState](engine))
		require.NoError(t, engine.RunCycle(ctx))

		_, ok = runtime.Current[pausedState](world)
		assert.False(t, ok, "computed machine must deactivate with its parent")
	})
}

func TestEngine_PipelineFailureDoesNotAbortCycle(t *testing.T) {
	ctx := context.Background()
	failure := errors.New("exit pipeline exploded")

	var dispatchErrs []error
	hooks := domain.LifecycleHooks{
		OnDispatch: func(_ context.Context, ev *domain.DispatchEvent) {
			if ev.Err != nil {
				dispatchErrs = append(dispatchErrs, ev.Err)
			}
		},
	}

	world := memory.NewWorld()
	engine := runtime.NewEngine(world, runtime.WithLifecycleHooks(hooks))
	engine.Install(nil)
	require.NoError(t, runtime.Register[appState](engine))

	require.NoError(t, runtime.SetNext(engine, stateLoading))
	require.NoError(t, engine.RunCycle(ctx))

	var trace []string
	world.AddSystems(domain.ExitKey(stateLoading), func(ctx context.Context, host ports.Host) error {
		return failure
	})
	world.AddSystems(domain.EnterKey(stateReady), record(&trace, "enter"))

	require.NoError(t, runtime.SetNext(engine, stateReady))
	require.NoError(t, engine.RunCycle(ctx), "pipeline failures surface through hooks, not the cycle")

	assert.Equal(t, []string{"enter"}, trace, "later stages must still run")
	require.Len(t, dispatchErrs, 1)
	assert.ErrorIs(t, dispatchErrs[0], failure)

	current, ok := runtime.Current[appState](world)
	require.True(t, ok)
	assert.Equal(t, stateReady, current, "the applied mutation is not rolled back")
}

func TestEngine_StartupRunsPipelineOnce(t *testing.T) {
	ctx := context.Background()
	engine, world := newEngine(t)
	require.NoError(t, runtime.Register[appState](engine))
	require.NoError(t, runtime.SetNext(engine, stateLoading))

	var trace []string
	world.AddSystems(domain.EnterKey(stateLoading), record(&trace, "enter"))

	ran, err := world.TryRunSchedule(ctx, domain.Startup)
	require.NoError(t, err)
	require.True(t, ran)

	assert.Equal(t, []string{"enter"}, trace,
		"the startup hook must establish the initial state before the first regular cycle")
}

func TestEngine_EventsDrainEachCycle(t *testing.T) {
	ctx := context.Background()
	engine, world := newEngine(t)
	require.NoError(t, runtime.Register[appState](engine))

	require.NoError(t, runtime.SetNext(engine, stateLoading))
	require.NoError(t, engine.RunCycle(ctx))
	require.NotNil(t, runtime.LastTransition[appState](world))

	// A cycle with no transition drains the previous event.
	require.NoError(t, engine.RunCycle(ctx))
	assert.Nil(t, runtime.LastTransition[appState](world))
}

func TestEngine_Hooks(t *testing.T) {
	ctx := context.Background()

	var cycleIDs []string
	var transitions []domain.TransitionRecord
	hooks := domain.LifecycleHooks{
		OnCycleBegin: func(_ context.Context, ev *domain.CycleEvent) {
			cycleIDs = append(cycleIDs, ev.CycleID)
		},
		OnTransition: func(_ context.Context, rec *domain.TransitionRecord) {
			transitions = append(transitions, *rec)
		},
	}

	world := memory.NewWorld()
	engine := runtime.NewEngine(world, runtime.WithLifecycleHooks(hooks))
	engine.Install(nil)
	require.NoError(t, runtime.Register[appState](engine))

	require.NoError(t, runtime.SetNext(engine, stateLoading))
	require.NoError(t, engine.RunCycle(ctx))
	require.NoError(t, engine.RunCycle(ctx))

	require.Len(t, cycleIDs, 2)
	assert.NotEqual(t, cycleIDs[0], cycleIDs[1], "each cycle gets a fresh correlation ID")

	require.Len(t, transitions, 1)
	assert.Equal(t, cycleIDs[0], transitions[0].CycleID)
	assert.Equal(t, domain.KindInsert, transitions[0].Kind)
	assert.Equal(t, "loading", transitions[0].Entered)
	assert.Empty(t, transitions[0].Exited)
}
