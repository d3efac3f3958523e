package domain

import (
	"context"
	"time"
)

// CycleEvent describes one run of the orchestration pipeline.
type CycleEvent struct {
	CycleID  string
	Began    time.Time
	Duration time.Duration // zero until the cycle ends
}

// TransitionRecord is the type-erased view of an applied transition,
// suitable for logging and metrics. Exited and Entered are the formatted
// state values, empty when the corresponding side is absent.
type TransitionRecord struct {
	CycleID string
	Machine string
	Kind    TransitionKind
	Exited  string
	Entered string
}

// DispatchEvent describes one run-if-present attempt against a registered
// pipeline. Ran is false when no pipeline exists under the key, which is a
// legal no-op. Err carries a failure raised inside the dispatched pipeline;
// such failures never abort the remaining stages of the cycle.
type DispatchEvent struct {
	CycleID string
	Stage   Stage
	Key     PipelineKey
	Ran     bool
	Err     error
}

// LifecycleHooks defines optional callbacks for orchestrator observability.
// Nil callbacks are skipped. Hooks run synchronously inside the cycle and
// must be fast.
type LifecycleHooks struct {
	OnCycleBegin func(context.Context, *CycleEvent)
	OnCycleEnd   func(context.Context, *CycleEvent)
	OnTransition func(context.Context, *TransitionRecord)
	OnDispatch   func(context.Context, *DispatchEvent)
}
