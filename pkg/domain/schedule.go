package domain

// ScheduleLabel names a well-known pipeline registered in the host context.
type ScheduleLabel string

const (
	// StateTransition is the global orchestration pipeline, run once per
	// update cycle by the host runtime.
	StateTransition ScheduleLabel = "phase.StateTransition"

	// Startup is the one-shot pipeline the host runs before the first
	// regular cycle. Install chains an invocation of StateTransition to it
	// so the initial state is established early.
	Startup ScheduleLabel = "phase.Startup"
)

// Stage enumerates the five strictly ordered phases of the orchestration
// pipeline. The order of the constants is the execution order and is a hard
// invariant.
type Stage uint8

const (
	// StageRootTransitions applies pending requests of every root machine.
	StageRootTransitions Stage = iota + 1
	// StageDependentTransitions recomputes and applies every computed
	// machine, in registration order, strictly after all roots.
	StageDependentTransitions
	// StageExitPipelines dispatches exit pipelines for this cycle's events.
	StageExitPipelines
	// StageTransitionPipelines dispatches exact from->to pipelines.
	StageTransitionPipelines
	// StageEnterPipelines dispatches enter pipelines.
	StageEnterPipelines
)

func (s Stage) String() string {
	switch s {
	case StageRootTransitions:
		return "root_transitions"
	case StageDependentTransitions:
		return "dependent_transitions"
	case StageExitPipelines:
		return "exit_pipelines"
	case StageTransitionPipelines:
		return "transition_pipelines"
	case StageEnterPipelines:
		return "enter_pipelines"
	default:
		return "unknown"
	}
}
