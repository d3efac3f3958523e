package ports

import (
	"context"
	"reflect"
)

// System is a single unit of work executed against the host context.
type System func(ctx context.Context, host Host) error

// ResourceStore provides typed singleton storage keyed by value type.
// At most one resource exists per type.
type ResourceStore interface {
	// Resource returns the singleton stored under key, if any.
	Resource(key reflect.Type) (any, bool)
	// InsertResource stores or replaces the singleton under key.
	InsertResource(key reflect.Type, value any)
	// RemoveResource deletes the singleton under key, if present.
	RemoveResource(key reflect.Type)
}

// CommandQueue buffers deferred mutations against the resource store and
// applies them at a defined synchronization point. Deferring instead of
// writing directly preserves the single-writer discipline without locks
// around the hot path.
type CommandQueue interface {
	// Defer enqueues a mutation to run at the next flush.
	Defer(cmd func(ResourceStore))
	// FlushCommands applies all queued mutations in FIFO order, including
	// any enqueued while flushing.
	FlushCommands()
}

// EventBus is a typed publish/subscribe primitive with one FIFO channel per
// topic type. Channels hold the events of the current cycle; the
// orchestrator clears each machine's channel at the cycle boundary.
type EventBus interface {
	// Publish appends an event to the topic's channel.
	Publish(topic reflect.Type, event any)
	// Events returns the topic's channel contents, oldest first. The
	// returned slice must not be mutated by the caller.
	Events(topic reflect.Type) []any
	// ClearEvents drops all events of a topic.
	ClearEvents(topic reflect.Type)
}

// ScheduleRunner registers and runs named pipelines. Labels are compared by
// equality and may be any comparable value; the orchestrator uses
// domain.ScheduleLabel for well-known pipelines and domain.PipelineKey for
// enter/exit/transition pipelines.
type ScheduleRunner interface {
	// AddSystems appends systems to the pipeline under label, creating the
	// pipeline lazily on first reference.
	AddSystems(label any, systems ...System)
	// ContainsSchedule reports whether a pipeline exists under label.
	ContainsSchedule(label any) bool
	// TryRunSchedule runs the pipeline under label if one exists. A missing
	// pipeline is not an error: ran is false and err is nil. Systems run in
	// registration order; a failing system does not stop the ones after it,
	// and err joins every failure raised.
	TryRunSchedule(ctx context.Context, label any) (ran bool, err error)
}

// Host is the shared mutable context the orchestrator executes against. The
// in-process implementation lives in pkg/adapters/memory; hosts with their
// own scheduling runtime can satisfy this interface directly.
type Host interface {
	ResourceStore
	CommandQueue
	EventBus
	ScheduleRunner
}
