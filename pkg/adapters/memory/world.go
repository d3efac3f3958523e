package memory

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/solis-lumine-vorago/phase/pkg/ports"
)

// World is the in-process implementation of ports.Host: typed singleton
// resources, a deferred command queue, per-type event channels and a
// registry of named pipelines.
//
// Safe for concurrent use. Pipelines run without any World lock held, so
// systems may freely call back into the World (including running nested
// schedules).
type World struct {
	mu        sync.RWMutex
	resources map[reflect.Type]any
	events    map[reflect.Type][]any
	schedules map[any][]ports.System

	cmdMu    sync.Mutex
	commands []func(ports.ResourceStore)

	eventCap int
}

// Option configures a World.
type Option func(*World)

// WithEventCapacity sets the initial capacity of each event channel.
func WithEventCapacity(n int) Option {
	return func(w *World) {
		if n > 0 {
			w.eventCap = n
		}
	}
}

// NewWorld creates an empty World.
func NewWorld(opts ...Option) *World {
	w := &World{
		resources: make(map[reflect.Type]any),
		events:    make(map[reflect.Type][]any),
		schedules: make(map[any][]ports.System),
		eventCap:  4,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Resource returns the singleton stored under key.
func (w *World) Resource(key reflect.Type) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.resources[key]
	return v, ok
}

// InsertResource stores or replaces the singleton under key.
func (w *World) InsertResource(key reflect.Type, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resources[key] = value
}

// RemoveResource deletes the singleton under key.
func (w *World) RemoveResource(key reflect.Type) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.resources, key)
}

// Defer enqueues a mutation for the next flush.
func (w *World) Defer(cmd func(ports.ResourceStore)) {
	if cmd == nil {
		return
	}
	w.cmdMu.Lock()
	defer w.cmdMu.Unlock()
	w.commands = append(w.commands, cmd)
}

// FlushCommands applies queued mutations in FIFO order. Mutations enqueued
// while flushing are applied in the same flush.
func (w *World) FlushCommands() {
	for {
		w.cmdMu.Lock()
		if len(w.commands) == 0 {
			w.cmdMu.Unlock()
			return
		}
		batch := w.commands
		w.commands = nil
		w.cmdMu.Unlock()

		for _, cmd := range batch {
			cmd(w)
		}
	}
}

// Publish appends an event to the topic's channel.
func (w *World) Publish(topic reflect.Type, event any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.events[topic]
	if !ok {
		ch = make([]any, 0, w.eventCap)
	}
	w.events[topic] = append(ch, event)
}

// Events returns the topic's channel contents, oldest first.
func (w *World) Events(topic reflect.Type) []any {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ch := w.events[topic]
	// Copy so callers never observe later publishes through the slice.
	out := make([]any, len(ch))
	copy(out, ch)
	return out
}

// ClearEvents drops all events of a topic.
func (w *World) ClearEvents(topic reflect.Type) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.events, topic)
}

// AddSystems appends systems to the pipeline under label, creating the
// pipeline lazily on first reference. A call without systems creates
// nothing, so ContainsSchedule keeps meaning "has systems".
func (w *World) AddSystems(label any, systems ...ports.System) {
	if len(systems) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.schedules[label] = append(w.schedules[label], systems...)
}

// ContainsSchedule reports whether a pipeline exists under label.
func (w *World) ContainsSchedule(label any) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.schedules[label]
	return ok
}

// SystemCount returns the number of systems registered under label.
// Intended for introspection and tests.
func (w *World) SystemCount(label any) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.schedules[label])
}

// TryRunSchedule runs the pipeline under label if one exists. Systems run
// in registration order; a failing system does not stop the ones after it,
// and the returned error joins every failure.
func (w *World) TryRunSchedule(ctx context.Context, label any) (bool, error) {
	w.mu.RLock()
	registered, ok := w.schedules[label]
	systems := make([]ports.System, len(registered))
	copy(systems, registered)
	w.mu.RUnlock()

	if !ok {
		return false, nil
	}

	var errs []error
	for _, sys := range systems {
		if err := sys(ctx, w); err != nil {
			errs = append(errs, err)
		}
	}
	return true, errors.Join(errs...)
}

var _ ports.Host = (*World)(nil)
