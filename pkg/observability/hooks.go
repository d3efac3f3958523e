package observability

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/solis-lumine-vorago/phase/pkg/domain"
)

// Combine fans every lifecycle event out to all given hook sets, in order.
// Use it to attach several observers (metrics, tracing, tests) to one
// orchestrator.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCycleBegin: func(ctx context.Context, ev *domain.CycleEvent) {
			for _, h := range hooks {
				if h.OnCycleBegin != nil {
					h.OnCycleBegin(ctx, ev)
				}
			}
		},
		OnCycleEnd: func(ctx context.Context, ev *domain.CycleEvent) {
			for _, h := range hooks {
				if h.OnCycleEnd != nil {
					h.OnCycleEnd(ctx, ev)
				}
			}
		},
		OnTransition: func(ctx context.Context, rec *domain.TransitionRecord) {
			for _, h := range hooks {
				if h.OnTransition != nil {
					h.OnTransition(ctx, rec)
				}
			}
		},
		OnDispatch: func(ctx context.Context, ev *domain.DispatchEvent) {
			for _, h := range hooks {
				if h.OnDispatch != nil {
					h.OnDispatch(ctx, ev)
				}
			}
		},
	}
}

// Recorder captures transitions and dispatch attempts as a flat, ordered
// text trace. Cycle IDs are not recorded, so traces are deterministic
// across runs.
//
// Safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Hooks returns the lifecycle hooks that feed the recorder.
func (r *Recorder) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, rec *domain.TransitionRecord) {
			r.append(fmt.Sprintf("transition %s %s %s->%s", rec.Machine, rec.Kind, rec.Exited, rec.Entered))
		},
		OnDispatch: func(_ context.Context, ev *domain.DispatchEvent) {
			r.append(fmt.Sprintf("dispatch %s %s ran=%t", ev.Stage, ev.Key, ev.Ran))
		},
	}
}

func (r *Recorder) append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

// Lines returns a copy of the recorded trace, oldest first.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Dump renders the trace as newline-terminated text, e.g. for golden files.
func (r *Recorder) Dump() []byte {
	lines := r.Lines()
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

// Reset drops the recorded trace.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
}
