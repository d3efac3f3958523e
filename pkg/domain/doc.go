/*
Package domain defines the value types shared by the phase orchestrator and
its hosts: transition events, pipeline keys, stage and schedule labels,
lifecycle hooks and sentinel errors.

These types carry no behavior beyond identity and formatting; the engine in
internal/runtime owns the semantics.
*/
package domain
