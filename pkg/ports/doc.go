/*
Package ports defines the driven ports (interfaces) between the phase
orchestrator and its host runtime.

The orchestrator consumes the host only through the narrow Host interface:
typed singleton storage, a deferred command queue applied at a sync point,
per-type event channels, and fallible run-if-present execution of named
pipelines. This keeps the core decoupled from how cycles are scheduled and
lets hosts with their own execution runtime plug in directly.
*/
package ports
