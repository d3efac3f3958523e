package domain

import "errors"

var (
	// ErrUnknownMachine is returned when a request targets a state machine
	// type that was never registered with the orchestrator.
	ErrUnknownMachine = errors.New("state machine type not registered")

	// ErrMachineConflict is returned when a type is re-registered with a
	// different role (root vs. computed) than its original registration.
	// Re-registering with the same role is an idempotent no-op.
	ErrMachineConflict = errors.New("state machine type already registered with a different role")

	// ErrComputedMachine is returned when a pending request is written for
	// a computed machine, whose value is derived by its recompute routine.
	ErrComputedMachine = errors.New("computed state machines do not accept direct requests")

	// ErrNotInstalled is returned when a cycle is run against a host whose
	// orchestration pipeline was never installed.
	ErrNotInstalled = errors.New("orchestration pipeline not installed")
)
