package stepper

import "errors"

// Integration failures. Both are terminal for the current propagation
// and surfaced to the caller, never retried at a higher level.
var (
	// ErrStepSizeStalled reports that the required step size
	// underflowed the configured cutoff before the error estimate
	// converged.
	ErrStepSizeStalled = errors.New("stepper: step size stalled below cutoff")

	// ErrStepSizeAdjustmentFailed reports that the bounded number of
	// step-size trials was exhausted.
	ErrStepSizeAdjustmentFailed = errors.New("stepper: step size adjustment failed")

	// ErrNoValidExtension reports that arbitration found no physics
	// extension willing to integrate the step.
	ErrNoValidExtension = errors.New("stepper: no valid extension for step")

	// ErrStepInvalid reports that the winning extension rejected the
	// step during finalization (e.g. the particle would be stopped).
	ErrStepInvalid = errors.New("stepper: extension rejected step")
)
