// Package errors defines the error taxonomy used by the deploy orchestrator.
//
// The orchestrator distinguishes four outcomes: configuration that is simply
// absent (skip the dependent work), input that is present but malformed
// (warn and skip the derivation), an apply failure (fatal, abort the run),
// and a rollout timeout (fatal to overall success, but the remaining
// workloads are still gated for diagnostic completeness).
package errors

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates that the run configuration could not be
// loaded or failed validation. The process exits before any stage runs.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrConfigAbsent indicates that the inputs for an optional piece of
// configuration are unset. Dependent work is skipped with a notice;
// this never fails a run.
var ErrConfigAbsent = errors.New("configuration absent")

// ErrMalformedInput indicates that a structured input was present but could
// not be parsed. The dependent derivation is skipped with a warning.
var ErrMalformedInput = errors.New("malformed input")

// ErrApplyFailed indicates that reconciling manifests against the cluster
// failed. This is fatal: the run must abort before the readiness gate.
var ErrApplyFailed = errors.New("apply failed")

// ErrRolloutTimeout indicates that a workload did not converge within its
// readiness budget. Fatal to the run's success status, but the gate keeps
// checking remaining workloads before the run exits non-zero.
var ErrRolloutTimeout = errors.New("rollout timeout")

// IsInvalidConfig reports whether err marks an unloadable or invalid run
// configuration.
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsConfigAbsent reports whether err marks absent optional configuration.
func IsConfigAbsent(err error) bool {
	return errors.Is(err, ErrConfigAbsent)
}

// IsMalformedInput reports whether err marks unparseable structured input.
func IsMalformedInput(err error) bool {
	return errors.Is(err, ErrMalformedInput)
}

// IsApplyFailed reports whether err is a fatal apply failure.
func IsApplyFailed(err error) bool {
	return errors.Is(err, ErrApplyFailed)
}

// IsRolloutTimeout reports whether err is a workload convergence timeout.
func IsRolloutTimeout(err error) bool {
	return errors.Is(err, ErrRolloutTimeout)
}

// IsFatal reports whether err must fail the whole run.
func IsFatal(err error) bool {
	return IsApplyFailed(err) || IsRolloutTimeout(err)
}

// WrapInvalidConfig wraps err as an invalid run configuration.
func WrapInvalidConfig(err error) error {
	if err == nil {
		return nil
	}
	if IsInvalidConfig(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
}

// WrapConfigAbsent wraps err as absent configuration.
func WrapConfigAbsent(err error) error {
	if err == nil {
		return nil
	}
	if IsConfigAbsent(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConfigAbsent, err)
}

// WrapMalformedInput wraps err as malformed structured input.
func WrapMalformedInput(err error) error {
	if err == nil {
		return nil
	}
	if IsMalformedInput(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrMalformedInput, err)
}

// WrapApplyFailed wraps err as a fatal apply failure.
func WrapApplyFailed(err error) error {
	if err == nil {
		return nil
	}
	if IsApplyFailed(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrApplyFailed, err)
}

// WrapRolloutTimeout wraps err as a workload convergence timeout.
func WrapRolloutTimeout(err error) error {
	if err == nil {
		return nil
	}
	if IsRolloutTimeout(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRolloutTimeout, err)
}
