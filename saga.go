package provisioner

import (
	"context"
	"fmt"
	"time"
)

// Step is one individually-failable action of a provisioning saga.
// Idempotent marks steps that are safe to repeat when the caller retries the saga from the top.
type Step struct {
	Name       string
	Idempotent bool
	Run        func(ctx context.Context) error
}

// SagaResult reports how far a saga got.
type SagaResult struct {
	Operation  string
	Completed  int // Number of steps that finished successfully
	FailedStep int // Index of the failing step, -1 when every step completed
	Err        error
}

// OK reports whether every step completed.
func (r SagaResult) OK() bool {
	return r.FailedStep < 0
}

// StepError wraps the failure of one saga step. The cause keeps its own error kind,
// so CodeOf and the Is* helpers see through it.
type StepError struct {
	Operation  string
	Step       string
	Index      int
	Idempotent bool
	Err        error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %d (%s) failed: %v", e.Operation, e.Index, e.Step, e.Err)
}

// Unwrap returns the step's cause.
func (e *StepError) Unwrap() error {
	return e.Err
}

// RunSaga executes steps in order and stops at the first failure.
// Completed steps are never rolled back; the result names the failed index so that
// the caller or a reconciliation sweep can repair partial state.
// Steps are not interrupted between each other: ctx is only handed to the steps.
func RunSaga(ctx context.Context, operation string, steps []Step) SagaResult {
	result := SagaResult{Operation: operation, FailedStep: -1}
	for i, step := range steps {
		if err := step.Run(ctx); err != nil {
			result.FailedStep = i
			result.Err = &StepError{
				Operation:  operation,
				Step:       step.Name,
				Index:      i,
				Idempotent: step.Idempotent,
				Err:        err,
			}
			return result
		}
		result.Completed++
	}
	return result
}

// sagaRunner runs sagas and reports their outcome to logs, metrics and notifications.
type sagaRunner struct {
	logger        Logger
	notifications NotificationService
	metrics       *Metrics
}

// run executes steps and returns the failing step's error, if any.
func (r *sagaRunner) run(ctx context.Context, operation string, steps []Step) error {
	start := time.Now()
	result := RunSaga(ctx, operation, steps)
	r.metrics.observeSaga(result, steps, time.Since(start))

	if result.OK() {
		r.logger.Debugf("Saga %s completed %d steps in %v", operation, result.Completed, time.Since(start))
		return nil
	}

	r.logger.Errorf("Saga %s failed at step %d (%s): %v",
		operation, result.FailedStep, steps[result.FailedStep].Name, result.Err)
	if err := r.notifications.NotifySagaFailed(ctx, result); err != nil {
		r.logger.Warnf("Failed to send saga failure notification: %v", err)
	}
	return result.Err
}
