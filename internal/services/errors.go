package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sjperalta/fintera-brokerage/internal/repository"
	"github.com/sjperalta/fintera-brokerage/internal/statemachine"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

// Common service errors
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("record not found")
	ErrConflict    = errors.New("conflict")
	ErrConsistency = errors.New("consistency check failed")
	ErrForbidden   = errors.New("forbidden")

	ErrInvalidState = fmt.Errorf("%w: invalid state transition", ErrValidation)
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func conflictError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// storeError translates repository and state machine errors into service errors.
func storeError(err error, kind repository.Kind, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	case errors.Is(err, repository.ErrVersionConflict):
		return fmt.Errorf("%w: %s %s was modified by another request", ErrConflict, kind, id)
	case errors.Is(err, statemachine.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	default:
		return err
	}
}

// AggregateError reports a multi-entity write that failed part way, together
// with any compensation step that could not be undone.
type AggregateError struct {
	Op           string
	Cause        error
	Compensation []error
}

func (e *AggregateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Op, e.Cause)
	if len(e.Compensation) > 0 {
		b.WriteString("; compensation failed: ")
		for i, err := range e.Compensation {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(err.Error())
		}
	}
	return b.String()
}

func (e *AggregateError) Unwrap() []error {
	return append([]error{e.Cause}, e.Compensation...)
}

// Consistent reports whether every compensation step succeeded
func (e *AggregateError) Consistent() bool {
	return len(e.Compensation) == 0
}

type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// compensator records undo steps for writes that already committed so a
// later failure can roll them back in reverse order.
type compensator struct {
	op    string
	steps []compensation
}

func newCompensator(op string) *compensator {
	return &compensator{op: op}
}

func (c *compensator) add(name string, undo func(ctx context.Context) error) {
	c.steps = append(c.steps, compensation{name: name, undo: undo})
}

// fail undoes every recorded step and returns cause. When something had been
// written the result is an *AggregateError.
func (c *compensator) fail(ctx context.Context, cause error) error {
	if len(c.steps) == 0 {
		return cause
	}

	logger.Warn("Compensating partial write", "op", c.op, "steps", len(c.steps), "cause", cause)

	var failed []error
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.undo(ctx); err != nil {
			logger.Error("Compensation step failed", "op", c.op, "step", step.name, "error", err)
			failed = append(failed, fmt.Errorf("undo %s: %w", step.name, err))
		}
	}
	return &AggregateError{Op: c.op, Cause: cause, Compensation: failed}
}

// restoreStep puts snapshot back over the version written by this operation.
// A concurrent write in between makes the undo fail with a conflict.
func restoreStep[T repository.Entity](repo repository.Repository[T], snapshot T, written T) func(ctx context.Context) error {
	version := written.GetVersion()
	return func(ctx context.Context) error {
		snapshot.SetVersion(version)
		return repo.Put(ctx, snapshot)
	}
}

// deleteStep removes an entity created by this operation.
func deleteStep[T repository.Entity](repo repository.Repository[T], id string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return repo.Delete(ctx, id)
	}
}

// clone deep-copies an entity through its JSON form.
func clone[T any](v T) T {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("clone: %v", err))
	}
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("clone: %v", err))
	}
	return out
}
