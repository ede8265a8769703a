// Package fallback runs an ordered list of strategies until one succeeds.
package fallback

import (
	"context"
	"errors"
	"fmt"
)

// ErrExhausted is wrapped by the error TryInOrder returns when every step failed.
var ErrExhausted = errors.New("all fallback steps failed")

// Step is one strategy in a chain.
type Step[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// abortError stops a chain without trying the remaining steps.
type abortError struct{ err error }

func (a *abortError) Error() string { return a.err.Error() }
func (a *abortError) Unwrap() error { return a.err }

// Abort marks err as fatal: TryInOrder returns it as-is instead of moving to the next step.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	return &abortError{err: err}
}

// Observer is told about each failed step before the next one runs.
type Observer func(step string, attempt int, err error)

// TryInOrder runs steps sequentially and returns the first success together with the name of the
// step that produced it. Steps never run concurrently; a later step only starts after the previous
// one has failed. A cancelled context stops the chain between steps.
func TryInOrder[T any](ctx context.Context, steps []Step[T], observe Observer) (T, string, error) {
	var zero T
	if len(steps) == 0 {
		return zero, "", fmt.Errorf("%w: no steps configured", ErrExhausted)
	}

	errs := make([]error, 0, len(steps))
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		result, err := step.Run(ctx)
		if err == nil {
			return result, step.Name, nil
		}
		var abort *abortError
		if errors.As(err, &abort) {
			return zero, step.Name, abort.err
		}

		errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		if observe != nil {
			observe(step.Name, i+1, err)
		}
	}

	return zero, "", fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...))
}
