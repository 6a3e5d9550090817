package shell

import (
	"context"
	"errors"
)

// Hook runs around one user command.
type Hook func(ctx context.Context) error

// Hooks holds the two extension points of the command lifecycle. Hooks
// run in registration order.
type Hooks struct {
	before []Hook
	after  []Hook
}

// BeforeCommand registers h to run before each command. An error from h
// stops the remaining before-hooks, and the command is not evaluated.
func (h *Hooks) BeforeCommand(hook Hook) {
	h.before = append(h.before, hook)
}

// AfterCommand registers h to run after each command, whether or not the
// command was evaluated or succeeded. Every after-hook runs.
func (h *Hooks) AfterCommand(hook Hook) {
	h.after = append(h.after, hook)
}

func (h *Hooks) runBefore(ctx context.Context) error {
	for _, hook := range h.before {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) runAfter(ctx context.Context) error {
	var errs []error
	for _, hook := range h.after {
		errs = append(errs, hook(ctx))
	}
	return errors.Join(errs...)
}
