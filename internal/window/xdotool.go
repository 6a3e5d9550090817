// Package window drives Inkscape's windows through the xdotool binary:
// activating the extension dialog so the client starts, and sending keys
// to the main window.
package window

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// SetupHint points users at the documentation when a window lookup fails.
const SetupHint = "see the inkbridge README for how to open the extension dialog before starting the shell"

var (
	// ErrWindowNotFound means no visible window matched the title pattern.
	ErrWindowNotFound = errors.New("window cannot be found")
	// ErrWindowAmbiguous means more than one visible window matched.
	ErrWindowAmbiguous = errors.New("multiple windows match")
)

// RunFunc runs a command and returns its stdout.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Exec runs the command with os/exec.
func Exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// Xdotool finds windows by title and sends them keys.
type Xdotool struct {
	// ExtensionTitle matches the extension dialog, e.g. "^Inkscape Scripting$".
	ExtensionTitle string
	// MainTitle matches the main Inkscape window, e.g. " - Inkscape$".
	MainTitle string
	// ActivationKeys are pressed on the extension dialog.
	ActivationKeys []string
	// Run executes xdotool. Defaults to Exec.
	Run RunFunc
}

func (x *Xdotool) run(ctx context.Context, args ...string) ([]byte, error) {
	run := x.Run
	if run == nil {
		run = Exec
	}
	return run(ctx, "xdotool", args...)
}

// Activate presses the activation keys on the extension dialog, which
// makes Inkscape start the client. Focus returns to the previously focused
// window afterwards, whatever happens.
func (x *Xdotool) Activate(ctx context.Context) error {
	win, err := x.find(ctx, x.ExtensionTitle, "extension window")
	if err != nil {
		return err
	}

	previous, err := x.focused(ctx)
	if err != nil {
		return err
	}
	defer x.focus(ctx, previous)

	if err := x.focus(ctx, win); err != nil {
		return err
	}
	// A modifier still held from the user's own typing (Shift+Enter in
	// the shell, say) would turn Return into a different shortcut.
	args := []string{"keyup", "--clearmodifiers", "Return", "key", "--clearmodifiers", "--window", strconv.Itoa(win)}
	args = append(args, x.ActivationKeys...)
	_, err = x.run(ctx, args...)
	return err
}

// PressKeys sends keys to the main Inkscape window in xdotool syntax, e.g.
// "ctrl+z". Key names are case sensitive. Focus is not restored: the
// extension dialog is still closing at this point, and the next
// activation moves focus anyway.
func (x *Xdotool) PressKeys(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	win, err := x.find(ctx, x.MainTitle, "Inkscape window")
	if err != nil {
		return err
	}
	if err := x.focus(ctx, win); err != nil {
		return err
	}
	args := append([]string{"key", "--window", strconv.Itoa(win)}, keys...)
	_, err = x.run(ctx, args...)
	return err
}

// find returns the single visible window whose title matches pattern.
func (x *Xdotool) find(ctx context.Context, pattern, what string) (int, error) {
	out, err := x.run(ctx, "search", "--onlyvisible", "--name", pattern)
	// xdotool search exits 1 when nothing matches.
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return 0, err
	}

	var ids []int
	for _, field := range strings.Fields(string(out)) {
		id, err := strconv.Atoi(field)
		if err != nil {
			return 0, fmt.Errorf("unexpected xdotool output %q: %w", field, err)
		}
		ids = append(ids, id)
	}

	switch len(ids) {
	case 0:
		return 0, fmt.Errorf("%w: %s matching %q; %s", ErrWindowNotFound, what, pattern, SetupHint)
	case 1:
		return ids[0], nil
	default:
		return 0, fmt.Errorf("%w: %d windows named %q; %s", ErrWindowAmbiguous, len(ids), pattern, SetupHint)
	}
}

func (x *Xdotool) focused(ctx context.Context) (int, error) {
	out, err := x.run(ctx, "getwindowfocus")
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("unexpected xdotool output %q: %w", out, err)
	}
	return id, nil
}

func (x *Xdotool) focus(ctx context.Context, win int) error {
	_, err := x.run(ctx, "windowfocus", strconv.Itoa(win))
	return err
}
