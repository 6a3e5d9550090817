package session

import (
	"context"
	"errors"
	"fmt"
)

// ErrPaused is returned by RequireSession inside a paused region, where
// opening a session would collide with the one the pause reopens.
var ErrPaused = errors.New("session is paused")

// Mode is the coordinator's view of the session slot.
type Mode int

const (
	ModeIdle Mode = iota
	ModeOpen
	ModePaused
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeOpen:
		return "open"
	case ModePaused:
		return "paused"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Mode reports whether a session is open, paused, or neither.
func (c *Controller) Mode() Mode {
	switch {
	case c.pauseDepth > 0:
		return ModePaused
	case c.manager.Current() != nil:
		return ModeOpen
	default:
		return ModeIdle
	}
}

// PauseDepth is the number of active Pause calls; zero when not paused.
func (c *Controller) PauseDepth() int {
	return c.pauseDepth
}

// Pause hands the document back to Inkscape while action runs, so action
// can drive the main window, which is blocked as long as the client is
// waiting. A new session is opened afterwards, even if action fails or
// panics.
//
// Without an open session, or inside another Pause, action just runs.
// Pause nests but is not safe for concurrent use.
func (c *Controller) Pause(ctx context.Context, action func() error) (err error) {
	if c.pauseDepth > 0 {
		c.pauseDepth++
		defer func() { c.pauseDepth-- }()
		return action()
	}
	if c.manager.Current() == nil {
		return action()
	}

	if err := c.Finalize(ctx); err != nil {
		return err
	}
	c.pauseDepth = 1
	defer func() {
		c.pauseDepth = 0
		if _, openErr := c.Open(ctx); openErr != nil {
			err = errors.Join(err, fmt.Errorf("resuming session: %w", openErr))
		}
	}()

	// Let Inkscape finish applying the returned document before anything
	// touches its window.
	c.clock.Sleep(c.settleDelay)
	return action()
}

// RequireSession runs action with a session open, opening one around it
// and finalizing it afterwards if none is open yet.
func (c *Controller) RequireSession(ctx context.Context, action func(*Session) error) (err error) {
	if c.pauseDepth > 0 {
		return ErrPaused
	}
	if s := c.manager.Current(); s != nil {
		return action(s)
	}

	s, err := c.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, c.Finalize(ctx))
	}()
	return action(s)
}
