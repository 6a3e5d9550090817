package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/itsmostafa/inkbridge/internal/clock"
	"github.com/itsmostafa/inkbridge/internal/document"
)

// sleepRecorder is the real clock with Sleep calls recorded.
type sleepRecorder struct {
	clock.Clock
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) Sleep(d time.Duration) {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	r.Clock.Sleep(d)
}

func (r *sleepRecorder) count(d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sleeps {
		if s == d {
			n++
		}
	}
	return n
}

func TestPause_NoSessionRunsActionOnly(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())

	ran := false
	err := c.Pause(context.Background(), func() error {
		ran = true
		if c.Mode() != ModeIdle {
			t.Errorf("mode inside a pause without a session = %s", c.Mode())
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("Pause: ran=%v err=%v", ran, err)
	}
	if host.activations() != 0 {
		t.Errorf("no session was open, yet %d activations happened", host.activations())
	}
}

func TestPause_FinalizesAndReopens(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	rec := &sleepRecorder{Clock: clock.Real()}
	c := newTestController(t, host, rec)
	c.settleDelay = 7 * time.Millisecond

	first, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	first.Guides = nil

	err = c.Pause(context.Background(), func() error {
		if c.Mode() != ModePaused || c.Current() != nil {
			t.Errorf("expected a paused empty slot, got mode %s", c.Mode())
		}
		if rec.count(7*time.Millisecond) != 1 {
			t.Error("settle delay did not run before the action")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}

	// The pre-pause edit went back to the host.
	if got := host.nextCycle(); len(got.stdout) == 0 {
		t.Error("pause should have returned the edited document")
	}

	second := c.Current()
	if second == nil || second == first {
		t.Fatal("expected a brand-new session after resume")
	}
	if c.Mode() != ModeOpen || c.PauseDepth() != 0 {
		t.Errorf("after resume: mode %s depth %d", c.Mode(), c.PauseDepth())
	}
	if host.activations() != 2 {
		t.Errorf("activations = %d, want 2", host.activations())
	}

	if err := c.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	host.nextCycle()
}

func TestPause_NestedFinalizesOnce(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())

	if _, err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	innerRan := false
	err := c.Pause(context.Background(), func() error {
		return c.Pause(context.Background(), func() error {
			innerRan = true
			if c.PauseDepth() != 2 {
				t.Errorf("depth = %d, want 2", c.PauseDepth())
			}
			return nil
		})
	})
	if err != nil || !innerRan {
		t.Fatalf("nested Pause: ran=%v err=%v", innerRan, err)
	}

	host.nextCycle()
	host.noPendingCycle()
	if host.activations() != 2 {
		t.Errorf("activations = %d, want exactly one reopen", host.activations())
	}

	c.Finalize(context.Background())
	host.nextCycle()
}

func TestPause_ReopensWhenActionFails(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())

	if _, err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	boom := errors.New("boom")
	err := c.Pause(context.Background(), func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected the action error, got %v", err)
	}
	host.nextCycle()
	if c.Current() == nil {
		t.Fatal("session not reopened after a failed action")
	}

	c.Finalize(context.Background())
	host.nextCycle()
}

func TestPause_ReopensWhenActionPanics(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())

	if _, err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected the panic to propagate")
			}
		}()
		c.Pause(context.Background(), func() error { panic("interrupted") })
	}()
	host.nextCycle()
	if c.Current() == nil || c.PauseDepth() != 0 {
		t.Fatal("session not reopened after a panicking action")
	}

	c.Finalize(context.Background())
	host.nextCycle()
}

func TestPause_ObserversRebindAfterResume(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())

	var opened []*Session
	c.OnOpen(func(s *Session) { opened = append(opened, s) })

	if _, err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	c.Pause(context.Background(), func() error { return nil })
	host.nextCycle()

	if len(opened) != 2 || opened[1] != c.Current() {
		t.Fatalf("OnOpen saw %d sessions, want 2 ending with the current one", len(opened))
	}
	c.Finalize(context.Background())
	host.nextCycle()
}

func TestPause_FailedReopenLeavesSlotEmpty(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())

	if _, err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	err := c.Pause(context.Background(), func() error {
		host.fail = errors.New("window gone")
		return nil
	})
	if err == nil {
		t.Fatal("expected the resume error")
	}
	host.nextCycle()
	if c.Current() != nil || c.Mode() != ModeIdle {
		t.Errorf("slot should be empty, mode %s", c.Mode())
	}
	if err := c.Finalize(context.Background()); err != nil {
		t.Errorf("Finalize after a failed resume should be a no-op, got %v", err)
	}
}

func TestRequireSession_OpensAndFinalizes(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())

	err := c.RequireSession(context.Background(), func(s *Session) error {
		s.Metadata = document.Metadata{Title: "scoped"}
		return nil
	})
	if err != nil {
		t.Fatalf("RequireSession: %v", err)
	}
	got := host.nextCycle()
	doc, err := document.Parse(got.stdout)
	if err != nil {
		t.Fatalf("payload is not a document: %v", err)
	}
	if doc.Metadata().Title != "scoped" {
		t.Errorf("title = %q", doc.Metadata().Title)
	}
	if c.Current() != nil {
		t.Error("scoped session left open")
	}
}

func TestRequireSession_ReusesOpenSession(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())

	s, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = c.RequireSession(context.Background(), func(got *Session) error {
		if got != s {
			t.Error("expected the already open session")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RequireSession: %v", err)
	}
	if c.Current() != s {
		t.Error("RequireSession must not finalize a session it did not open")
	}
	c.Finalize(context.Background())
	host.nextCycle()
}

func TestRequireSession_RefusedWhilePaused(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())

	if _, err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	var inner error
	c.Pause(context.Background(), func() error {
		inner = c.RequireSession(context.Background(), func(*Session) error { return nil })
		return nil
	})
	if !errors.Is(inner, ErrPaused) {
		t.Errorf("expected ErrPaused, got %v", inner)
	}
	host.nextCycle()
	c.Finalize(context.Background())
	host.nextCycle()
}
