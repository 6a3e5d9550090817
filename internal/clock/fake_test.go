package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_AfterFuncFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	c.AfterFunc(time.Second, func() { fired++ })

	c.Advance(999 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("fired before deadline")
	}
	c.Advance(time.Millisecond)
	if fired != 1 {
		t.Fatalf("expected one call, got %d", fired)
	}
	c.Advance(time.Hour)
	if fired != 1 {
		t.Errorf("timer fired twice")
	}
}

func TestFakeClock_StopPreventsFiring(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop on a pending timer should return true")
	}
	if timer.Stop() {
		t.Error("second Stop should return false")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if c.PendingCount() != 0 {
		t.Errorf("expected no pending timers, got %d", c.PendingCount())
	}
}

func TestFakeClock_SleepReleasedByAdvance(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		c.Sleep(300 * time.Millisecond)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(300 * time.Millisecond)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep was not released")
	}
	if got := c.Now(); !got.Equal(epoch.Add(300 * time.Millisecond)) {
		t.Errorf("unexpected time %v", got)
	}
}
