package inkscape

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const banner = "Inkscape interactive shell mode. Type 'action-list' to list all actions.\n" +
	" Input of the form:\n" +
	" action1:arg1; action2:arg2; ...\n" +
	"> "

type countingPauser struct {
	calls int
}

func (p *countingPauser) Pause(_ context.Context, action func() error) error {
	p.calls++
	return action()
}

// fakeStarts returns a StartFunc whose n-th process behaves as
// behaviors[n]: "no-desktop" exits with the no-desktop message, "ok"
// answers each command with "out:<command>".
func fakeStarts(t *testing.T, behaviors ...string) (StartFunc, *int) {
	t.Helper()
	started := 0
	return func(context.Context) (*Process, error) {
		if started >= len(behaviors) {
			t.Fatalf("unexpected start #%d", started+1)
		}
		behavior := behaviors[started]
		started++

		stdinR, stdinW := io.Pipe()
		stdoutR, stdoutW := io.Pipe()
		stderrR, stderrW := io.Pipe()
		done := make(chan struct{})

		go func() {
			defer close(done)
			defer stdoutW.Close()
			defer stderrW.Close()
			if behavior == "no-desktop" {
				stdoutW.Close()
				io.WriteString(stderrW, "No active desktop to run action\n")
				io.Copy(io.Discard, stdinR)
				return
			}
			io.WriteString(stdoutW, banner)
			scanner := bufio.NewScanner(stdinR)
			for scanner.Scan() {
				io.WriteString(stdoutW, "out:"+scanner.Text()+"\n> ")
			}
		}()

		return &Process{
			Stdin:  stdinW,
			Stdout: stdoutR,
			Stderr: stderrR,
			Wait:   func() error { <-done; return nil },
		}, nil
	}, &started
}

func TestRunner_RunsCommandsInsidePause(t *testing.T) {
	start, started := fakeStarts(t, "ok")
	pauser := &countingPauser{}
	dir := t.TempDir()
	stale := filepath.Join(dir, commandsFile)
	if err := os.WriteFile(stale, []byte("<old/>"), 0o600); err != nil {
		t.Fatal(err)
	}
	r := &Runner{Pauser: pauser, Start: start, TempDir: dir}

	out, err := r.Run(context.Background(), "query-all", "select-all")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 2 || out[0] != "out:query-all" || out[1] != "out:select-all" {
		t.Errorf("unexpected outputs %q", out)
	}
	if pauser.calls != 1 || *started != 1 {
		t.Errorf("pauses=%d starts=%d, want 1 and 1", pauser.calls, *started)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale commands file not removed")
	}
}

func TestRunner_RetriesWithoutActiveDesktop(t *testing.T) {
	start, started := fakeStarts(t, "no-desktop", "no-desktop", "ok")
	r := &Runner{Pauser: &countingPauser{}, Start: start, TempDir: t.TempDir()}

	out, err := r.Run(context.Background(), "query-all")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if *started != 3 || len(out) != 1 {
		t.Errorf("starts=%d outputs=%q", *started, out)
	}
}

func TestRunner_GivesUpAfterRetries(t *testing.T) {
	start, _ := fakeStarts(t, "no-desktop", "no-desktop")
	r := &Runner{Pauser: &countingPauser{}, Start: start, Retries: 2, TempDir: t.TempDir()}

	_, err := r.Run(context.Background(), "query-all")
	if !errors.Is(err, ErrNoActiveWindow) {
		t.Fatalf("expected ErrNoActiveWindow, got %v", err)
	}
}

func TestRunner_RejectsMultilineCommand(t *testing.T) {
	pauser := &countingPauser{}
	r := &Runner{Pauser: pauser}

	_, err := r.Run(context.Background(), "a\nb")
	if err == nil || !strings.Contains(err.Error(), "newline") {
		t.Fatalf("expected a newline error, got %v", err)
	}
	if pauser.calls != 0 {
		t.Error("should fail before pausing")
	}
}
