// Package inkscape talks to Inkscape's action shell, the process started
// by "inkscape --shell --active-window", which runs actions against the
// document open in the running instance.
//
// The running instance only accepts actions while no extension is
// running, so every call goes through a Pauser.
package inkscape

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/itsmostafa/inkbridge/internal/clock"
)

const (
	bannerPrefix    = "Inkscape interactive shell mode"
	noDesktopPrefix = "No active desktop to run"
	prompt          = "\n> "

	// commandsFile is left behind by Inkscape between action-shell runs
	// and makes the next run replay stale commands.
	commandsFile = "active_desktop_commands.xml"

	closeTimeout = time.Second
)

// ErrNoActiveWindow means Inkscape kept reporting no active desktop.
var ErrNoActiveWindow = errors.New("no active Inkscape window found")

// Pauser runs action with the document handed back to Inkscape.
type Pauser interface {
	Pause(ctx context.Context, action func() error) error
}

// Process is a started action shell.
type Process struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	Stderr io.Reader
	Wait   func() error
	Kill   func() error
}

// StartFunc starts an action shell.
type StartFunc func(ctx context.Context) (*Process, error)

// Exec starts the inkscape binary.
func Exec(ctx context.Context) (*Process, error) {
	cmd := exec.CommandContext(ctx, "inkscape", "--shell", "--active-window")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting inkscape shell: %w", err)
	}
	return &Process{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Wait:   cmd.Wait,
		Kill:   cmd.Process.Kill,
	}, nil
}

// Runner sends commands to a fresh action shell per call.
type Runner struct {
	Pauser Pauser
	// Start defaults to Exec.
	Start StartFunc
	// Retries bounds the attempts while Inkscape has no active desktop,
	// which happens right after the extension dialog returns. Defaults
	// to 10.
	Retries    int
	RetryDelay time.Duration
	Clock      clock.Clock
	// TempDir holds Inkscape's commands file. Defaults to os.TempDir().
	TempDir string
	Logger  *zap.Logger
}

// Run executes each command, one per line, and returns each command's
// output without the trailing prompt.
func (r *Runner) Run(ctx context.Context, commands ...string) ([]string, error) {
	for _, c := range commands {
		if strings.Contains(c, "\n") {
			return nil, fmt.Errorf("inkscape command %q contains a newline", c)
		}
	}

	var results []string
	err := r.Pauser.Pause(ctx, func() error {
		sh, err := r.open(ctx)
		if err != nil {
			return err
		}
		defer sh.close(r.clock())

		for _, c := range commands {
			os.Remove(filepath.Join(r.tempDir(), commandsFile))
			out, err := sh.send(c)
			if err != nil {
				return fmt.Errorf("inkscape command %q: %w", c, err)
			}
			r.logger().Debug("inkscape command done", zap.String("command", c), zap.Int("output_bytes", len(out)))
			results = append(results, out)
		}
		return nil
	})
	return results, err
}

func (r *Runner) open(ctx context.Context) (*actionShell, error) {
	start := r.Start
	if start == nil {
		start = Exec
	}
	retries := r.Retries
	if retries <= 0 {
		retries = 10
	}

	for attempt := 1; attempt <= retries; attempt++ {
		proc, err := start(ctx)
		if err != nil {
			return nil, err
		}
		sh := &actionShell{proc: proc, stdout: bufio.NewReader(proc.Stdout)}

		line, _ := sh.stdout.ReadString('\n')
		if strings.TrimSpace(line) == "" {
			errLine, _ := bufio.NewReader(proc.Stderr).ReadString('\n')
			sh.close(r.clock())
			if strings.HasPrefix(errLine, noDesktopPrefix) {
				r.logger().Debug("inkscape has no active desktop yet", zap.Int("attempt", attempt))
				r.clock().Sleep(r.RetryDelay)
				continue
			}
			return nil, fmt.Errorf("inkscape shell exited: %s", strings.TrimSpace(errLine))
		}
		if !strings.HasPrefix(line, bannerPrefix) {
			sh.close(r.clock())
			return nil, fmt.Errorf("unexpected inkscape shell banner %q", line)
		}
		if _, err := sh.readUntilPrompt(); err != nil {
			sh.close(r.clock())
			return nil, fmt.Errorf("reading inkscape shell banner: %w", err)
		}
		return sh, nil
	}
	return nil, ErrNoActiveWindow
}

func (r *Runner) clock() clock.Clock {
	if r.Clock == nil {
		return clock.Real()
	}
	return r.Clock
}

func (r *Runner) tempDir() string {
	if r.TempDir == "" {
		return os.TempDir()
	}
	return r.TempDir
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

type actionShell struct {
	proc   *Process
	stdout *bufio.Reader
}

func (s *actionShell) send(command string) (string, error) {
	if _, err := io.WriteString(s.proc.Stdin, command+"\n"); err != nil {
		return "", err
	}
	return s.readUntilPrompt()
}

func (s *actionShell) readUntilPrompt() (string, error) {
	var content strings.Builder
	for {
		b, err := s.stdout.ReadByte()
		if err != nil {
			return content.String(), fmt.Errorf("shell closed before prompt: %w", err)
		}
		content.WriteByte(b)
		if strings.HasSuffix(content.String(), prompt) {
			return strings.TrimSuffix(content.String(), prompt), nil
		}
	}
}

// close ends the shell by closing its input, killing it if it does not
// exit within closeTimeout.
func (s *actionShell) close(clk clock.Clock) {
	s.proc.Stdin.Close()
	done := make(chan struct{})
	go func() {
		if s.proc.Wait != nil {
			s.proc.Wait()
		}
		close(done)
	}()
	expired := make(chan struct{})
	timer := clk.AfterFunc(closeTimeout, func() { close(expired) })
	defer timer.Stop()
	select {
	case <-done:
	case <-expired:
		if s.proc.Kill != nil {
			s.proc.Kill()
		}
	}
}
