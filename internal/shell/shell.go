// Package shell is the interactive front-end: a JavaScript read-eval-print
// loop whose commands each run against a freshly borrowed document.
//
// Every command goes through the same lifecycle. The BeforeCommand hooks
// run first; if one fails its error is shown and the command is skipped.
// Then the command is evaluated, and the AfterCommand hooks always run.
// Frontend registers the hooks that open and finalize a session.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/term"
)

// Shell reads commands from In and writes results to Out.
type Shell struct {
	In    io.Reader
	Out   io.Writer
	Eval  *Evaluator
	Hooks *Hooks
	// Interrupt makes SIGINT cancel the running command instead of the
	// process.
	Interrupt bool
}

// Run reads and executes commands until "exit", end of input, or ctx is
// cancelled. Command errors are displayed, not returned.
func (s *Shell) Run(ctx context.Context) error {
	reader := s.lineReader()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		code, err := readCommand(reader)
		if errors.Is(err, io.EOF) && strings.TrimSpace(code) == "" {
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		switch strings.TrimSpace(code) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		s.Execute(ctx, code)
		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

// Execute runs one command through the hooks and displays the outcome.
func (s *Shell) Execute(ctx context.Context, code string) (err error) {
	if s.Interrupt {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
	}

	// Hooks run session code that can panic; the shell outlives any
	// single command.
	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("internal error: %v", r)
			FormatError(s.Out, panicErr)
			err = errors.Join(err, panicErr)
		}
	}()
	defer func() {
		if afterErr := s.Hooks.runAfter(ctx); afterErr != nil {
			FormatError(s.Out, afterErr)
			err = errors.Join(err, afterErr)
		}
	}()

	if err := s.Hooks.runBefore(ctx); err != nil {
		FormatError(s.Out, err)
		return err
	}

	result, err := s.Eval.Eval(ctx, code)
	if err != nil {
		FormatError(s.Out, err)
		return err
	}
	FormatResult(s.Out, result)
	return nil
}

// maxLineBytes bounds one line of piped input.
const maxLineBytes = 16 << 20

type lineReader interface {
	ReadLine(prompt string) (string, error)
}

func (s *Shell) lineReader() lineReader {
	if f, ok := s.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		rw := struct {
			io.Reader
			io.Writer
		}{f, s.Out}
		return &ttyReader{fd: int(f.Fd()), term: term.NewTerminal(rw, "")}
	}
	scanner := bufio.NewScanner(s.In)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &scanReader{scanner: scanner}
}

// readCommand reads one line, and more while the input is an unfinished
// statement.
func readCommand(r lineReader) (string, error) {
	line, err := r.ReadLine(renderPrompt(primaryPrompt))
	if err != nil {
		return line, err
	}
	code := line
	for Incomplete(code) {
		line, err = r.ReadLine(renderPrompt(continuationPrompt))
		code += "\n" + line
		if err != nil {
			return code, err
		}
	}
	return code, nil
}

// ttyReader edits lines in raw mode. The terminal is restored while a
// command runs, so Ctrl-C reaches the process as SIGINT.
type ttyReader struct {
	fd   int
	term *term.Terminal
}

func (r *ttyReader) ReadLine(prompt string) (string, error) {
	state, err := term.MakeRaw(r.fd)
	if err != nil {
		return "", fmt.Errorf("entering raw mode: %w", err)
	}
	defer term.Restore(r.fd, state)
	r.term.SetPrompt(prompt)
	return r.term.ReadLine()
}

type scanReader struct {
	scanner *bufio.Scanner
}

func (r *scanReader) ReadLine(string) (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
