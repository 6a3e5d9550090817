// Package launcher is the short-lived process Inkscape runs for each
// extension invocation. It hands its arguments to the shell over the
// rendezvous channel, waits for the resulting document and prints it.
//
// The launcher never parses the document and never imports the document
// engine: it has to start fast, and everything interesting happens in
// the shell.
package launcher

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/itsmostafa/inkbridge/internal/clock"
	"github.com/itsmostafa/inkbridge/internal/rendezvous"
)

// ErrAcceptTimeout is returned by Run when the watchdog fired but Abort
// returned (only possible with a test Abort).
var ErrAcceptTimeout = errors.New("no connection from the shell")

// TimeoutMessage is written to stderr when nothing connects in time. The
// usual cause is clicking Apply in the extension dialog by hand.
const TimeoutMessage = "Cannot accept connection from the shell!\n" +
	"Note that you must not click the \"Apply\" button manually.\n"

// Launcher is the passive side of one handshake cycle.
type Launcher struct {
	Address       rendezvous.Address
	AcceptTimeout time.Duration
	Clock         clock.Clock
	Stdout        io.Writer
	Stderr        io.Writer

	// Abort is called by the watchdog with the diagnostic stream and
	// message. Production code passes process.Abort, which exits without
	// unwinding: Inkscape is stuck behind a modal dialog until this
	// process dies, and a graceful return cannot be guaranteed while
	// Accept is blocked.
	Abort func(w io.Writer, msg string)

	Logger *zap.Logger
}

// Run performs one cycle: listen, accept, send argv, receive the
// response, write it to Stdout.
func (l *Launcher) Run(argv []string) error {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	listener, err := rendezvous.Listen(l.Address)
	if err != nil {
		return err
	}
	defer listener.Close()

	var timedOut atomic.Bool
	watchdog := l.Clock.AfterFunc(l.AcceptTimeout, func() {
		timedOut.Store(true)
		l.Abort(l.Stderr, TimeoutMessage)
		// Only reached when Abort returns; unblock Accept.
		listener.Close()
	})

	conn, err := listener.Accept()
	watchdog.Stop()
	if timedOut.Load() {
		if conn != nil {
			conn.Close()
		}
		return ErrAcceptTimeout
	}
	if err != nil {
		return err
	}
	defer conn.Close()
	// One connection per cycle. Closing now unlinks the socket path before
	// the next launcher may bind it.
	listener.Close()
	logger.Debug("shell connected", zap.String("address", l.Address.String()))

	if err := conn.SendRequest(rendezvous.Request{Args: argv}); err != nil {
		return err
	}
	resp, err := conn.ReceiveResponse()
	if err != nil {
		return err
	}
	logger.Debug("response received",
		zap.Bool("changed", !resp.Unchanged()),
		zap.Int("bytes", len(resp.Document)),
	)

	if _, err := l.Stdout.Write(resp.Document); err != nil {
		return fmt.Errorf("writing document to stdout: %w", err)
	}
	return nil
}
