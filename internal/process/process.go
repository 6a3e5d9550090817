// Package process holds the two ways an inkbridge binary leaves early:
// Fatal for errors returned up to main, and Abort for the launcher's
// watchdog, which must end the process even while other goroutines are
// blocked in system calls.
package process

import (
	"fmt"
	"io"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// Abort writes msg to w and terminates the whole process with exit code 1.
//
// Deferred functions do not run and blocked goroutines are not unwound.
// Use it only when no cleanup could help, such as the launcher whose host
// application is stuck behind a modal dialog.
func Abort(w io.Writer, msg string) {
	if w == nil {
		w = os.Stderr
	}
	io.WriteString(w, msg)
	if f, ok := w.(*os.File); ok {
		f.Sync()
	}
	os.Exit(1)
}
