// Package testutil provides shared test helpers.
//
// SocketDir exists because Unix domain socket paths are limited to 108
// bytes, and t.TempDir() can exceed that under some build systems.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// SocketDir creates a short-named temporary directory in /tmp suitable
// for Unix domain sockets. It is removed when the test completes.
func SocketDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "ib-")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// SocketPath returns a socket path inside a fresh SocketDir.
func SocketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(SocketDir(t), "rv.sock")
}

// RequireReceive reads one value from ch within timeout, or fails the test.
func RequireReceive[T any](t *testing.T, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed without sending a value: %s", formatMessage(msgAndArgs))
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("timed out after %v: %s", timeout, formatMessage(msgAndArgs))
	}
	panic("unreachable")
}

func formatMessage(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return "(no message)"
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}
