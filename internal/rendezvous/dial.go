package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/itsmostafa/inkbridge/internal/clock"
)

// ErrConnectTimeout is returned by Dial when the passive side did not
// start listening in time.
var ErrConnectTimeout = errors.New("cannot connect to the extension")

// retryInterval separates connection attempts. Attempts are cheap and the
// client usually appears within a few milliseconds.
const retryInterval = 2 * time.Millisecond

// dialContext makes one connection attempt. Tests replace it.
var dialContext = (&net.Dialer{}).DialContext

// Dial connects to addr, retrying until it succeeds or until timeout has
// elapsed since the first attempt. The bound is wall-clock time rather
// than an attempt count because a single connect can take an arbitrary
// amount of time at the OS level.
func Dial(ctx context.Context, addr Address, clk clock.Clock, timeout time.Duration) (*Conn, error) {
	start := clk.Now()
	attempts := 0
	for {
		attempts++
		// Each attempt gets only what is left of the overall bound, so one
		// connect that blocks cannot outlast it.
		remaining := max(timeout-clk.Now().Sub(start), retryInterval)
		attemptCtx, cancel := context.WithTimeout(ctx, remaining)
		conn, err := dialContext(attemptCtx, addr.Network, addr.Path)
		cancel()
		if err == nil {
			return newConn(conn), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if clk.Now().Sub(start) > timeout {
			return nil, fmt.Errorf("%w after %s (%d attempts): %v", ErrConnectTimeout, timeout, attempts, err)
		}
		clk.Sleep(retryInterval)
	}
}
