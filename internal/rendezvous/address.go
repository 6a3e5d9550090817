package rendezvous

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrAddressInUse is returned by Listen when the address is still taken
// after one stale-address cleanup. Something is holding it persistently.
var ErrAddressInUse = errors.New("rendezvous address is in use")

// livenessTimeout bounds the liveness check on an address that failed to bind.
const livenessTimeout = 100 * time.Millisecond

// Address is the well-known endpoint shared by both sides.
type Address struct {
	Network string
	Path    string
}

// UnixAddress returns the Unix socket address at path.
func UnixAddress(path string) Address {
	return Address{Network: "unix", Path: path}
}

func (a Address) String() string {
	return a.Network + ":" + a.Path
}

// Listener is the passive side of the channel.
type Listener struct {
	addr     Address
	listener net.Listener
}

// Listen binds addr. If the bind fails because the address already
// exists, a stale socket left by a crashed run is removed and the bind is
// retried once. A socket that still has a live listener, or a path that is
// not a socket at all, is left untouched, so the retry fails too and the
// error wraps ErrAddressInUse.
func Listen(addr Address) (*Listener, error) {
	l, err := net.Listen(addr.Network, addr.Path)
	if err == nil {
		return &Listener{addr: addr, listener: l}, nil
	}
	if !errors.Is(err, unix.EADDRINUSE) {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	if err := removeStale(addr); err != nil {
		return nil, err
	}

	l, err = net.Listen(addr.Network, addr.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAddressInUse, addr, err)
	}
	return &Listener{addr: addr, listener: l}, nil
}

// removeStale deletes the socket file at addr if nobody is listening on
// it. It never removes anything that is not a socket.
func removeStale(addr Address) error {
	var st unix.Stat_t
	if err := unix.Lstat(addr.Path, &st); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil
		}
		return fmt.Errorf("inspecting %s: %w", addr.Path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFSOCK {
		return nil
	}

	// A successful connect means a live listener owns the address.
	conn, err := net.DialTimeout(addr.Network, addr.Path, livenessTimeout)
	if err == nil {
		conn.Close()
		return nil
	}

	if err := os.Remove(addr.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", addr.Path, err)
	}
	return nil
}

// Accept blocks until the active side connects.
func (l *Listener) Accept() (*Conn, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("accepting on %s: %w", l.addr, err)
	}
	return newConn(conn), nil
}

// Close stops listening and removes the socket file. Safe to call more
// than once; it also unblocks a pending Accept.
func (l *Listener) Close() error {
	err := l.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() Address {
	return l.addr
}
