package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itsmostafa/inkbridge/internal/clock"
	"github.com/itsmostafa/inkbridge/internal/document"
	"github.com/itsmostafa/inkbridge/internal/rendezvous"
)

// requestTimeout bounds the wait for the argument vector once connected.
// The client sends it immediately after accepting.
const requestTimeout = 10 * time.Second

// ErrEmptyRequest means the client sent no arguments at all, not even its
// own program name.
var ErrEmptyRequest = errors.New("client sent an empty argument vector")

// State is the controller's position in the per-command lifecycle.
type State int

const (
	StateIdle State = iota
	StateActivating
	StateConnecting
	StateLoaded
	StateUserCodeRunning
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActivating:
		return "activating"
	case StateConnecting:
		return "connecting"
	case StateLoaded:
		return "loaded"
	case StateUserCodeRunning:
		return "user-code-running"
	case StateFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Activator makes the host application start the client, which then
// listens on the rendezvous address.
type Activator interface {
	Activate(ctx context.Context) error
}

// Loader is the document engine as the controller sees it.
type Loader interface {
	ParseArguments(args []string) (document.Options, error)
	Load(opts document.Options) (*document.Document, error)
}

// Options configures a Controller.
type Options struct {
	Manager        *Manager
	Activator      Activator
	Loader         Loader
	Address        rendezvous.Address
	Clock          clock.Clock
	ConnectTimeout time.Duration
	SettleDelay    time.Duration
	Logger         *zap.Logger
}

// Controller runs the session lifecycle and the pause/resume protocol.
// It is not safe for concurrent use: the shell drives it from one
// goroutine.
type Controller struct {
	manager        *Manager
	activator      Activator
	loader         Loader
	addr           rendezvous.Address
	clock          clock.Clock
	connectTimeout time.Duration
	settleDelay    time.Duration
	logger         *zap.Logger

	state      State
	pauseDepth int

	afterOpen      []func(*Session)
	beforeFinalize []func(*Session)
}

// NewController builds a Controller. Manager, Clock and Logger default to
// a fresh manager, the real clock and a no-op logger.
func NewController(opts Options) *Controller {
	if opts.Manager == nil {
		opts.Manager = NewManager()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		manager:        opts.Manager,
		activator:      opts.Activator,
		loader:         opts.Loader,
		addr:           opts.Address,
		clock:          opts.Clock,
		connectTimeout: opts.ConnectTimeout,
		settleDelay:    opts.SettleDelay,
		logger:         opts.Logger,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Current returns the open session, or nil.
func (c *Controller) Current() *Session {
	return c.manager.Current()
}

// OnOpen registers f to run each time a session opens, including the
// sessions reopened after a pause.
func (c *Controller) OnOpen(f func(*Session)) {
	c.afterOpen = append(c.afterOpen, f)
}

// OnFinalize registers f to run at the start of every Finalize, before
// guides and metadata are merged into the document.
func (c *Controller) OnFinalize(f func(*Session)) {
	c.beforeFinalize = append(c.beforeFinalize, f)
}

// Open borrows the document from the client. It panics if a session is
// already open. On error the slot stays empty, and if a client had
// already connected it is sent the empty response so it never hangs.
func (c *Controller) Open(ctx context.Context) (s *Session, err error) {
	if cur := c.manager.Current(); cur != nil {
		panic(fmt.Sprintf("session: Open while %s is open", cur))
	}
	defer func() {
		if err != nil {
			c.state = StateIdle
		}
	}()

	c.state = StateActivating
	if err := c.activator.Activate(ctx); err != nil {
		return nil, fmt.Errorf("activating extension window: %w", err)
	}

	c.state = StateConnecting
	conn, err := rendezvous.Dial(ctx, c.addr, c.clock, c.connectTimeout)
	if err != nil {
		return nil, err
	}

	s, err = c.load(conn)
	if err != nil {
		// The client is blocked on its response; release it.
		if sendErr := conn.SendResponse(rendezvous.Response{}); sendErr != nil {
			c.logger.Warn("failed to release client after load error", zap.Error(sendErr))
		}
		conn.Close()
		return nil, err
	}

	c.manager.Claim(s)
	c.state = StateLoaded
	c.logger.Info("session opened",
		zap.String("session_id", s.ID),
		zap.String("input", s.Options.InputFile),
		zap.Int("guides", len(s.Guides)),
	)
	for _, f := range c.afterOpen {
		f(s)
	}
	c.state = StateUserCodeRunning
	return s, nil
}

func (c *Controller) load(conn *rendezvous.Conn) (*Session, error) {
	if err := conn.SetReadDeadline(time.Now().Add(requestTimeout)); err != nil {
		return nil, err
	}
	req, err := conn.ReceiveRequest()
	if err != nil {
		return nil, err
	}
	conn.SetReadDeadline(time.Time{})
	if len(req.Args) == 0 {
		return nil, ErrEmptyRequest
	}

	args := req.Args[1:]
	opts, err := c.loader.ParseArguments(args)
	if err != nil {
		return nil, err
	}
	if opts.InputFile == "" {
		return nil, fmt.Errorf("%w: client arguments %q", document.ErrNoInputFile, args)
	}
	doc, err := c.loader.Load(opts)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:       uuid.NewString(),
		SVGRoot:  doc,
		Guides:   doc.Guides(),
		UserArgs: opts.UserArgs,
		Canvas:   doc.Canvas(),
		Metadata: doc.Metadata(),
		Options:  opts,
		conn:     conn,
	}, nil
}

// Finalize hands the document back and closes the session. The response
// is sent on every path out of Finalize, panics included: the serialized
// document if it changed, the empty marker otherwise. Finalize with no
// open session does nothing.
func (c *Controller) Finalize(ctx context.Context) (err error) {
	s := c.manager.Current()
	if s == nil {
		return nil
	}
	c.state = StateFinalizing

	var resp rendezvous.Response
	defer func() {
		sendErr := s.conn.SendResponse(resp)
		closeErr := s.conn.Close()
		s.SVGRoot.Close()
		c.manager.Release(s)
		c.state = StateIdle

		if sendErr != nil {
			sendErr = fmt.Errorf("returning document to client: %w", sendErr)
		}
		err = errors.Join(err, sendErr, closeErr)
		c.logger.Info("session finalized",
			zap.String("session_id", s.ID),
			zap.Bool("changed", !resp.Unchanged()),
			zap.Int("bytes", len(resp.Document)),
			zap.Error(err),
		)
	}()

	for _, f := range c.beforeFinalize {
		f(s)
	}
	s.SVGRoot.ReplaceGuides(s.Guides)
	s.SVGRoot.SetMetadata(s.Metadata)

	changed, err := s.Changed()
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	var buf bytes.Buffer
	if err := s.SVGRoot.Save(&buf); err != nil {
		return err
	}
	resp.Document = buf.Bytes()
	return nil
}
