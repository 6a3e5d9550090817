package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/itsmostafa/inkbridge/internal/clock"
	"github.com/itsmostafa/inkbridge/internal/document"
	"github.com/itsmostafa/inkbridge/internal/launcher"
	"github.com/itsmostafa/inkbridge/internal/rendezvous"
	"github.com/itsmostafa/inkbridge/internal/testutil"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" xmlns:sodipodi="http://sodipodi.sourceforge.net/DTD/sodipodi-0.dtd" width="100" height="100" viewBox="0 0 100 100"><sodipodi:namedview id="nv"><sodipodi:guide id="g1" position="5,5" orientation="0,1"/></sodipodi:namedview></svg>`

// cycle is the outcome of one client run.
type cycle struct {
	args   []string
	stdout []byte
	err    error
}

// fakeHost stands in for Inkscape: each activation starts a real
// launcher, the way pressing Return on the extension dialog would.
type fakeHost struct {
	t       *testing.T
	addr    rendezvous.Address
	argv    []string
	fail    error
	mu      sync.Mutex
	started int
	cycles  chan cycle
}

func newFakeHost(t *testing.T, argv []string) *fakeHost {
	return &fakeHost{
		t:      t,
		addr:   rendezvous.UnixAddress(testutil.SocketPath(t)),
		argv:   argv,
		cycles: make(chan cycle, 16),
	}
}

func (h *fakeHost) Activate(context.Context) error {
	if h.fail != nil {
		return h.fail
	}
	h.mu.Lock()
	h.started++
	h.mu.Unlock()

	go func() {
		var stdout bytes.Buffer
		l := &launcher.Launcher{
			Address:       h.addr,
			AcceptTimeout: time.Minute,
			Clock:         clock.Real(),
			Stdout:        &stdout,
			Stderr:        io.Discard,
			Abort:         func(io.Writer, string) {},
		}
		err := l.Run(h.argv)
		h.cycles <- cycle{args: h.argv, stdout: stdout.Bytes(), err: err}
	}()
	return nil
}

func (h *fakeHost) activations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

func (h *fakeHost) nextCycle() cycle {
	h.t.Helper()
	c := testutil.RequireReceive[cycle](h.t, h.cycles, 5*time.Second, "waiting for client to finish")
	if c.err != nil {
		h.t.Fatalf("client failed: %v", c.err)
	}
	return c
}

func (h *fakeHost) noPendingCycle() {
	h.t.Helper()
	select {
	case c := <-h.cycles:
		h.t.Fatalf("unexpected extra client cycle: %+v", c)
	default:
	}
}

func writeSVG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.svg")
	if err := os.WriteFile(path, []byte(testSVG), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestController(t *testing.T, host *fakeHost, clk clock.Clock) *Controller {
	t.Helper()
	return NewController(Options{
		Activator:      host,
		Loader:         document.NewEngine(),
		Address:        host.addr,
		Clock:          clk,
		ConnectTimeout: 5 * time.Second,
		SettleDelay:    time.Millisecond,
	})
}

func TestController_UnchangedSendsEmptyPayload(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())

	s, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if c.State() != StateUserCodeRunning || c.Current() != s {
		t.Fatalf("unexpected state %s", c.State())
	}
	if len(s.Guides) != 1 || s.Guides[0].ID != "g1" {
		t.Errorf("guides not loaded: %+v", s.Guides)
	}
	if s.ID == "" {
		t.Error("session has no id")
	}

	if err := c.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	got := host.nextCycle()
	if len(got.stdout) != 0 {
		t.Errorf("expected zero bytes for an unchanged document, got %q", got.stdout)
	}
	if c.Current() != nil || c.State() != StateIdle {
		t.Errorf("slot not released: state %s", c.State())
	}
	if !s.SVGRoot.Closed() {
		t.Error("document not released")
	}
}

func TestController_ChangedSendsDocument(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())

	s, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Guides = append(s.Guides, document.Guide{X: 50, Y: 50, OrientationX: 1})
	if err := c.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	got := host.nextCycle()
	if len(got.stdout) == 0 {
		t.Fatal("expected the serialized document")
	}
	reloaded, err := document.Parse(got.stdout)
	if err != nil {
		t.Fatalf("payload is not a document: %v", err)
	}
	guides := reloaded.Guides()
	if len(guides) != 2 || guides[1].X != 50 || guides[1].OrientationX != 1 {
		t.Errorf("mutated guide list not reproduced: %+v", guides)
	}
}

func TestController_FinalizeObserversSeeUserEdits(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())
	c.OnFinalize(func(s *Session) {
		s.Guides = nil
		s.Metadata.Title = "edited"
	})

	if _, err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	reloaded, err := document.Parse(host.nextCycle().stdout)
	if err != nil {
		t.Fatalf("payload is not a document: %v", err)
	}
	if len(reloaded.Guides()) != 0 || reloaded.Metadata().Title != "edited" {
		t.Errorf("observer edits not merged: guides=%+v metadata=%+v", reloaded.Guides(), reloaded.Metadata())
	}
}

func TestController_ResponseSentWhenObserverPanics(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())
	c.OnFinalize(func(*Session) { panic("user code exploded") })

	if _, err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected the panic to propagate")
			}
		}()
		c.Finalize(context.Background())
	}()

	if got := host.nextCycle(); len(got.stdout) != 0 {
		t.Errorf("expected the empty marker, got %q", got.stdout)
	}
	if c.Current() != nil {
		t.Error("slot not released after panic")
	}
}

func TestController_OpenActivationFailureLeavesSlotEmpty(t *testing.T) {
	host := newFakeHost(t, []string{"prog"})
	host.fail = errors.New("extension window cannot be found")
	c := newTestController(t, host, clock.Real())

	_, err := c.Open(context.Background())
	if err == nil || !strings.Contains(err.Error(), "cannot be found") {
		t.Fatalf("expected the activation error, got %v", err)
	}
	if c.Current() != nil || c.State() != StateIdle {
		t.Errorf("slot not empty after failure: state %s", c.State())
	}
}

func TestController_ConnectTimeout(t *testing.T) {
	c := NewController(Options{
		Activator:      activatorFunc(func(context.Context) error { return nil }),
		Loader:         document.NewEngine(),
		Address:        rendezvous.UnixAddress(testutil.SocketPath(t)),
		ConnectTimeout: 50 * time.Millisecond,
	})

	_, err := c.Open(context.Background())
	if !errors.Is(err, rendezvous.ErrConnectTimeout) {
		t.Fatalf("expected ErrConnectTimeout, got %v", err)
	}
	if c.Current() != nil {
		t.Error("slot not empty after timeout")
	}
	if err := c.Finalize(context.Background()); err != nil {
		t.Errorf("Finalize with no session should be a no-op, got %v", err)
	}
}

func TestController_MissingInputReleasesClient(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--user-args=x"})
	c := newTestController(t, host, clock.Real())

	_, err := c.Open(context.Background())
	if !errors.Is(err, document.ErrNoInputFile) {
		t.Fatalf("expected ErrNoInputFile, got %v", err)
	}
	if got := host.nextCycle(); len(got.stdout) != 0 {
		t.Errorf("client should get the empty marker, got %q", got.stdout)
	}
	if c.Current() != nil {
		t.Error("slot not empty after load failure")
	}
}

func TestController_DoubleOpenPanics(t *testing.T) {
	host := newFakeHost(t, []string{"prog", "--input", writeSVG(t)})
	c := newTestController(t, host, clock.Real())

	if _, err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("second Open should panic")
		}
		c.Finalize(context.Background())
		host.nextCycle()
	}()
	c.Open(context.Background())
}

func TestManager_ReleaseForeignSessionPanics(t *testing.T) {
	m := NewManager()
	m.Claim(&Session{ID: "a"})
	defer func() {
		if recover() == nil {
			t.Error("releasing a session that is not open should panic")
		}
	}()
	m.Release(&Session{ID: "b"})
}

func TestState_String(t *testing.T) {
	if StateUserCodeRunning.String() != "user-code-running" || State(42).String() != "state(42)" {
		t.Error("unexpected state names")
	}
}

type activatorFunc func(context.Context) error

func (f activatorFunc) Activate(ctx context.Context) error { return f(ctx) }
