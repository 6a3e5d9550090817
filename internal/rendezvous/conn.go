package rendezvous

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/itsmostafa/inkbridge/internal/codec"
)

// ErrAlreadyExchanged is returned when a second value is sent or received
// in the same direction. Each connection carries one value each way.
var ErrAlreadyExchanged = errors.New("rendezvous value already exchanged")

// Request is sent by the client: its full invocation argument vector,
// program name included.
type Request struct {
	Args []string `cbor:"args"`
}

// Response is sent by the shell. An empty Document means the document
// was not modified and the host should keep its copy.
type Response struct {
	Document []byte `cbor:"document"`
}

// Unchanged reports whether r is the "document not modified" marker.
func (r Response) Unchanged() bool {
	return len(r.Document) == 0
}

// Conn is one end of an established channel.
type Conn struct {
	conn    net.Conn
	encoder *codec.Encoder
	decoder *codec.Decoder

	mu       sync.Mutex
	sent     bool
	received bool

	closeOnce sync.Once
	closeErr  error
}

func newConn(conn net.Conn) *Conn {
	return &Conn{
		conn:    conn,
		encoder: codec.NewEncoder(conn),
		decoder: codec.NewDecoder(conn),
	}
}

// SendRequest sends the client's argument vector.
func (c *Conn) SendRequest(req Request) error {
	return c.send(req)
}

// ReceiveRequest reads the client's argument vector.
func (c *Conn) ReceiveRequest() (Request, error) {
	var req Request
	err := c.receive(&req)
	return req, err
}

// SendResponse sends the result payload back to the client.
func (c *Conn) SendResponse(resp Response) error {
	return c.send(resp)
}

// ReceiveResponse blocks until the shell sends the result payload.
func (c *Conn) ReceiveResponse() (Response, error) {
	var resp Response
	err := c.receive(&resp)
	return resp, err
}

// SetReadDeadline bounds the next receive.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Sent reports whether this end has already sent its value.
func (c *Conn) Sent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// Close closes the connection. Idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Conn) send(v any) error {
	c.mu.Lock()
	if c.sent {
		c.mu.Unlock()
		return ErrAlreadyExchanged
	}
	c.sent = true
	c.mu.Unlock()

	if err := c.encoder.Encode(v); err != nil {
		return fmt.Errorf("sending %T: %w", v, err)
	}
	return nil
}

func (c *Conn) receive(v any) error {
	c.mu.Lock()
	if c.received {
		c.mu.Unlock()
		return ErrAlreadyExchanged
	}
	c.received = true
	c.mu.Unlock()

	if err := c.decoder.Decode(v); err != nil {
		return fmt.Errorf("receiving %T: %w", v, err)
	}
	return nil
}
