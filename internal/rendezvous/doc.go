// Package rendezvous implements the single-use channel between the
// client launched by Inkscape and the long-lived shell.
//
// The client is the passive side: it binds a well-known Unix socket and
// accepts exactly one connection. The shell is the active side: it dials
// in a tight loop until the client is listening or a wall-clock deadline
// passes. Over the connection exactly one Request travels from client to
// shell and exactly one Response travels back, each a single CBOR value.
// Both ends close the connection once the exchange is over.
//
//	// client
//	l, err := rendezvous.Listen(addr)
//	conn, err := l.Accept()
//	err = conn.SendRequest(rendezvous.Request{Args: os.Args})
//	resp, err := conn.ReceiveResponse()
//
//	// shell
//	conn, err := rendezvous.Dial(ctx, addr, clock.Real(), time.Second)
//	req, err := conn.ReceiveRequest()
//	err = conn.SendResponse(rendezvous.Response{Document: data})
package rendezvous
