package registry

// Transport is the write side of an attached client connection. The
// registry never touches the underlying socket directly, which lets tests
// drive connections with in-memory fakes.
type Transport interface {
	// Send writes one message frame to the client.
	Send(data []byte) error

	// Ping sends a keepalive probe.
	Ping() error

	// Close tears down the underlying connection. It must be safe to
	// call more than once.
	Close() error
}
