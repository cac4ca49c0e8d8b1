package transport

import "context"

// Transport is the full-duplex frame channel the relay and client speak
// MessageEnvelope over. Implementations (transport/wstransport for
// WebSocket, an in-memory pipe for tests) own framing; this package only
// defines the contract and the envelope shape.
type Transport interface {
	// Send writes one envelope. Send must be safe to call concurrently
	// with Receive but not with itself.
	Send(ctx context.Context, env *Envelope) error
	// Receive blocks for the next inbound envelope. It returns ErrClosed
	// once the transport has been closed locally or by the peer.
	Receive(ctx context.Context) (*Envelope, error)
	// Close releases the underlying connection. Close is idempotent.
	Close() error
}
