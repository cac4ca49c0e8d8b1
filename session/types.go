// Package session implements the Client Session (§4.5): the
// single-threaded-cooperative component that owns a CRDT document, a
// local temporal-key cache, a per-workspace offline buffer, and a
// transport handle, and exposes the connect/insert/delete/get_text/
// on_change/disconnect surface a collaborative editor embeds.
package session

import (
	"context"
	"time"

	eecpcrypto "github.com/digital-defiance/eecp/crypto"
	"github.com/digital-defiance/eecp/transport"
)

// ChangeHandler receives the document's full current text after a local
// edit or a verified remote operation has been applied. Per §4.5, handlers
// run synchronously on the goroutine that triggered them and must not
// block.
type ChangeHandler func(text string)

// WindowParams is the slice of a workspace's rotation schedule a client
// needs to derive temporal keys independently: the same inputs
// workspace.Workspace uses internally, carried here because a client is a
// separate process from the relay and never receives key material over
// the wire.
type WindowParams struct {
	CreatedAt        time.Time
	RotationInterval time.Duration
	GracePeriod      time.Duration
}

// PeerKeyResolver returns the Ed25519 verification key for participantID.
// The protocol leaves how a client learns other participants' public keys
// unspecified (§9); this is supplied by the embedder, typically backed by
// a workspace roster fetched alongside the handshake out of band.
type PeerKeyResolver func(participantID string) (eecpcrypto.KeyPair, error)

// Dialer opens a fresh transport for reconnect. Supplying one enables
// ClientSession's automatic reconnect policy (§4.5); without one, a
// transport close simply surfaces as a disconnect.
type Dialer func(ctx context.Context) (transport.Transport, error)
