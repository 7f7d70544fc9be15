// Package engine is the narrow capability interface the signaling core needs
// from a peer-connection engine. Every asynchronous result is reported back
// as an Event through the Emitter given at construction.
package engine

import (
	"github.com/1ureka/rtcpaste/internal/protocol"
)

// Emitter receives engine events. It may be called from any goroutine and
// must not block for long.
type Emitter func(Event)

// Factory allocates peer connections.
type Factory interface {
	NewPeerConnection(emit Emitter) (PeerConnection, error)
}

// PeerConnection is one negotiation attempt. The Create* and Set* methods
// return immediately; their outcome arrives later as DescriptionCreated,
// LocalDescriptionSet, RemoteDescriptionSet or NegotiationFailed.
type PeerConnection interface {
	// CreateDataChannel creates the local chat channel. The offering side
	// always calls it before CreateOffer.
	CreateDataChannel(label string) (DataChannel, error)
	CreateOffer()
	CreateAnswer()
	SetLocalDescription(desc protocol.SessionDescription)
	SetRemoteDescription(desc protocol.SessionDescription)
	// LocalDescription returns the current local description, including
	// every candidate gathered so far.
	LocalDescription() (protocol.SessionDescription, bool)
	Close() error
}

// DataChannel is a negotiated bidirectional message channel.
type DataChannel interface {
	Label() string
	Send(data []byte) error
	Close() error
}
