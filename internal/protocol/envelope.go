// Package protocol defines the two text formats exchanged by rtcpaste peers:
// the session description envelope the user carries between instances, and
// the chat message envelope sent over the data channel.
package protocol

import "errors"

// Kind identifies which half of the offer/answer exchange an envelope carries.
type Kind string

const (
	KindOffer  Kind = "offer"
	KindAnswer Kind = "answer"
)

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	return k == KindOffer || k == KindAnswer
}

// Armor selects how an envelope is rendered for the user to copy.
type Armor string

const (
	ArmorJSON   Armor = "json"   // plain single-line JSON
	ArmorBase64 Armor = "base64" // base64 of the JSON form, survives mail clients and chat apps
)

var (
	ErrMalformedEnvelope = errors.New("malformed session description envelope")
	ErrUnsupportedKind   = errors.New("unsupported session description kind")
	ErrMalformedMessage  = errors.New("malformed message")
)

// SessionDescription is the envelope around an engine-produced SDP blob.
// The SDP is opaque to rtcpaste and is carried verbatim.
type SessionDescription struct {
	Kind Kind
	SDP  string
}

// Message is a single chat line.
type Message struct {
	Text string
}
