// Package signaling drives a peer connection through offer, answer and ICE
// gathering without a signaling server. Session descriptions are handed to
// the user as envelopes once gathering completes, and envelopes pasted back
// in are validated before they reach the engine.
package signaling

// State is the current phase of a session.
type State int

const (
	Initializing State = iota
	WaitingForOffer
	CreatingOffer
	WaitingForAnswer
	CreatingAnswer
	WaitingToConnect
	ChatEstablished
	ChatEnded
)

var stateNames = [...]string{
	Initializing:     "INITIALIZING",
	WaitingForOffer:  "WAITING_FOR_OFFER",
	CreatingOffer:    "CREATING_OFFER",
	WaitingForAnswer: "WAITING_FOR_ANSWER",
	CreatingAnswer:   "CREATING_ANSWER",
	WaitingToConnect: "WAITING_TO_CONNECT",
	ChatEstablished:  "CHAT_ESTABLISHED",
	ChatEnded:        "CHAT_ENDED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Notifier is told about every state change, once per change, from the
// machine's own goroutine. It must not call back into the machine
// synchronously; consumers re-dispatch to their own context.
type Notifier interface {
	OnStateChanged(State)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(State)

func (f NotifierFunc) OnStateChanged(s State) { f(s) }
