package signaling

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// current state.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrWrongKind is returned when a pasted envelope is an answer where an
	// offer was expected, or the reverse.
	ErrWrongKind = errors.New("wrong envelope kind")
	// ErrSessionBusy is returned when a negotiation would replace a live
	// peer connection.
	ErrSessionBusy = errors.New("a peer connection is already live")
	// ErrClosed is returned by every operation after Destroy.
	ErrClosed = errors.New("signaling machine destroyed")
)

// Trigger is the cause of a transition.
type Trigger int

const (
	TriggerInitialize     Trigger = iota // user: (re)start
	TriggerMakeOffer                     // user: become the offering side
	TriggerOfferAccepted                 // user: pasted a valid offer
	TriggerOfferGathered                 // engine: offer gathering complete
	TriggerAnswerGathered                // engine: answer gathering complete
	TriggerAnswerAccepted                // user: pasted a valid answer
	TriggerAnswerRejected                // engine: remote answer could not be applied
	TriggerChannelOpened                 // engine
	TriggerConnectionLost                // engine: channel closed or ICE lost
)

var triggerNames = [...]string{
	TriggerInitialize:     "initialize",
	TriggerMakeOffer:      "make offer",
	TriggerOfferAccepted:  "offer accepted",
	TriggerOfferGathered:  "offer gathered",
	TriggerAnswerGathered: "answer gathered",
	TriggerAnswerAccepted: "answer accepted",
	TriggerAnswerRejected: "answer rejected",
	TriggerChannelOpened:  "channel opened",
	TriggerConnectionLost: "connection lost",
}

func (t Trigger) String() string {
	if t < 0 || int(t) >= len(triggerNames) {
		return "unknown"
	}
	return triggerNames[t]
}

// Transition is the outcome of applying a trigger. Notifications lists, in
// order, every state the sink must be told about; the last one is To.
type Transition struct {
	From          State
	To            State
	Notifications []State
}

type edge struct {
	from    State
	trigger Trigger
}

var edges = map[edge]State{
	{WaitingForOffer, TriggerMakeOffer}:       CreatingOffer,
	{CreatingOffer, TriggerOfferGathered}:     WaitingForAnswer,
	{WaitingForOffer, TriggerOfferAccepted}:   CreatingAnswer,
	{CreatingAnswer, TriggerAnswerGathered}:   WaitingToConnect,
	{WaitingForAnswer, TriggerAnswerAccepted}: WaitingToConnect,
	{WaitingToConnect, TriggerAnswerRejected}: WaitingForAnswer,
	{WaitingToConnect, TriggerChannelOpened}:  ChatEstablished,
	{WaitingToConnect, TriggerConnectionLost}: ChatEnded,
	{ChatEstablished, TriggerConnectionLost}:  ChatEnded,
}

// Next computes the transition for t in state from. It has no side effects.
// Initialize is valid from every state and passes through Initializing.
func Next(from State, t Trigger) (Transition, error) {
	if t == TriggerInitialize {
		return Transition{
			From:          from,
			To:            WaitingForOffer,
			Notifications: []State{Initializing, WaitingForOffer},
		}, nil
	}

	to, ok := edges[edge{from, t}]
	if !ok {
		return Transition{From: from, To: from}, fmt.Errorf("%w: %s in %s", ErrInvalidState, t, from)
	}
	return Transition{From: from, To: to, Notifications: []State{to}}, nil
}
