package engine

import (
	"fmt"

	"github.com/1ureka/rtcpaste/internal/protocol"
)

// Event is one of the tagged variants below.
type Event interface {
	isEvent()
}

// Op names the engine operation a NegotiationFailed refers to.
type Op string

const (
	OpCreateOffer  Op = "create offer"
	OpCreateAnswer Op = "create answer"
	OpSetLocal     Op = "set local description"
	OpSetRemote    Op = "set remote description"
)

// ICEConnectionState mirrors the ICE agent's connection state.
type ICEConnectionState string

const (
	ICEConnectionStateNew          ICEConnectionState = "new"
	ICEConnectionStateChecking     ICEConnectionState = "checking"
	ICEConnectionStateConnected    ICEConnectionState = "connected"
	ICEConnectionStateCompleted    ICEConnectionState = "completed"
	ICEConnectionStateDisconnected ICEConnectionState = "disconnected"
	ICEConnectionStateFailed       ICEConnectionState = "failed"
	ICEConnectionStateClosed       ICEConnectionState = "closed"
)

// Lost reports whether the state means the path to the peer is gone.
func (s ICEConnectionState) Lost() bool {
	return s == ICEConnectionStateDisconnected || s == ICEConnectionStateFailed
}

type (
	// DescriptionCreated carries the result of CreateOffer or CreateAnswer.
	DescriptionCreated struct {
		Description protocol.SessionDescription
	}

	LocalDescriptionSet  struct{}
	RemoteDescriptionSet struct{}

	NegotiationFailed struct {
		Op  Op
		Err error
	}

	// ICECandidateGathered is informational; candidates are never trickled.
	ICECandidateGathered struct {
		Candidate string
	}

	// ICEGatheringComplete fires once per SetLocalDescription, after which
	// LocalDescription contains every candidate.
	ICEGatheringComplete struct{}

	ICEConnectionStateChanged struct {
		State ICEConnectionState
	}

	ConnectionStateChanged struct {
		State string
	}

	// DataChannelReceived announces a channel created by the remote peer.
	DataChannelReceived struct {
		Channel DataChannel
	}

	DataChannelOpened struct {
		Label string
	}

	DataChannelClosed struct {
		Label string
	}

	DataChannelMessage struct {
		Label string
		Data  []byte
	}
)

func (DescriptionCreated) isEvent()        {}
func (LocalDescriptionSet) isEvent()       {}
func (RemoteDescriptionSet) isEvent()      {}
func (NegotiationFailed) isEvent()         {}
func (ICECandidateGathered) isEvent()      {}
func (ICEGatheringComplete) isEvent()      {}
func (ICEConnectionStateChanged) isEvent() {}
func (ConnectionStateChanged) isEvent()    {}
func (DataChannelReceived) isEvent()       {}
func (DataChannelOpened) isEvent()         {}
func (DataChannelClosed) isEvent()         {}
func (DataChannelMessage) isEvent()        {}

func (e NegotiationFailed) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e NegotiationFailed) Unwrap() error { return e.Err }
