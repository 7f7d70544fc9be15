// Package enginetest provides an in-memory engine whose callbacks are fired
// explicitly by the test. Nothing is emitted on its own.
package enginetest

import (
	"errors"
	"sync"

	"github.com/1ureka/rtcpaste/internal/engine"
	"github.com/1ureka/rtcpaste/internal/protocol"
)

var (
	_ engine.Factory        = (*Factory)(nil)
	_ engine.PeerConnection = (*PeerConnection)(nil)
	_ engine.DataChannel    = (*DataChannel)(nil)
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("injected failure")

// Factory records every peer connection it creates.
type Factory struct {
	mu    sync.Mutex
	peers []*PeerConnection

	// Fail makes the next NewPeerConnection calls return ErrInjected.
	Fail bool
}

func (f *Factory) NewPeerConnection(emit engine.Emitter) (engine.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Fail {
		return nil, ErrInjected
	}
	pc := &PeerConnection{emit: emit}
	f.peers = append(f.peers, pc)
	return pc, nil
}

// Peers returns the peer connections created so far, oldest first.
func (f *Factory) Peers() []*PeerConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*PeerConnection(nil), f.peers...)
}

// Last returns the most recent peer connection, or nil.
func (f *Factory) Last() *PeerConnection {
	peers := f.Peers()
	if len(peers) == 0 {
		return nil
	}
	return peers[len(peers)-1]
}

// PeerConnection records calls and lets the test play the engine's part.
type PeerConnection struct {
	emit engine.Emitter

	mu       sync.Mutex
	calls    []string
	channels []*DataChannel
	local    *protocol.SessionDescription
	remote   *protocol.SessionDescription
	closed   int
}

func (p *PeerConnection) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *PeerConnection) CreateDataChannel(label string) (engine.DataChannel, error) {
	p.record("CreateDataChannel")
	dc := NewDataChannel(label)
	p.mu.Lock()
	p.channels = append(p.channels, dc)
	p.mu.Unlock()
	return dc, nil
}

func (p *PeerConnection) CreateOffer()  { p.record("CreateOffer") }
func (p *PeerConnection) CreateAnswer() { p.record("CreateAnswer") }

func (p *PeerConnection) SetLocalDescription(desc protocol.SessionDescription) {
	p.record("SetLocalDescription")
	p.mu.Lock()
	p.local = &desc
	p.mu.Unlock()
}

func (p *PeerConnection) SetRemoteDescription(desc protocol.SessionDescription) {
	p.record("SetRemoteDescription")
	p.mu.Lock()
	p.remote = &desc
	p.mu.Unlock()
}

func (p *PeerConnection) LocalDescription() (protocol.SessionDescription, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.local == nil {
		return protocol.SessionDescription{}, false
	}
	return *p.local, true
}

func (p *PeerConnection) Close() error {
	p.record("Close")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

// Calls returns the recorded method names in call order.
func (p *PeerConnection) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Called reports whether method was invoked at least once.
func (p *PeerConnection) Called(method string) bool {
	for _, c := range p.Calls() {
		if c == method {
			return true
		}
	}
	return false
}

// Remote returns the last remote description applied.
func (p *PeerConnection) Remote() (protocol.SessionDescription, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return protocol.SessionDescription{}, false
	}
	return *p.remote, true
}

// Channels returns the data channels created locally.
func (p *PeerConnection) Channels() []*DataChannel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*DataChannel(nil), p.channels...)
}

// CloseCount returns how many times Close was called.
func (p *PeerConnection) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Fire delivers ev through the emitter, as the engine's worker would.
func (p *PeerConnection) Fire(ev engine.Event) {
	p.emit(ev)
}

// Created fires DescriptionCreated for an offer or answer carrying sdp.
func (p *PeerConnection) Created(kind protocol.Kind, sdp string) {
	p.Fire(engine.DescriptionCreated{Description: protocol.SessionDescription{Kind: kind, SDP: sdp}})
}

// GatheringComplete fires ICEGatheringComplete.
func (p *PeerConnection) GatheringComplete() {
	p.Fire(engine.ICEGatheringComplete{})
}

// Fail fires NegotiationFailed for op.
func (p *PeerConnection) Fail(op engine.Op) {
	p.Fire(engine.NegotiationFailed{Op: op, Err: ErrInjected})
}

// Open fires DataChannelOpened for dc.
func (p *PeerConnection) Open(dc *DataChannel) {
	p.Fire(engine.DataChannelOpened{Label: dc.Label()})
}

// CloseChannel fires DataChannelClosed for dc.
func (p *PeerConnection) CloseChannel(dc *DataChannel) {
	p.Fire(engine.DataChannelClosed{Label: dc.Label()})
}

// Deliver fires an inbound message on dc.
func (p *PeerConnection) Deliver(dc *DataChannel, data []byte) {
	p.Fire(engine.DataChannelMessage{Label: dc.Label(), Data: data})
}

// DataChannel records sent payloads.
type DataChannel struct {
	label string

	mu      sync.Mutex
	sent    [][]byte
	closed  int
	SendErr error
}

func NewDataChannel(label string) *DataChannel {
	return &DataChannel{label: label}
}

func (d *DataChannel) Label() string { return d.label }

func (d *DataChannel) Send(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.SendErr != nil {
		return d.SendErr
	}
	d.sent = append(d.sent, append([]byte(nil), data...))
	return nil
}

func (d *DataChannel) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

// Sent returns every payload passed to Send.
func (d *DataChannel) Sent() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.sent...)
}

// CloseCount returns how many times Close was called.
func (d *DataChannel) CloseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
