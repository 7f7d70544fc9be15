// Package webrtc implements the negotiation engine on top of pion.
package webrtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/rtcpaste/internal/config"
	"github.com/1ureka/rtcpaste/internal/engine"
	"github.com/1ureka/rtcpaste/internal/protocol"
)

var (
	_ engine.Factory        = (*Factory)(nil)
	_ engine.PeerConnection = (*PeerConnection)(nil)
)

// Factory creates pion PeerConnections from the WebRTC configuration.
type Factory struct {
	api     *webrtc.API
	config  webrtc.Configuration
	ordered bool
}

// FactoryOption customizes a Factory.
type FactoryOption func(*webrtc.SettingEngine)

// WithLoopbackCandidates gathers loopback host candidates, so two peers on
// the same machine can connect without any network.
func WithLoopbackCandidates() FactoryOption {
	return func(se *webrtc.SettingEngine) {
		se.SetIncludeLoopbackCandidate(true)
	}
}

// NewFactory builds a Factory. DTLS roles and SCTP parameters stay at pion's
// defaults.
func NewFactory(cfg config.WebRTCConfig, opts ...FactoryOption) *Factory {
	se := webrtc.SettingEngine{}
	for _, opt := range opts {
		opt(&se)
	}

	semantics := webrtc.SDPSemanticsUnifiedPlan
	if cfg.Legacy {
		semantics = webrtc.SDPSemanticsUnifiedPlanWithFallback
	}

	return &Factory{
		api: webrtc.NewAPI(webrtc.WithSettingEngine(se)),
		config: webrtc.Configuration{
			ICEServers:   iceServers(cfg.ICEServers),
			SDPSemantics: semantics,
		},
		ordered: cfg.Ordered,
	}
}

func iceServers(servers []config.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		server := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			server.Credential = s.Credential
		}
		out = append(out, server)
	}
	return out
}

// NewPeerConnection creates a PeerConnection and routes all of its
// callbacks into emit.
func (f *Factory) NewPeerConnection(emit engine.Emitter) (engine.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, err
	}

	p := &PeerConnection{raw: pc, emit: emit, ordered: f.ordered, done: make(chan struct{})}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// A nil candidate ends gathering; completion is reported through
		// the gathering promise instead.
		if c != nil {
			emit(engine.ICECandidateGathered{Candidate: c.String()})
		}
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		emit(engine.ICEConnectionStateChanged{State: engine.ICEConnectionState(state.String())})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		emit(engine.ConnectionStateChanged{State: state.String()})
	})

	// The answering side learns about the chat channel from the offer.
	pc.OnDataChannel(func(raw *webrtc.DataChannel) {
		dc := newDataChannel(raw, emit)
		emit(engine.DataChannelReceived{Channel: dc})
		dc.watch()
	})

	return p, nil
}

// PeerConnection runs every pion call in its own goroutine and reports the
// outcome as an event, so the caller never blocks on the engine.
type PeerConnection struct {
	raw     *webrtc.PeerConnection
	emit    engine.Emitter
	ordered bool

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (p *PeerConnection) CreateDataChannel(label string) (engine.DataChannel, error) {
	ordered := p.ordered
	raw, err := p.raw.CreateDataChannel(label, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, err
	}

	dc := newDataChannel(raw, p.emit)
	dc.watch()
	return dc, nil
}

func (p *PeerConnection) CreateOffer() {
	go func() {
		offer, err := p.raw.CreateOffer(nil)
		if err != nil {
			p.emit(engine.NegotiationFailed{Op: engine.OpCreateOffer, Err: err})
			return
		}
		p.emit(engine.DescriptionCreated{Description: fromPion(offer)})
	}()
}

func (p *PeerConnection) CreateAnswer() {
	go func() {
		answer, err := p.raw.CreateAnswer(nil)
		if err != nil {
			p.emit(engine.NegotiationFailed{Op: engine.OpCreateAnswer, Err: err})
			return
		}
		p.emit(engine.DescriptionCreated{Description: fromPion(answer)})
	}()
}

// SetLocalDescription applies desc and starts ICE gathering. Completion is
// reported once as ICEGatheringComplete; no candidate is trickled.
func (p *PeerConnection) SetLocalDescription(desc protocol.SessionDescription) {
	go func() {
		sd, err := toPion(desc)
		if err != nil {
			p.emit(engine.NegotiationFailed{Op: engine.OpSetLocal, Err: err})
			return
		}

		// The promise must exist before gathering can start.
		gathered := webrtc.GatheringCompletePromise(p.raw)

		if err := p.raw.SetLocalDescription(sd); err != nil {
			p.emit(engine.NegotiationFailed{Op: engine.OpSetLocal, Err: err})
			return
		}
		p.emit(engine.LocalDescriptionSet{})

		select {
		case <-gathered:
			p.emit(engine.ICEGatheringComplete{})
		case <-p.done:
		}
	}()
}

func (p *PeerConnection) SetRemoteDescription(desc protocol.SessionDescription) {
	go func() {
		sd, err := toPion(desc)
		if err != nil {
			p.emit(engine.NegotiationFailed{Op: engine.OpSetRemote, Err: err})
			return
		}
		if err := p.raw.SetRemoteDescription(sd); err != nil {
			p.emit(engine.NegotiationFailed{Op: engine.OpSetRemote, Err: err})
			return
		}
		p.emit(engine.RemoteDescriptionSet{})
	}()
}

func (p *PeerConnection) LocalDescription() (protocol.SessionDescription, bool) {
	sd := p.raw.LocalDescription()
	if sd == nil {
		return protocol.SessionDescription{}, false
	}
	return fromPion(*sd), true
}

// Close closes the PeerConnection once; later calls return the first result.
func (p *PeerConnection) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.closeErr = p.raw.Close()
	})
	return p.closeErr
}

var errUnsupportedSDPType = errors.New("unsupported sdp type")

func toPion(desc protocol.SessionDescription) (webrtc.SessionDescription, error) {
	switch desc.Kind {
	case protocol.KindOffer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: desc.SDP}, nil
	case protocol.KindAnswer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: desc.SDP}, nil
	default:
		return webrtc.SessionDescription{}, errUnsupportedSDPType
	}
}

func fromPion(sd webrtc.SessionDescription) protocol.SessionDescription {
	return protocol.SessionDescription{Kind: protocol.Kind(sd.Type.String()), SDP: sd.SDP}
}
