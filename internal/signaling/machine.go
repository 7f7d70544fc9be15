package signaling

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/1ureka/rtcpaste/internal/chat"
	"github.com/1ureka/rtcpaste/internal/console"
	"github.com/1ureka/rtcpaste/internal/engine"
	"github.com/1ureka/rtcpaste/internal/protocol"
	"github.com/1ureka/rtcpaste/internal/util"
)

// DefaultChannelLabel is used when Options.Label is empty.
const DefaultChannelLabel = "chat"

// eventBacklog bounds how many engine events may queue up between commands.
const eventBacklog = 256

// Options are fixed for the lifetime of a Machine.
type Options struct {
	// Label names the data channel the offering side creates.
	Label string
	// Armor selects how emitted envelopes are written. Pasted envelopes are
	// accepted in either form.
	Armor protocol.Armor
}

type role int

const (
	offerer role = iota + 1
	answerer
)

// attempt is one negotiation round: a peer connection and the channel
// hanging off it.
type attempt struct {
	id       uint64
	role     role
	pc       engine.PeerConnection
	dc       engine.DataChannel
	gathered bool
}

type posted struct {
	attempt uint64
	ev      engine.Event
}

type command struct {
	fn    func() error
	reply chan error
}

// Machine is the signaling state machine. All state lives in one goroutine;
// operations and engine callbacks are queued to it. Before an operation
// runs, every engine event emitted earlier has been applied.
type Machine struct {
	factory  engine.Factory
	console  console.Console
	notifier Notifier
	opts     Options

	chat  *chat.Session
	stats *util.Stats

	cmds     chan command
	events   chan posted
	closed   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// id of the attempt whose events are still wanted; 0 means none
	current atomic.Uint64

	// owned by run
	state    State
	attempts uint64
	live     *attempt
	stopping bool
}

// New starts a machine in Initializing. Call Initialize to begin. A nil
// notifier is allowed.
func New(factory engine.Factory, con console.Console, notifier Notifier, opts Options) *Machine {
	if notifier == nil {
		notifier = NotifierFunc(func(State) {})
	}
	if opts.Label == "" {
		opts.Label = DefaultChannelLabel
	}

	stats := &util.Stats{}
	m := &Machine{
		factory:  factory,
		console:  con,
		notifier: notifier,
		opts:     opts,
		chat:     chat.NewSession(con, stats),
		stats:    stats,
		cmds:     make(chan command),
		events:   make(chan posted, eventBacklog),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
		state:    Initializing,
	}
	go m.run()
	return m
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Initialize drops any live negotiation and moves to WaitingForOffer,
// notifying Initializing on the way. It is valid in every state.
func (m *Machine) Initialize() error {
	return m.do(func() error {
		m.teardown()
		return m.transition(TriggerInitialize)
	})
}

// MakeOffer starts negotiating as the offering side. The offer envelope is
// written to the console once ICE gathering completes.
func (m *Machine) MakeOffer() error {
	return m.do(func() error {
		if err := m.canNegotiate("make offer"); err != nil {
			return err
		}

		a, err := m.newAttempt(offerer)
		if err != nil {
			return err
		}

		dc, err := a.pc.CreateDataChannel(m.opts.Label)
		if err != nil {
			m.console.Errorf("Failed to create data channel: %v", err)
			m.teardown()
			return fmt.Errorf("failed to create data channel: %w", err)
		}
		a.dc = dc

		if err := m.transition(TriggerMakeOffer); err != nil {
			return err
		}
		a.pc.CreateOffer()
		return nil
	})
}

// ProcessOffer applies an offer envelope pasted by the user and starts
// negotiating as the answering side. A malformed envelope or one of the
// wrong kind is reported and leaves the state unchanged.
func (m *Machine) ProcessOffer(text string) error {
	return m.do(func() error {
		if err := m.canNegotiate("process offer"); err != nil {
			return err
		}

		desc, err := m.accept(text, protocol.KindOffer)
		if err != nil {
			m.console.Errorf("Invalid or unsupported offer: %v", err)
			return err
		}

		a, err := m.newAttempt(answerer)
		if err != nil {
			return err
		}

		if err := m.transition(TriggerOfferAccepted); err != nil {
			return err
		}
		a.pc.SetRemoteDescription(desc)
		return nil
	})
}

// ProcessAnswer applies an answer envelope to the pending offer.
func (m *Machine) ProcessAnswer(text string) error {
	return m.do(func() error {
		if m.state != WaitingForAnswer || m.live == nil {
			return fmt.Errorf("%w: process answer in %s", ErrInvalidState, m.state)
		}

		desc, err := m.accept(text, protocol.KindAnswer)
		if err != nil {
			m.console.Errorf("Invalid or unsupported answer: %v", err)
			return err
		}

		// The state moves on before the engine confirms the answer. If the
		// engine rejects it, handleFailure moves back to WaitingForAnswer.
		if err := m.transition(TriggerAnswerAccepted); err != nil {
			return err
		}
		m.live.pc.SetRemoteDescription(desc)
		return nil
	})
}

// SendMessage sends one chat line to the peer.
func (m *Machine) SendMessage(text string) error {
	return m.do(func() error {
		if m.state != ChatEstablished {
			m.console.Errorf("Error. Chat is not established.")
			return fmt.Errorf("%w: send message in %s: %w", ErrInvalidState, m.state, chat.ErrNoChannel)
		}
		return m.chat.Send(text)
	})
}

// Destroy closes any live channel and peer connection and stops the
// machine. It is safe to call more than once and from any goroutine except
// the notifier's. Every later operation returns ErrClosed.
func (m *Machine) Destroy() {
	m.stopOnce.Do(func() {
		_ = m.do(func() error {
			m.teardown()
			m.stopping = true
			return nil
		})
	})
	<-m.done
}

// State returns the current state. After Destroy it returns the last state.
func (m *Machine) State() State {
	var s State
	if err := m.do(func() error { s = m.state; return nil }); err != nil {
		<-m.done
		return m.state
	}
	return s
}

// Stats returns the traffic counters of the current session.
func (m *Machine) Stats() *util.Stats {
	return m.stats
}

// ---------------------------------------------------------------------------
// Actor
// ---------------------------------------------------------------------------

func (m *Machine) do(fn func() error) error {
	c := command{fn: fn, reply: make(chan error, 1)}

	select {
	case m.cmds <- c:
	case <-m.closed:
		return ErrClosed
	}

	select {
	case err := <-c.reply:
		return err
	case <-m.closed:
		return ErrClosed
	}
}

func (m *Machine) run() {
	defer close(m.done)

	for {
		select {
		case p := <-m.events:
			m.handle(p)

		case c := <-m.cmds:
			m.drain()
			c.reply <- c.fn()
			if m.stopping {
				close(m.closed)
				return
			}
		}
	}
}

// drain applies every queued event.
func (m *Machine) drain() {
	for {
		select {
		case p := <-m.events:
			m.handle(p)
		default:
			return
		}
	}
}

// emitter returns the engine callback for attempt id. Events of an attempt
// that is no longer current are dropped at the source.
func (m *Machine) emitter(id uint64) engine.Emitter {
	return func(ev engine.Event) {
		if m.current.Load() != id {
			return
		}
		select {
		case m.events <- posted{attempt: id, ev: ev}:
		case <-m.closed:
		}
	}
}

func (m *Machine) transition(t Trigger) error {
	tr, err := Next(m.state, t)
	if err != nil {
		return err
	}

	m.state = tr.To
	for _, s := range tr.Notifications {
		m.console.Debugf("State: %s", s)
		m.notifier.OnStateChanged(s)
	}
	return nil
}

func (m *Machine) canNegotiate(op string) error {
	if m.live != nil {
		return fmt.Errorf("%w: %s in %s", ErrSessionBusy, op, m.state)
	}
	if m.state != WaitingForOffer {
		return fmt.Errorf("%w: %s in %s", ErrInvalidState, op, m.state)
	}
	return nil
}

// accept decodes a pasted envelope and checks its kind.
func (m *Machine) accept(text string, want protocol.Kind) (protocol.SessionDescription, error) {
	desc, err := protocol.DecodeSessionDescription(text)
	if err != nil {
		return desc, err
	}
	if desc.Kind != want {
		return desc, fmt.Errorf("%w: got %s, want %s", ErrWrongKind, desc.Kind, want)
	}

	m.console.Infof("Accepted %s, fingerprint %s", desc.Kind, util.Fingerprint(desc.SDP))
	return desc, nil
}

func (m *Machine) newAttempt(r role) (*attempt, error) {
	m.attempts++
	id := m.attempts
	m.current.Store(id)

	pc, err := m.factory.NewPeerConnection(m.emitter(id))
	if err != nil {
		m.current.Store(0)
		m.console.Errorf("Failed to create peer connection: %v", err)
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	m.stats.Reset()
	m.live = &attempt{id: id, role: r, pc: pc}
	return m.live, nil
}

// teardown closes the live channel and peer connection, each at most once.
func (m *Machine) teardown() {
	m.current.Store(0)
	m.chat.Detach()

	a := m.live
	m.live = nil
	if a == nil {
		return
	}

	if a.dc != nil {
		if err := a.dc.Close(); err != nil {
			m.console.Debugf("Closing data channel: %v", err)
		}
	}
	if err := a.pc.Close(); err != nil {
		m.console.Debugf("Closing peer connection: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Engine events
// ---------------------------------------------------------------------------

func (m *Machine) handle(p posted) {
	a := m.live
	if a == nil || a.id != p.attempt {
		m.console.Debugf("Dropping %T from stale attempt %d", p.ev, p.attempt)
		return
	}

	switch ev := p.ev.(type) {
	case engine.DescriptionCreated:
		m.console.Debugf("Local %s created.", ev.Description.Kind)
		a.pc.SetLocalDescription(ev.Description)

	case engine.LocalDescriptionSet:
		m.console.Debugf("Local description set, gathering candidates.")

	case engine.RemoteDescriptionSet:
		m.console.Debugf("Remote description set.")
		if a.role == answerer && m.state == CreatingAnswer {
			a.pc.CreateAnswer()
		}

	case engine.NegotiationFailed:
		m.handleFailure(a, ev)

	case engine.ICECandidateGathered:
		m.console.Debugf("ICE candidate: %s", ev.Candidate)

	case engine.ICEGatheringComplete:
		m.handleGathered(a)

	case engine.ICEConnectionStateChanged:
		m.console.Debugf("ICE connection state: %s", ev.State)
		if ev.State.Lost() {
			m.connectionLost(fmt.Sprintf("ICE connection %s", ev.State))
		}

	case engine.ConnectionStateChanged:
		m.console.Debugf("Peer connection state: %s", ev.State)

	case engine.DataChannelReceived:
		if a.dc != nil {
			m.console.Debugf("Ignoring extra data channel %q", ev.Channel.Label())
			return
		}
		m.console.Debugf("Data channel %q received.", ev.Channel.Label())
		a.dc = ev.Channel

	case engine.DataChannelOpened:
		m.handleOpened(a, ev.Label)

	case engine.DataChannelClosed:
		m.connectionLost(fmt.Sprintf("data channel %q closed", ev.Label))

	case engine.DataChannelMessage:
		if m.state != ChatEstablished {
			m.console.Debugf("Dropping message received in %s", m.state)
			return
		}
		m.chat.Receive(ev.Data)

	default:
		m.console.Debugf("Unhandled engine event %T", ev)
	}
}

func (m *Machine) handleFailure(a *attempt, ev engine.NegotiationFailed) {
	m.console.Errorf("%v", ev)

	if ev.Op == engine.OpSetRemote && a.role == offerer && m.state == WaitingToConnect {
		m.console.Errorf("Invalid or unsupported answer.")
		_ = m.transition(TriggerAnswerRejected)
	}
}

// handleGathered emits the local description once per attempt.
func (m *Machine) handleGathered(a *attempt) {
	if a.gathered {
		m.console.Debugf("Ignoring repeated gathering completion.")
		return
	}

	var (
		trigger Trigger
		title   string
	)
	switch m.state {
	case CreatingOffer:
		trigger, title = TriggerOfferGathered, "Your offer is:"
	case CreatingAnswer:
		trigger, title = TriggerAnswerGathered, "Here is your answer:"
	default:
		m.console.Debugf("Gathering completed in %s", m.state)
		return
	}

	desc, ok := a.pc.LocalDescription()
	if !ok {
		m.console.Errorf("ICE gathering completed without a local description.")
		return
	}
	text, err := protocol.EncodeSessionDescription(desc, m.opts.Armor)
	if err != nil {
		m.console.Errorf("Failed to encode %s: %v", desc.Kind, err)
		return
	}
	a.gathered = true

	m.console.Printf("%s", title)
	m.console.Artifact(text)
	m.console.Infof("Fingerprint: %s", util.Fingerprint(desc.SDP))
	_ = m.transition(trigger)
}

func (m *Machine) handleOpened(a *attempt, label string) {
	if a.dc == nil {
		m.console.Debugf("Data channel %q opened before it was known.", label)
		return
	}
	if err := m.transition(TriggerChannelOpened); err != nil {
		m.console.Debugf("Ignoring channel open: %v", err)
		return
	}

	m.chat.Attach(a.dc)
	m.console.Infof("Chat established.")
}

// connectionLost ends the session. Repeated reports are ignored.
func (m *Machine) connectionLost(reason string) {
	established := m.state == ChatEstablished
	if _, err := Next(m.state, TriggerConnectionLost); err != nil {
		m.console.Debugf("Ignoring %s: %v", reason, err)
		return
	}

	m.console.Debugf("%s", reason)
	m.teardown()

	if established {
		m.console.Infof("Chat ended.")
		m.console.Infof("%s", m.stats.Summary())
	} else {
		m.console.Errorf("Connection failed: %s", reason)
	}
	_ = m.transition(TriggerConnectionLost)
}
