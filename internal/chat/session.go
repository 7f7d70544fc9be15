// Package chat turns chat lines into data channel payloads and back.
package chat

import (
	"errors"
	"fmt"
	"sync"

	"github.com/1ureka/rtcpaste/internal/console"
	"github.com/1ureka/rtcpaste/internal/engine"
	"github.com/1ureka/rtcpaste/internal/protocol"
	"github.com/1ureka/rtcpaste/internal/util"
)

// ErrNoChannel is returned by Send while no data channel is attached.
var ErrNoChannel = errors.New("chat is not established")

// Session holds the data channel of the current chat. Its lifetime is
// managed by the signaling machine through Attach and Detach.
type Session struct {
	console console.Console
	stats   *util.Stats

	mu      sync.Mutex
	channel engine.DataChannel
}

// NewSession creates a session with no channel. stats may be nil.
func NewSession(con console.Console, stats *util.Stats) *Session {
	if stats == nil {
		stats = &util.Stats{}
	}
	return &Session{console: con, stats: stats}
}

// Attach makes dc the channel used by Send.
func (s *Session) Attach(dc engine.DataChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel = dc
}

// Detach forgets the current channel and returns it, or nil.
func (s *Session) Detach() engine.DataChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	dc := s.channel
	s.channel = nil
	return dc
}

// Channel returns the attached channel, or nil.
func (s *Session) Channel() engine.DataChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Stats returns the traffic counters of this session.
func (s *Session) Stats() *util.Stats {
	return s.stats
}

// Send encodes text and writes it to the channel, then echoes it locally.
func (s *Session) Send(text string) error {
	dc := s.Channel()
	if dc == nil {
		s.console.Errorf("Error. Chat is not established.")
		return ErrNoChannel
	}

	data, err := protocol.EncodeMessage(protocol.Message{Text: text})
	if err != nil {
		return err
	}

	if err := dc.Send(data); err != nil {
		s.console.Errorf("Failed to send message: %v", err)
		return fmt.Errorf("failed to send on %q: %w", dc.Label(), err)
	}

	s.stats.AddSent(len(data))
	s.console.Printf("me> %s", text)
	return nil
}

// Receive decodes an inbound payload and shows it. A payload that does not
// decode is reported and dropped; the channel stays up.
func (s *Session) Receive(data []byte) {
	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		s.stats.AddMalformed(len(data))
		s.console.Errorf("Malformed message received")
		s.console.Debugf("%v", err)
		return
	}

	s.stats.AddRecv(len(data))
	s.console.Remotef("peer> %s", msg.Text)
}
