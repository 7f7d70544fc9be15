package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/1ureka/rtcpaste/internal/config"
	"github.com/1ureka/rtcpaste/internal/console"
	"github.com/1ureka/rtcpaste/internal/engine"
	"github.com/1ureka/rtcpaste/internal/engine/enginetest"
	"github.com/1ureka/rtcpaste/internal/protocol"
	"github.com/1ureka/rtcpaste/internal/signaling"
)

const answerText = `{"type":"answer","sdp":"xyz"}`

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type session struct {
	app     *App
	factory *enginetest.Factory
	rec     *console.Recorder
	input   *io.PipeWriter
	result  chan error
}

// startSession launches a session and waits until it accepts an offer.
func startSession(t *testing.T, cfg *config.Config) *session {
	t.Helper()
	s := launchSession(t, cfg)
	eventually(t, "WaitingForOffer", func() bool {
		return s.app.State() == signaling.WaitingForOffer
	})
	return s
}

// launchSession starts Run without waiting for any state. A relay peer may
// deliver an offer before the first poll could observe WaitingForOffer.
func launchSession(t *testing.T, cfg *config.Config) *session {
	t.Helper()
	r, w := io.Pipe()
	s := &session{
		factory: &enginetest.Factory{},
		rec:     &console.Recorder{},
		input:   w,
		result:  make(chan error, 1),
	}
	s.app = New(cfg, s.rec, s.factory, r)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { s.result <- s.app.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		_ = w.Close()
		select {
		case <-s.result:
		case <-time.After(5 * time.Second):
			t.Error("Run did not return")
		}
	})
	return s
}

func (s *session) typeLine(t *testing.T, line string) {
	t.Helper()
	if _, err := fmt.Fprintln(s.input, line); err != nil {
		t.Fatalf("write input: %v", err)
	}
}

func (s *session) peer(t *testing.T) *enginetest.PeerConnection {
	t.Helper()
	eventually(t, "peer connection", func() bool { return s.factory.Last() != nil })
	return s.factory.Last()
}

func TestAppOfferAndChat(t *testing.T) {
	s := startSession(t, config.NewDefaultConfig())

	s.typeLine(t, "/offer")
	pc := s.peer(t)
	pc.Created(protocol.KindOffer, "offer-sdp")
	pc.Fire(engine.LocalDescriptionSet{})
	pc.GatheringComplete()

	eventually(t, "offer artifact", func() bool { return s.rec.Count(console.LevelArtifact) == 1 })
	if !strings.Contains(s.rec.Filter(console.LevelArtifact)[0], `"type":"offer"`) {
		t.Errorf("artifact is not an offer: %s", s.rec.Filter(console.LevelArtifact)[0])
	}
	eventually(t, "answer hint", func() bool { return s.rec.Contains(console.LevelInfo, "paste its answer") })

	s.typeLine(t, answerText)
	eventually(t, "remote answer", func() bool {
		desc, ok := pc.Remote()
		return ok && desc.Kind == protocol.KindAnswer && desc.SDP == "xyz"
	})

	pc.Fire(engine.RemoteDescriptionSet{})
	dc := pc.Channels()[0]
	pc.Open(dc)
	eventually(t, "chat", func() bool { return s.app.State() == signaling.ChatEstablished })

	s.typeLine(t, "hello there")
	eventually(t, "sent message", func() bool { return len(dc.Sent()) == 1 })
	if got := string(dc.Sent()[0]); got != `{"message":"hello there"}` {
		t.Errorf("sent %s", got)
	}

	pc.Deliver(dc, []byte(`{"message":"hi back"}`))
	eventually(t, "remote line", func() bool { return s.rec.Contains(console.LevelRemote, "hi back") })

	s.typeLine(t, "/quit")
	select {
	case err := <-s.result:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
		s.result <- err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after /quit")
	}
	if dc.CloseCount() == 0 || pc.CloseCount() == 0 {
		t.Error("channel and peer connection should be closed on exit")
	}
}

func TestAppMultiLineOffer(t *testing.T) {
	s := startSession(t, config.NewDefaultConfig())

	for _, line := range []string{"{", `  "type": "offer",`, `  "sdp": "abc"`, "}"} {
		s.typeLine(t, line)
	}

	pc := s.peer(t)
	eventually(t, "remote offer", func() bool {
		desc, ok := pc.Remote()
		return ok && desc.Kind == protocol.KindOffer && desc.SDP == "abc"
	})
	if !s.rec.Contains(console.LevelInfo, "Waiting for the rest") {
		t.Error("expected a hint while the envelope was incomplete")
	}
	if got := s.app.State(); got != signaling.CreatingAnswer {
		t.Errorf("state = %s, want %s", got, signaling.CreatingAnswer)
	}
}

func TestAppRejectsGarbage(t *testing.T) {
	s := startSession(t, config.NewDefaultConfig())

	s.typeLine(t, "definitely not an offer")
	eventually(t, "error line", func() bool {
		return s.rec.Contains(console.LevelError, "Invalid or unsupported offer")
	})
	if got := s.app.State(); got != signaling.WaitingForOffer {
		t.Errorf("state = %s, want %s", got, signaling.WaitingForOffer)
	}
	if s.factory.Last() != nil {
		t.Error("no peer connection should be created for garbage")
	}
}

func TestAppCommands(t *testing.T) {
	s := startSession(t, config.NewDefaultConfig())

	testCases := []struct {
		line  string
		level console.Level
		want  string
	}{
		{"/state", console.LevelInfo, "State: WAITING_FOR_OFFER"},
		{"/stats", console.LevelInfo, "Sent:   0 msg"},
		{"/help", console.LevelPlain, "/offer"},
	}

	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			s.typeLine(t, tc.line)
			eventually(t, tc.want, func() bool { return s.rec.Contains(tc.level, tc.want) })
		})
	}
}

func TestAppBusyOffer(t *testing.T) {
	s := startSession(t, config.NewDefaultConfig())

	s.typeLine(t, "/offer")
	s.peer(t)
	s.typeLine(t, "/offer")
	eventually(t, "busy error", func() bool {
		return s.rec.Contains(console.LevelError, "already running")
	})

	s.typeLine(t, "/reset")
	eventually(t, "reset", func() bool { return s.app.State() == signaling.WaitingForOffer })
	if got := s.factory.Peers()[0].CloseCount(); got == 0 {
		t.Error("reset should close the live peer connection")
	}
}

// TestAppStartsOver checks that a lost connection returns the session to
// WaitingForOffer without user action.
func TestAppStartsOver(t *testing.T) {
	s := startSession(t, config.NewDefaultConfig())

	s.typeLine(t, "/offer")
	pc := s.peer(t)
	pc.Created(protocol.KindOffer, "offer-sdp")
	pc.GatheringComplete()
	eventually(t, "offer", func() bool { return s.app.State() == signaling.WaitingForAnswer })

	s.typeLine(t, answerText)
	eventually(t, "WaitingToConnect", func() bool { return s.app.State() == signaling.WaitingToConnect })
	dc := pc.Channels()[0]
	pc.Open(dc)
	eventually(t, "chat", func() bool { return s.app.State() == signaling.ChatEstablished })

	pc.CloseChannel(dc)
	eventually(t, "restart", func() bool {
		return s.rec.Contains(console.LevelInfo, "Starting over.") &&
			s.app.State() == signaling.WaitingForOffer
	})
	if !s.rec.Contains(console.LevelInfo, "Chat ended.") {
		t.Error("expected the chat-ended line")
	}
}

// TestAppRelay runs two sessions whose envelopes travel over the relay
// instead of being pasted.
func TestAppRelay(t *testing.T) {
	hostCfg := config.NewDefaultConfig()
	hostCfg.Relay.Listen = "127.0.0.1:0"
	hostCfg.Relay.PIN = "424242"
	host := startSession(t, hostCfg)

	var addr string
	eventually(t, "relay address", func() bool {
		for _, line := range host.rec.Filter(console.LevelInfo) {
			if _, err := fmt.Sscanf(line, "Relay listening on %s with PIN", &addr); err == nil {
				return true
			}
		}
		return false
	})

	// The offer is emitted before the guest connects; it must be resent.
	host.typeLine(t, "/offer")
	hostPC := host.peer(t)
	hostPC.Created(protocol.KindOffer, "offer-sdp")
	hostPC.GatheringComplete()
	eventually(t, "host offer", func() bool { return host.app.State() == signaling.WaitingForAnswer })

	guestCfg := config.NewDefaultConfig()
	guestCfg.Relay.URL = addr
	guestCfg.Relay.PIN = "424242"
	guest := launchSession(t, guestCfg)

	// The host resends its pending offer as soon as the guest attaches.
	guestPC := guest.peer(t)
	eventually(t, "relayed offer", func() bool {
		desc, ok := guestPC.Remote()
		return ok && desc.Kind == protocol.KindOffer && desc.SDP == "offer-sdp"
	})

	guestPC.Fire(engine.RemoteDescriptionSet{})
	eventually(t, "CreateAnswer", func() bool { return guestPC.Called("CreateAnswer") })
	guestPC.Created(protocol.KindAnswer, "answer-sdp")
	guestPC.GatheringComplete()

	eventually(t, "relayed answer", func() bool {
		desc, ok := hostPC.Remote()
		return ok && desc.Kind == protocol.KindAnswer && desc.SDP == "answer-sdp"
	})
	if got := host.app.State(); got != signaling.WaitingToConnect {
		t.Errorf("host state = %s, want %s", got, signaling.WaitingToConnect)
	}
}

func TestPasteBuffer(t *testing.T) {
	testCases := []struct {
		name  string
		lines []string
		want  string
	}{
		{"single line json", []string{`{"type":"offer","sdp":"a"}`}, `{"type":"offer","sdp":"a"}`},
		{"base64", []string{"eyJ0eXBlIjoib2ZmZXIifQ=="}, "eyJ0eXBlIjoib2ZmZXIifQ=="},
		{"plain text", []string{"hello"}, "hello"},
		{"split json", []string{"{", `"type":"offer",`, `"sdp":"a"`, "}"}, "{\n\"type\":\"offer\",\n\"sdp\":\"a\"\n}"},
		{"blank line inside", []string{"{", "", `"sdp":"a"}`}, "{\n\n\"sdp\":\"a\"}"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p pasteBuffer
			for i, line := range tc.lines {
				got, complete := p.add(line)
				last := i == len(tc.lines)-1
				if complete != last {
					t.Fatalf("line %d: complete = %v, want %v", i, complete, last)
				}
				if last && got != tc.want {
					t.Errorf("got %q, want %q", got, tc.want)
				}
			}
			if p.active() {
				t.Error("buffer should be empty after a complete envelope")
			}
		})
	}
}

func TestPasteBufferLimit(t *testing.T) {
	var p pasteBuffer
	for i := range maxPasteLines - 1 {
		if _, complete := p.add("{"); complete {
			t.Fatalf("line %d completed early", i)
		}
	}
	if _, complete := p.add("{"); !complete {
		t.Fatal("buffer should give up at the line limit")
	}
	if p.active() {
		t.Error("buffer should reset after giving up")
	}
}
