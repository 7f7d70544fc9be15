package relay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startServer(t *testing.T, pin string) (*Server, string) {
	t.Helper()
	s := NewServer(pin)
	addr, err := s.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, addr.String()
}

func TestRelayExchange(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, addr := startServer(t, "1234")

	accepted := make(chan *Conn, 1)
	go func() {
		conn, err := s.Accept(ctx)
		if err != nil {
			t.Errorf("Accept failed: %v", err)
		}
		accepted <- conn
	}()

	client, err := Dial(ctx, addr, "1234")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	server := <-accepted
	if server == nil {
		t.FailNow()
	}
	defer server.Close()

	offer := `{"type":"offer","sdp":"v=0\r\n"}`
	if err := client.Send(offer); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	got, err := server.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if got != offer {
		t.Errorf("got %q, want %q", got, offer)
	}

	answer := "eyJ0eXBlIjoiYW5zd2VyIn0="
	if err := server.Send(answer); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got, err := client.Receive(); err != nil || got != answer {
		t.Errorf("got %q, %v, want %q", got, err, answer)
	}

	// Closing one side ends the other side's Receive.
	client.Close()
	if _, err := server.Receive(); err == nil {
		t.Error("Receive succeeded after the peer closed")
	}
}

func TestRelayRejectsBadPIN(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, addr := startServer(t, "1234")

	for _, pin := range []string{"", "0000", "12345"} {
		_, err := Dial(ctx, addr, pin)
		if !errors.Is(err, websocket.ErrBadHandshake) {
			t.Errorf("Dial with pin %q: got %v, want bad handshake", pin, err)
		}
	}
}

func TestRelayAcceptsOnePeer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, addr := startServer(t, "1234")

	first, err := Dial(ctx, addr, s.PIN())
	if err != nil {
		t.Fatalf("first Dial failed: %v", err)
	}
	defer first.Close()

	second, err := Dial(ctx, addr, s.PIN())
	if err != nil {
		t.Fatalf("second Dial failed: %v", err)
	}
	defer second.Close()

	if _, err := second.Receive(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("second peer: got %v, want policy violation close", err)
	}
}

func TestAcceptHonorsContext(t *testing.T) {
	s, _ := startServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Accept(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestGeneratePIN(t *testing.T) {
	pin := GeneratePIN(PINLength)
	if len(pin) != PINLength {
		t.Fatalf("len(%q) = %d, want %d", pin, len(pin), PINLength)
	}
	if strings.Trim(pin, "0123456789") != "" {
		t.Errorf("PIN %q is not numeric", pin)
	}
	if got := NewServer("").PIN(); len(got) != PINLength {
		t.Errorf("generated server PIN %q has wrong length", got)
	}
}

func TestNormalizeURL(t *testing.T) {
	testCases := []struct {
		raw, pin string
		want     string
	}{
		{"192.168.1.10:9000", "1234", "ws://192.168.1.10:9000/ws?pin=1234"},
		{"ws://host:9000", "1", "ws://host:9000/ws?pin=1"},
		{"wss://example.devtunnels.ms/ws", "42", "wss://example.devtunnels.ms/ws?pin=42"},
		{"https://example.devtunnels.ms", "42", "wss://example.devtunnels.ms/ws?pin=42"},
		{" ws://host:1/ws?pin=99 ", "", "ws://host:1/ws?pin=99"},
		{"host:1", "", "ws://host:1/ws"},
	}

	for _, tc := range testCases {
		got, err := NormalizeURL(tc.raw, tc.pin)
		if err != nil {
			t.Errorf("NormalizeURL(%q) failed: %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeURL(%q, %q) = %q, want %q", tc.raw, tc.pin, got, tc.want)
		}
	}

	for _, raw := range []string{"", "ftp://host", "://"} {
		if _, err := NormalizeURL(raw, "1"); err == nil {
			t.Errorf("NormalizeURL(%q) succeeded", raw)
		}
	}
}
