package app

import (
	"context"
	"sync"

	"github.com/1ureka/rtcpaste/internal/console"
	"github.com/1ureka/rtcpaste/internal/relay"
	"github.com/1ureka/rtcpaste/internal/signaling"
)

// relayConsole forwards every emitted envelope to the relay peer, if one
// is connected, in addition to printing it.
type relayConsole struct {
	console.Console

	mu     sync.Mutex
	conn   *relay.Conn
	server *relay.Server
	last   string
}

func (c *relayConsole) Artifact(text string) {
	c.Console.Artifact(text)

	c.mu.Lock()
	c.last = text
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		go c.send(conn, text)
	}
}

// send runs off the machine's goroutine so a slow peer cannot stall it.
func (c *relayConsole) send(conn *relay.Conn, text string) {
	if err := conn.Send(text); err != nil {
		c.Console.Errorf("Relay: %v", err)
		return
	}
	c.Console.Infof("Envelope sent over relay.")
}

func (c *relayConsole) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.server != nil {
		_ = c.server.Close()
		c.server = nil
	}
}

// startRelay listens or dials as configured. The connection is delivered
// on conns once established.
func (a *App) startRelay(ctx context.Context, conns chan<- *relay.Conn) error {
	cfg := a.cfg.Relay

	switch {
	case cfg.Listen != "":
		server := relay.NewServer(cfg.PIN)
		addr, err := server.Start(cfg.Listen)
		if err != nil {
			return err
		}
		a.relay.mu.Lock()
		a.relay.server = server
		a.relay.mu.Unlock()

		a.console.Infof("Relay listening on %s with PIN %s", addr, server.PIN())
		go func() {
			conn, err := server.Accept(ctx)
			if err != nil {
				return
			}
			_ = server.Close()
			conns <- conn
		}()

	case cfg.URL != "":
		conn, err := relay.Dial(ctx, cfg.URL, cfg.PIN)
		if err != nil {
			return err
		}
		conns <- conn
	}
	return nil
}

// attachRelay starts forwarding envelopes over conn. An envelope emitted
// before the peer connected is sent now if it is still pending.
func (a *App) attachRelay(conn *relay.Conn, envelopes chan<- string) {
	a.console.Infof("Relay peer connected.")

	a.relay.mu.Lock()
	a.relay.conn = conn
	last := a.relay.last
	a.relay.mu.Unlock()

	switch a.machine.State() {
	case signaling.WaitingForAnswer, signaling.WaitingToConnect:
		if last != "" {
			go a.relay.send(conn, last)
		}
	}

	go func() {
		for {
			env, err := conn.Receive()
			if err != nil {
				a.console.Debugf("Relay closed: %v", err)
				return
			}
			select {
			case envelopes <- env:
			case <-a.done:
				return
			}
		}
	}()
}
