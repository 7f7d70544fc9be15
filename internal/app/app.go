// Package app contains the interactive session loop: it reads lines from the
// user, routes them by signaling state and reacts to state changes.
package app

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/1ureka/rtcpaste/internal/config"
	"github.com/1ureka/rtcpaste/internal/console"
	"github.com/1ureka/rtcpaste/internal/engine"
	"github.com/1ureka/rtcpaste/internal/relay"
	"github.com/1ureka/rtcpaste/internal/signaling"
)

// maxLineSize bounds a single input line; base64 envelopes with many
// candidates can be long.
const maxLineSize = 1024 * 1024

var hints = map[signaling.State]string{
	signaling.WaitingForOffer:  "Paste the offer from the other side, or type /offer to create one.",
	signaling.CreatingOffer:    "Creating offer, gathering ICE candidates...",
	signaling.WaitingForAnswer: "Send the offer above to the other side, then paste its answer here.",
	signaling.CreatingAnswer:   "Creating answer, gathering ICE candidates...",
	signaling.WaitingToConnect: "Send the answer above to the other side. Waiting for the connection...",
	signaling.ChatEstablished:  "Type a message and press Enter. /quit leaves.",
}

const help = `Commands:
  /offer   create an offer (this side starts)
  /reset   drop the current negotiation and start over
  /state   show the current state
  /stats   show chat traffic
  /quit    leave`

// App is one interactive session.
type App struct {
	cfg     *config.Config
	console console.Console
	in      io.Reader

	machine *signaling.Machine
	relay   *relayConsole
	states  chan signaling.State
	paste   pasteBuffer
	done    chan struct{}
}

// New creates an App and its signaling machine. The relay, when configured,
// is set up by Run. Run may be called once.
func New(cfg *config.Config, con console.Console, factory engine.Factory, in io.Reader) *App {
	a := &App{
		cfg:     cfg,
		console: con,
		in:      in,
		relay:   &relayConsole{Console: con},
		states:  make(chan signaling.State, 64),
		done:    make(chan struct{}),
	}
	a.machine = signaling.New(factory, a.relay, signaling.NotifierFunc(a.notify), signaling.Options{
		Label: cfg.WebRTC.ChannelLabel,
		Armor: cfg.Envelope.Armor,
	})
	return a
}

// notify runs on the machine's goroutine and must not call back into it.
func (a *App) notify(s signaling.State) {
	select {
	case a.states <- s:
	case <-a.done:
	}
}

// State returns the signaling state.
func (a *App) State() signaling.State {
	return a.machine.State()
}

// Run drives the session until ctx is cancelled, input ends or the user
// types /quit.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		close(a.done)
		a.machine.Destroy()
	}()

	conns := make(chan *relay.Conn, 1)
	if err := a.startRelay(ctx, conns); err != nil {
		return err
	}
	defer a.relay.close()

	envelopes := make(chan string, 4)
	lines := readLines(a.in, a.done)

	if err := a.machine.Initialize(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case s := <-a.states:
			a.onState(s)

		case conn := <-conns:
			a.attachRelay(conn, envelopes)

		case env := <-envelopes:
			a.onEnvelope(env)

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := a.onLine(line); quit {
				return nil
			}
		}
	}
}

func (a *App) onState(s signaling.State) {
	if s == signaling.ChatEnded {
		a.console.Infof("Starting over.")
		a.report(a.machine.Initialize())
		return
	}
	if hint, ok := hints[s]; ok {
		a.console.Infof("%s", hint)
	}
}

// onLine handles one line typed or pasted by the user. It reports whether
// the session should end.
func (a *App) onLine(line string) bool {
	text := strings.TrimSpace(line)
	if text == "" && !a.paste.active() {
		return false
	}

	switch text {
	case "/quit", "/exit":
		return true
	case "/offer":
		a.report(a.machine.MakeOffer())
		return false
	case "/reset":
		a.paste.reset()
		a.report(a.machine.Initialize())
		return false
	case "/state":
		a.console.Infof("State: %s", a.machine.State())
		return false
	case "/stats":
		a.console.Infof("%s", a.machine.Stats().Summary())
		return false
	case "/help":
		a.console.Printf("%s", help)
		return false
	}

	state := a.machine.State()
	switch state {
	case signaling.WaitingForOffer, signaling.WaitingForAnswer:
		envelope, complete := a.paste.add(line)
		if !complete {
			if a.paste.held() == 1 {
				a.console.Infof("Waiting for the rest of the envelope...")
			}
			return false
		}
		a.apply(state, envelope)

	case signaling.ChatEstablished:
		a.report(a.machine.SendMessage(line))

	default:
		a.console.Printf("%s", line)
	}
	return false
}

// onEnvelope handles an envelope that arrived over the relay.
func (a *App) onEnvelope(env string) {
	state := a.machine.State()
	switch state {
	case signaling.WaitingForOffer, signaling.WaitingForAnswer:
		a.console.Infof("Envelope received over relay.")
		a.apply(state, env)
	default:
		a.console.Debugf("Ignoring relayed envelope in %s", state)
	}
}

func (a *App) apply(state signaling.State, envelope string) {
	if state == signaling.WaitingForOffer {
		a.report(a.machine.ProcessOffer(envelope))
		return
	}
	a.report(a.machine.ProcessAnswer(envelope))
}

// report shows errors the machine has not already shown.
func (a *App) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, signaling.ErrSessionBusy):
		a.console.Errorf("A negotiation is already running. Type /reset to start over.")
	case errors.Is(err, signaling.ErrInvalidState), errors.Is(err, signaling.ErrClosed):
		a.console.Errorf("%v", err)
	default:
		a.console.Debugf("%v", err)
	}
}

// readLines scans r in its own goroutine. The channel is closed at EOF.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}
