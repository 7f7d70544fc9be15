package webrtc

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/rtcpaste/internal/engine"
)

var _ engine.DataChannel = (*DataChannel)(nil)

const (
	highWaterMark = 256 * 1024 // wait before sending when bufferedAmount exceeds this
	lowWaterMark  = 64 * 1024  // bufferedAmount at which a waiting Send resumes
	drainTimeout  = 5 * time.Second
)

// ErrSendStalled is returned when the peer stops draining the channel.
var ErrSendStalled = errors.New("data channel send buffer did not drain")

// DataChannel wraps a pion DataChannel and reports its lifecycle and
// inbound messages as engine events.
type DataChannel struct {
	raw  *webrtc.DataChannel
	emit engine.Emitter

	gate      *drainGate
	closed    chan struct{}
	openOnce  sync.Once
	closeOnce sync.Once
}

func newDataChannel(raw *webrtc.DataChannel, emit engine.Emitter) *DataChannel {
	return &DataChannel{
		raw:    raw,
		emit:   emit,
		gate:   newDrainGate(drainTimeout),
		closed: make(chan struct{}),
	}
}

// watch registers the callbacks. A channel received from the remote peer
// may already be open, in which case the open event is emitted at once.
func (c *DataChannel) watch() {
	label := c.raw.Label()
	opened := func() {
		c.openOnce.Do(func() { c.emit(engine.DataChannelOpened{Label: label}) })
	}
	closed := func() {
		c.closeOnce.Do(func() {
			close(c.closed)
			c.emit(engine.DataChannelClosed{Label: label})
		})
	}

	c.raw.SetBufferedAmountLowThreshold(lowWaterMark)
	c.raw.OnBufferedAmountLow(c.gate.signal)

	c.raw.OnOpen(opened)
	c.raw.OnClose(closed)
	c.raw.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.emit(engine.DataChannelMessage{Label: label, Data: msg.Data})
	})

	if c.raw.ReadyState() == webrtc.DataChannelStateOpen {
		opened()
	}
}

func (c *DataChannel) Label() string { return c.raw.Label() }

// Send writes data as one binary message. While more than highWaterMark
// bytes are queued it waits for the buffer to drain first.
func (c *DataChannel) Send(data []byte) error {
	if err := c.gate.wait(c.raw.BufferedAmount, c.closed); err != nil {
		return err
	}
	return c.raw.Send(data)
}

func (c *DataChannel) Close() error { return c.raw.Close() }

// drainGate holds senders back while the send buffer is above highWaterMark.
type drainGate struct {
	drained chan struct{}
	timeout time.Duration
}

func newDrainGate(timeout time.Duration) *drainGate {
	return &drainGate{drained: make(chan struct{}, 1), timeout: timeout}
}

// signal is the buffered-amount-low callback.
func (g *drainGate) signal() {
	select {
	case g.drained <- struct{}{}:
	default:
	}
}

// wait returns once buffered reports at most highWaterMark, a drain is
// signalled, closed is closed or the timeout passes.
func (g *drainGate) wait(buffered func() uint64, closed <-chan struct{}) error {
	if buffered() <= highWaterMark {
		return nil
	}

	// A token left by an earlier callback says nothing about the buffer now.
	select {
	case <-g.drained:
	default:
	}
	if buffered() <= highWaterMark {
		return nil
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case <-g.drained:
		return nil
	case <-closed:
		return webrtc.ErrConnectionClosed
	case <-timer.C:
		return ErrSendStalled
	}
}
