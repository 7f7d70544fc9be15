package relay

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Dial connects to a relay server. raw may be a bare host:port or a full
// ws:// or wss:// URL; the PIN is added as a query parameter.
func Dial(ctx context.Context, raw, pin string) (*Conn, error) {
	wsURL, err := NormalizeURL(raw, pin)
	if err != nil {
		return nil, err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}
	return newConn(ws), nil
}

// NormalizeURL validates raw and returns the relay endpoint URL, e.g.
//
//	192.168.1.10:9000 -> ws://192.168.1.10:9000/ws?pin=1234
func NormalizeURL(raw, pin string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid relay URL: %s", raw)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid relay URL scheme: %s", u.Scheme)
	}

	u.Path = "/ws"
	q := url.Values{}
	if pin != "" {
		q.Set("pin", pin)
	} else if existing := u.Query().Get("pin"); existing != "" {
		q.Set("pin", existing)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}
