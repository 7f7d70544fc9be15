// Package config holds the application configuration and loads it from a
// YAML file, RTCPASTE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/1ureka/rtcpaste/internal/protocol"
)

var (
	ErrNoICEServers      = errors.New("at least one ICE server must be configured")
	ErrInvalidICEServer  = errors.New("invalid ICE server")
	ErrEmptyChannelLabel = errors.New("data channel label must be set")
	ErrRelayConflict     = errors.New("relay listen and relay url are mutually exclusive")
	ErrInvalidArmor      = errors.New("envelope armor must be json or base64")
)

// STUN servers used when nothing else is configured. No TURN: the tool is
// meant for direct P2P connectivity with zero infrastructure.
var defaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Config holds all application configuration.
type Config struct {
	WebRTC   WebRTCConfig   `mapstructure:"webrtc" yaml:"webrtc"`
	Envelope EnvelopeConfig `mapstructure:"envelope" yaml:"envelope"`
	Relay    RelayConfig    `mapstructure:"relay" yaml:"relay"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ICEServer is one STUN or TURN server.
type ICEServer struct {
	URLs       []string `mapstructure:"urls" yaml:"urls"`
	Username   string   `mapstructure:"username" yaml:"username,omitempty"`
	Credential string   `mapstructure:"credential" yaml:"credential,omitempty"`
}

// WebRTCConfig holds the negotiation options.
type WebRTCConfig struct {
	ICEServers []ICEServer `mapstructure:"ice_servers" yaml:"ice_servers"`
	// Legacy accepts peers that still speak Plan B SDP.
	Legacy       bool   `mapstructure:"legacy" yaml:"legacy"`
	ChannelLabel string `mapstructure:"channel_label" yaml:"channel_label"`
	Ordered      bool   `mapstructure:"ordered" yaml:"ordered"`
}

// EnvelopeConfig controls how emitted envelopes are written.
type EnvelopeConfig struct {
	Armor protocol.Armor `mapstructure:"armor" yaml:"armor"`
}

// RelayConfig enables the optional WebSocket paste relay. At most one of
// Listen and URL may be set.
type RelayConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen,omitempty"`
	URL    string `mapstructure:"url" yaml:"url,omitempty"`
	PIN    string `mapstructure:"pin" yaml:"pin,omitempty"`
}

type LogConfig struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// NewDefaultConfig returns a configuration with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		WebRTC: WebRTCConfig{
			ICEServers: []ICEServer{
				{URLs: append([]string(nil), defaultSTUNServers...)},
			},
			ChannelLabel: "chat",
			Ordered:      true,
		},
		Envelope: EnvelopeConfig{
			Armor: protocol.ArmorJSON,
		},
	}
}

// Validate ensures the configuration is valid.
func (c *Config) Validate() error {
	if len(c.WebRTC.ICEServers) == 0 {
		return ErrNoICEServers
	}
	for i, s := range c.WebRTC.ICEServers {
		if err := s.validate(); err != nil {
			return fmt.Errorf("ice_servers[%d]: %w", i, err)
		}
	}
	if strings.TrimSpace(c.WebRTC.ChannelLabel) == "" {
		return ErrEmptyChannelLabel
	}
	switch c.Envelope.Armor {
	case protocol.ArmorJSON, protocol.ArmorBase64:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidArmor, c.Envelope.Armor)
	}
	if c.Relay.Listen != "" && c.Relay.URL != "" {
		return ErrRelayConflict
	}
	return nil
}

func (s ICEServer) validate() error {
	if len(s.URLs) == 0 {
		return fmt.Errorf("%w: no urls", ErrInvalidICEServer)
	}
	for _, u := range s.URLs {
		scheme, _, ok := strings.Cut(u, ":")
		if !ok {
			return fmt.Errorf("%w: %q has no scheme", ErrInvalidICEServer, u)
		}
		switch scheme {
		case "stun", "stuns":
		case "turn", "turns":
			if s.Username == "" || s.Credential == "" {
				return fmt.Errorf("%w: %q needs a username and credential", ErrInvalidICEServer, u)
			}
		default:
			return fmt.Errorf("%w: unknown scheme in %q", ErrInvalidICEServer, u)
		}
	}
	return nil
}
