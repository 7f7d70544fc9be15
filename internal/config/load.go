package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable, e.g.
// RTCPASTE_WEBRTC_LEGACY.
const EnvPrefix = "RTCPASTE"

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"debug":        "log.debug",
	"legacy":       "webrtc.legacy",
	"label":        "webrtc.channel_label",
	"armor":        "envelope.armor",
	"relay-listen": "relay.listen",
	"relay-url":    "relay.url",
	"relay-pin":    "relay.pin",
}

// Load reads the configuration. An explicit path must exist; without one,
// $HOME/.rtcpaste.yaml is read if present. Environment variables override
// the file and flags that were set override both. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, NewDefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, ".rtcpaste.yaml"))
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if flags != nil && flags.Changed("ice") {
		urls, err := flags.GetStringSlice("ice")
		if err != nil {
			return nil, err
		}
		cfg.WebRTC.ICEServers = nil
		for _, u := range urls {
			cfg.WebRTC.ICEServers = append(cfg.WebRTC.ICEServers, ICEServer{URLs: []string{u}})
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ConfigFileUsed reports which file Load would read for path.
func ConfigFileUsed(path string) string {
	if path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".rtcpaste.yaml")
}

func setDefaults(v *viper.Viper, cfg *Config) {
	servers := make([]map[string]any, 0, len(cfg.WebRTC.ICEServers))
	for _, s := range cfg.WebRTC.ICEServers {
		servers = append(servers, map[string]any{
			"urls":       s.URLs,
			"username":   s.Username,
			"credential": s.Credential,
		})
	}

	v.SetDefault("webrtc.ice_servers", servers)
	v.SetDefault("webrtc.legacy", cfg.WebRTC.Legacy)
	v.SetDefault("webrtc.channel_label", cfg.WebRTC.ChannelLabel)
	v.SetDefault("webrtc.ordered", cfg.WebRTC.Ordered)
	v.SetDefault("envelope.armor", string(cfg.Envelope.Armor))
	v.SetDefault("relay.listen", cfg.Relay.Listen)
	v.SetDefault("relay.url", cfg.Relay.URL)
	v.SetDefault("relay.pin", cfg.Relay.PIN)
	v.SetDefault("log.debug", cfg.Log.Debug)
}

// Marshal renders cfg as YAML, in the format Load reads.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
