package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// sdpWire is the JSON shape of a session description envelope.
// Pointer fields distinguish a missing key from an empty value.
type sdpWire struct {
	Type *string `json:"type"`
	SDP  *string `json:"sdp"`
}

type messageWire struct {
	Message *string `json:"message"`
}

// EncodeSessionDescription serializes desc as {"type":..,"sdp":..}, optionally
// wrapped in base64.
func EncodeSessionDescription(desc SessionDescription, armor Armor) (string, error) {
	if !desc.Kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, desc.Kind)
	}

	typ, sdp := string(desc.Kind), desc.SDP
	data, err := json.Marshal(sdpWire{Type: &typ, SDP: &sdp})
	if err != nil {
		return "", fmt.Errorf("failed to marshal session description: %w", err)
	}

	switch armor {
	case ArmorBase64:
		return base64.StdEncoding.EncodeToString(data), nil
	case ArmorJSON, "":
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown armor %q", armor)
	}
}

// DecodeSessionDescription parses text pasted by the user. Both the JSON form
// and its base64 armor are accepted; surrounding whitespace is ignored.
func DecodeSessionDescription(text string) (SessionDescription, error) {
	var desc SessionDescription

	data, err := unarmor(text)
	if err != nil {
		return desc, err
	}

	var wire sdpWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return desc, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if wire.Type == nil || wire.SDP == nil {
		return desc, fmt.Errorf("%w: both \"type\" and \"sdp\" are required", ErrMalformedEnvelope)
	}
	if *wire.SDP == "" {
		return desc, fmt.Errorf("%w: empty sdp", ErrMalformedEnvelope)
	}

	kind := Kind(*wire.Type)
	if !kind.Valid() {
		return desc, fmt.Errorf("%w: %q", ErrUnsupportedKind, *wire.Type)
	}

	desc.Kind = kind
	desc.SDP = *wire.SDP
	return desc, nil
}

// unarmor returns the JSON bytes of an envelope, decoding base64 when the
// text does not already look like a JSON object.
func unarmor(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedEnvelope)
	}
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}

	// Pasted base64 is often broken across lines.
	compact := strings.Join(strings.Fields(trimmed), "")
	data, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("%w: neither JSON nor base64", ErrMalformedEnvelope)
	}
	return data, nil
}

// EncodeMessage serializes msg as the UTF-8 bytes of {"message":..}.
func EncodeMessage(msg Message) ([]byte, error) {
	text := msg.Text
	data, err := json.Marshal(messageWire{Message: &text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

// DecodeMessage parses a data channel payload. Anything that is not a JSON
// object with a string "message" field yields ErrMalformedMessage.
func DecodeMessage(data []byte) (Message, error) {
	var wire messageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if wire.Message == nil {
		return Message{}, fmt.Errorf("%w: missing \"message\" field", ErrMalformedMessage)
	}
	return Message{Text: *wire.Message}, nil
}
