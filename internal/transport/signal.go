package transport

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// EncodeSignal serializes a session description into the opaque string
// carried as SignalRequest or SignalResponse.
func EncodeSignal(desc webrtc.SessionDescription) (string, error) {
	data, err := json.Marshal(desc)
	if err != nil {
		return "", fmt.Errorf("transport: encode signal: %w", err)
	}
	return string(data), nil
}

// DecodeSignal parses a signal and checks that it has the expected type.
func DecodeSignal(signal string, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal([]byte(signal), &desc); err != nil {
		return desc, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	if desc.Type != want {
		return desc, fmt.Errorf("%w: got %s, want %s", ErrInvalidSignal, desc.Type, want)
	}
	if desc.SDP == "" {
		return desc, fmt.Errorf("%w: empty sdp", ErrInvalidSignal)
	}
	return desc, nil
}
