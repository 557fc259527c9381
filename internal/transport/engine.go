// Package transport holds the realtime media engine used by a session: the
// client side that produces offers and consumes answers, and a host side
// that answers offers.
package transport

import (
	"context"
	"time"
)

// Engine is one single-use realtime connection. After Close every method
// returns ErrClosed; callers construct a new Engine instead.
type Engine interface {
	GenerateOffer(ctx context.Context) (string, error)
	ApplyAnswer(ctx context.Context, answer string) error
	AttachInput(ctx context.Context) error
	Stats(ctx context.Context) (Snapshot, error)
	Close() error
}

// Factory constructs a fresh Engine.
type Factory func() (Engine, error)

// KeyboardLocker is an optional Engine capability that captures system key
// combinations for the stream.
type KeyboardLocker interface {
	LockKeyboard(ctx context.Context) error
}

// KeyboardLock reports whether e supports keyboard lock.
func KeyboardLock(e Engine) (KeyboardLocker, bool) {
	kl, ok := e.(KeyboardLocker)
	return kl, ok
}

// Report types the telemetry pipeline reads.
const (
	ReportInboundRTP    = "inbound-rtp"
	ReportCandidatePair = "candidate-pair"
)

// CandidatePairSucceeded is the state of a usable candidate pair.
const CandidatePairSucceeded = "succeeded"

// Report is one entry of a statistics snapshot. Field names follow the W3C
// webrtc-stats dictionaries; absent numeric values are nil.
type Report struct {
	ID                   string   `json:"id"`
	Type                 string   `json:"type"`
	Timestamp            float64  `json:"timestamp"`
	Kind                 string   `json:"kind,omitempty"`
	FramesPerSecond      *float64 `json:"framesPerSecond,omitempty"`
	Jitter               *float64 `json:"jitter,omitempty"`
	BytesReceived        *uint64  `json:"bytesReceived,omitempty"`
	State                string   `json:"state,omitempty"`
	Nominated            bool     `json:"nominated,omitempty"`
	CurrentRoundTripTime *float64 `json:"currentRoundTripTime,omitempty"`
}

// Time converts the report's millisecond timestamp.
func (r Report) Time() time.Time {
	if r.Timestamp <= 0 {
		return time.Time{}
	}
	ms := int64(r.Timestamp)
	frac := r.Timestamp - float64(ms)
	return time.UnixMilli(ms).Add(time.Duration(frac * float64(time.Millisecond)))
}

// Snapshot is one GetStats call.
type Snapshot struct {
	Taken   time.Time
	Reports []Report
}
