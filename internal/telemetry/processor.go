// Package telemetry turns transport statistics and performance samples into
// the values the stats overlay displays.
package telemetry

import (
	"fmt"
	"math"
	"time"

	"github.com/gamestream/streamctl/internal/transport"
)

// Sample is what one tick extracts from a snapshot. Nil fields were absent
// from the snapshot.
type Sample struct {
	Taken         time.Time
	FrameRate     *int
	JitterMS      *int
	BytesReceived *uint64
	// Bitrate is megabits per second with two decimals, or "" before a
	// baseline exists.
	Bitrate string
	RTTMS   *int
}

// HasBitrate reports whether the sample carries a bitrate.
func (s Sample) HasBitrate() bool { return s.Bitrate != "" }

// Processor keeps the bitrate baseline across ticks. The zero value is ready
// to use.
type Processor struct {
	hasBase   bool
	baseBytes uint64
	baseTime  time.Time
}

// Reset drops the baseline so the next sample only records one.
func (p *Processor) Reset() {
	*p = Processor{}
}

// Process extracts one Sample from snap and advances the baseline.
func (p *Processor) Process(snap transport.Snapshot) Sample {
	out := Sample{Taken: snap.Taken}

	if r, ok := inboundMedia(snap.Reports); ok {
		if r.FramesPerSecond != nil {
			out.FrameRate = roundInt(*r.FramesPerSecond)
		}
		if r.Jitter != nil {
			out.JitterMS = roundInt(*r.Jitter * 1000)
		}
		if r.BytesReceived != nil {
			bytes := *r.BytesReceived
			out.BytesReceived = &bytes

			at := r.Time()
			if at.IsZero() {
				at = snap.Taken
			}
			out.Bitrate = p.advance(bytes, at)
		}
	}

	for _, r := range snap.Reports {
		if r.Type != transport.ReportCandidatePair || r.State != transport.CandidatePairSucceeded {
			continue
		}
		if r.CurrentRoundTripTime == nil {
			continue
		}
		out.RTTMS = roundInt(*r.CurrentRoundTripTime * 1000)
		if r.Nominated {
			break
		}
	}

	return out
}

func (p *Processor) advance(bytes uint64, at time.Time) string {
	if !p.hasBase {
		p.hasBase, p.baseBytes, p.baseTime = true, bytes, at
		return ""
	}

	dt := at.Sub(p.baseTime).Seconds()
	var rate string
	if dt > 0 && bytes >= p.baseBytes {
		rate = FormatBitrate(float64(bytes-p.baseBytes) * 8 / dt / 1_000_000)
	}
	// A counter reset starts a new baseline.
	p.baseBytes, p.baseTime = bytes, at
	return rate
}

// inboundMedia picks the inbound video report, falling back to the first
// inbound-rtp entry.
func inboundMedia(reports []transport.Report) (transport.Report, bool) {
	var first *transport.Report
	for i := range reports {
		r := &reports[i]
		if r.Type != transport.ReportInboundRTP {
			continue
		}
		if r.Kind == "video" {
			return *r, true
		}
		if first == nil {
			first = r
		}
	}
	if first == nil {
		return transport.Report{}, false
	}
	return *first, true
}

// FormatBitrate renders mbps with two decimals.
func FormatBitrate(mbps float64) string {
	return fmt.Sprintf("%.2f", mbps)
}

func roundInt(v float64) *int {
	n := int(math.Round(v))
	return &n
}
