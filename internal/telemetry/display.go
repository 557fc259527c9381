package telemetry

import (
	"fmt"
	"math"
	"strconv"
)

// Placeholder stands in for values the snapshot did not carry.
const Placeholder = "--"

// Metric is a display rule: bars fill against Max and stay healthy while the
// value is at most Threshold.
type Metric struct {
	Label     string
	Unit      string
	Max       float64
	Threshold float64
	// Decimals used when rendering the value.
	Decimals int
}

var (
	FrameRate = Metric{Label: "FPS", Max: 60, Threshold: 60}
	Bitrate   = Metric{Label: "Bitrate", Unit: "Mbps", Max: 25, Threshold: 25, Decimals: 2}
	RTT       = Metric{Label: "RTT", Unit: "ms", Max: 200, Threshold: 100}
	Jitter    = Metric{Label: "Jitter", Unit: "ms", Max: 60, Threshold: 30}

	AppCPU         = Metric{Label: "App CPU", Max: 1, Threshold: 0.8, Decimals: 2}
	AppMemory      = Metric{Label: "App Memory", Max: 1, Threshold: 0.8, Decimals: 2}
	InstanceCPU    = Metric{Label: "CPU", Unit: "%", Max: 100, Threshold: 80}
	InstanceMemory = Metric{Label: "Memory", Unit: "%", Max: 100, Threshold: 80}
	InstanceGPU    = Metric{Label: "GPU", Unit: "%", Max: 100, Threshold: 80}
	InstanceVRAM   = Metric{Label: "VRAM", Unit: "%", Max: 100, Threshold: 80}
)

// Bar is one rendered overlay row.
type Bar struct {
	Label   string
	Text    string
	Fill    float64
	Healthy bool
	Absent  bool
}

// Bar applies the display rule to v. Absent or non-numeric values get the
// placeholder and no fill.
func (m Metric) Bar(v *float64) Bar {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return Bar{Label: m.Label, Text: Placeholder, Absent: true}
	}
	return Bar{
		Label:   m.Label,
		Text:    m.format(*v),
		Fill:    Fill(*v, m.Max),
		Healthy: *v <= m.Threshold,
	}
}

// WithText replaces the rendered value, keeping fill and health.
func (b Bar) WithText(text string) Bar {
	if !b.Absent {
		b.Text = text
	}
	return b
}

func (m Metric) format(v float64) string {
	s := strconv.FormatFloat(v, 'f', m.Decimals, 64)
	if m.Unit == "" {
		return s
	}
	if m.Unit == "%" {
		return s + "%"
	}
	return s + " " + m.Unit
}

// Fill is min(v/max, 1), clamped at 0.
func Fill(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return math.Max(0, math.Min(v/max, 1))
}

// StreamBars lays out a transport sample as overlay rows.
func StreamBars(s Sample) []Bar {
	bars := []Bar{
		FrameRate.Bar(intFloat(s.FrameRate)),
		Bitrate.Bar(parseFloat(s.Bitrate)),
		RTT.Bar(intFloat(s.RTTMS)),
		Jitter.Bar(intFloat(s.JitterMS)),
	}
	if s.HasBitrate() {
		// Keep the exact two-decimal rendering.
		bars[1] = bars[1].WithText(fmt.Sprintf("%s %s", s.Bitrate, Bitrate.Unit))
	}
	return bars
}

func intFloat(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
