package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gamestream/streamctl/internal/lifecycle"
	"github.com/gamestream/streamctl/internal/telemetry"
)

type noteMsg lifecycle.Notification

type sampleMsg telemetry.Sample

// Bridge carries controller notifications and sampler ticks into the Bubble
// Tea loop. It satisfies lifecycle.Notifier.
type Bridge struct {
	notes   chan lifecycle.Notification
	samples chan telemetry.Sample
}

func NewBridge() *Bridge {
	return &Bridge{
		notes:   make(chan lifecycle.Notification, 64),
		samples: make(chan telemetry.Sample, 1),
	}
}

// Notify queues n, dropping it if the UI is far behind.
func (b *Bridge) Notify(n lifecycle.Notification) {
	select {
	case b.notes <- n:
	default:
	}
}

// OnSample keeps only the newest sample.
func (b *Bridge) OnSample(s telemetry.Sample) {
	select {
	case <-b.samples:
	default:
	}
	select {
	case b.samples <- s:
	default:
	}
}

func (b *Bridge) waitNote() tea.Cmd {
	return func() tea.Msg { return noteMsg(<-b.notes) }
}

func (b *Bridge) waitSample() tea.Cmd {
	return func() tea.Msg { return sampleMsg(<-b.samples) }
}
