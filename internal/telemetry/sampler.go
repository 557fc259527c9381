package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gamestream/streamctl/internal/transport"
)

// DefaultInterval is the sampling period.
const DefaultInterval = 1000 * time.Millisecond

// Overlay is the stats overlay as its parent sees it.
type Overlay interface {
	Toggle() bool
	IsVisible() bool
}

// StatsSource yields one snapshot per call. lifecycle.Controller satisfies it.
type StatsSource interface {
	Stats(ctx context.Context) (transport.Snapshot, error)
}

type SamplerOptions struct {
	Source   StatsSource
	Interval time.Duration
	// OnSample receives every processed tick from the sampler goroutine.
	OnSample func(Sample)
	Logger   zerolog.Logger
}

// Sampler polls the source while the overlay is visible and the stream is
// running. Any change to either condition re-evaluates it; a running ticker
// is always stopped before a new one starts.
type Sampler struct {
	src      StatsSource
	interval time.Duration
	onSample func(Sample)
	log      zerolog.Logger

	mu      sync.Mutex
	visible bool
	running bool
	proc    Processor
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ Overlay = (*Sampler)(nil)

func NewSampler(opts SamplerOptions) *Sampler {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		src:      opts.Source,
		interval: interval,
		onSample: opts.OnSample,
		log:      opts.Logger,
	}
}

// Toggle flips overlay visibility and returns the new value.
func (s *Sampler) Toggle() bool {
	s.mu.Lock()
	s.visible = !s.visible
	visible := s.visible
	s.mu.Unlock()
	s.reevaluate()
	return visible
}

func (s *Sampler) IsVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// SetRunning records whether the stream is running.
func (s *Sampler) SetRunning(running bool) {
	s.mu.Lock()
	changed := s.running != running
	s.running = running
	s.mu.Unlock()
	if changed {
		s.reevaluate()
	}
}

// Armed reports whether the ticker is active.
func (s *Sampler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Stop disarms the ticker and waits for it to exit.
func (s *Sampler) Stop() {
	s.disarm()
}

func (s *Sampler) reevaluate() {
	s.mu.Lock()
	want := s.visible && s.running
	armed := s.cancel != nil
	s.mu.Unlock()

	switch {
	case want && !armed:
		s.arm()
	case !want && armed:
		s.disarm()
	}
}

func (s *Sampler) arm() {
	s.disarm()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		cancel()
		return
	}
	s.proc.Reset()
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	s.log.Debug().Dur("interval", s.interval).Msg("stats sampler armed")
	go s.loop(ctx, done)
}

func (s *Sampler) disarm() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Debug().Msg("stats sampler disarmed")
}

func (s *Sampler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sampler) tick(ctx context.Context) {
	if s.src == nil {
		return
	}
	snap, err := s.src.Stats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Debug().Err(err).Msg("stats snapshot")
		}
		return
	}
	if snap.Taken.IsZero() {
		snap.Taken = time.Now()
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	sample := s.proc.Process(snap)
	s.mu.Unlock()

	if s.onSample != nil {
		s.onSample(sample)
	}
}
