// Package lifecycle owns a client's stream session: it creates or reconnects
// sessions through the gateway, waits for activation, and drives the single
// transport engine the session uses.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gamestream/streamctl/internal/client"
	"github.com/gamestream/streamctl/internal/session"
	"github.com/gamestream/streamctl/internal/transport"
)

const (
	DefaultPollTimeout  = 600 * time.Second
	DefaultPollInterval = time.Second
)

var (
	ErrPollTimeout   = errors.New("lifecycle: poll timeout")
	ErrSessionFailed = errors.New("lifecycle: session failed")
	ErrSuperseded    = errors.New("lifecycle: superseded by a newer request")
	ErrNotRunning    = errors.New("lifecycle: stream not running")
	ErrNoSessionARN  = errors.New("lifecycle: no session arn")
)

// Gateway is the Session Gateway as the controller uses it.
type Gateway interface {
	StartSession(ctx context.Context, req client.StartSessionRequest) (client.SessionResponse, error)
	GetSession(ctx context.Context, streamGroupID, arn string) (client.SessionResponse, error)
	Reconnect(ctx context.Context, arn, signalRequest string) (string, error)
}

type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// Notification is a user-visible message about the session.
type Notification struct {
	Time    time.Time
	Level   Level
	Message string
}

type Notifier interface {
	Notify(Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type Options struct {
	Gateway      Gateway
	NewEngine    transport.Factory
	Clock        Clock
	Notifier     Notifier
	OnChange     func(State)
	PollTimeout  time.Duration
	PollInterval time.Duration
	Initial      State
	Logger       zerolog.Logger
}

// Controller serializes every state change through Apply. Each Create,
// Reconnect and Close starts a new generation; a sequence from an older
// generation stops at its next suspension point without writing state.
type Controller struct {
	gw        Gateway
	newEngine transport.Factory
	clock     Clock
	notifier  Notifier
	onChange  func(State)
	timeout   time.Duration
	interval  time.Duration
	log       zerolog.Logger

	mu         sync.Mutex
	state      State
	engine     transport.Engine
	engineUsed bool
	gen        uint64
	subs       map[int]chan State
	nextSub    int
}

// New builds a controller in the STOPPED state and constructs its first
// engine.
func New(opts Options) (*Controller, error) {
	if opts.Gateway == nil {
		return nil, errors.New("lifecycle: gateway is required")
	}
	if opts.NewEngine == nil {
		return nil, errors.New("lifecycle: engine factory is required")
	}
	c := &Controller{
		gw:        opts.Gateway,
		newEngine: opts.NewEngine,
		clock:     opts.Clock,
		notifier:  opts.Notifier,
		onChange:  opts.OnChange,
		timeout:   opts.PollTimeout,
		interval:  opts.PollInterval,
		log:       opts.Logger,
		state:     opts.Initial.clone(),
	}
	if c.clock == nil {
		c.clock = RealClock
	}
	if c.timeout <= 0 {
		c.timeout = DefaultPollTimeout
	}
	if c.interval <= 0 {
		c.interval = DefaultPollInterval
	}
	c.state.Status = Stopped
	c.state.Regions = DedupeRegions(c.state.Regions)

	engine, err := c.newEngine()
	if err != nil {
		return nil, fmt.Errorf("lifecycle: construct engine: %w", err)
	}
	c.engine = engine
	return c, nil
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SelectRegions replaces the ordered region preference. The first region is
// the active one.
func (c *Controller) SelectRegions(regions []string) {
	c.apply(0, Event{Kind: RegionsSelected, Regions: regions})
}

func (c *Controller) SetPendingSessionARN(arn string) {
	c.apply(0, Event{Kind: PendingARNSet, ARN: strings.TrimSpace(arn)})
}

// apply runs ev if gen is current, or unconditionally when gen is 0.
func (c *Controller) apply(gen uint64, ev Event) bool {
	c.mu.Lock()
	if gen != 0 && gen != c.gen {
		c.mu.Unlock()
		c.log.Debug().Str("event", ev.Kind.String()).Uint64("gen", gen).Msg("dropping stale transition")
		return false
	}
	c.state = Apply(ev, c.state)
	snapshot := c.state.clone()
	c.publishLocked(snapshot)
	c.mu.Unlock()

	c.log.Debug().
		Str("event", ev.Kind.String()).
		Str("status", string(snapshot.Status)).
		Str("arn", snapshot.SessionARN).
		Msg("session state")
	if c.onChange != nil {
		c.onChange(snapshot)
	}
	return true
}

// Subscribe delivers states after each transition. A slow subscriber only
// sees the newest state. cancel closes the channel.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	c.mu.Lock()
	if c.subs == nil {
		c.subs = make(map[int]chan State)
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			close(ch)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) publishLocked(s State) {
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.clone()
	}
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

func (c *Controller) notify(level Level, msg string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(Notification{Time: c.clock.Now(), Level: level, Message: msg})
}

// fail moves a current sequence to ERROR and notifies. Stale sequences only
// get ErrSuperseded back.
func (c *Controller) fail(gen uint64, err error) error {
	if !c.apply(gen, Event{Kind: Failed, Err: err}) {
		return ErrSuperseded
	}
	c.log.Warn().Err(err).Msg("session failed")
	c.notify(LevelError, err.Error())
	return err
}

// begin starts a new generation with ev and hands back the engine the
// sequence must use.
func (c *Controller) begin(ev Event) (uint64, transport.Engine, error) {
	return c.claim(&ev)
}

// claim starts a new generation, applies ev when non-nil, and marks the
// engine as used by the new sequence. An engine that already negotiated is
// recycled first so every sequence starts on an unused handle.
func (c *Controller) claim(ev *Event) (uint64, transport.Engine, error) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	var stale transport.Engine
	if c.engineUsed || c.engine == nil {
		stale = c.engine
		c.engine = nil
	}
	c.mu.Unlock()

	if stale != nil {
		if err := stale.Close(); err != nil && !errors.Is(err, transport.ErrClosed) {
			c.log.Debug().Err(err).Msg("close used engine")
		}
	}

	if ev != nil {
		c.apply(gen, *ev)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return gen, nil, ErrSuperseded
	}
	if c.engine == nil {
		engine, err := c.newEngine()
		if err != nil {
			return gen, nil, fmt.Errorf("lifecycle: construct engine: %w", err)
		}
		c.engine = engine
	}
	c.engineUsed = true
	return gen, c.engine, nil
}

// CreateSession starts a session through the gateway and waits for it to
// become active, then applies the answer and attaches input.
func (c *Controller) CreateSession(ctx context.Context, applicationID, streamGroupID string, regions []string) error {
	if len(regions) == 0 {
		regions = c.State().Regions
	}
	gen, engine, err := c.begin(Event{
		Kind:          CreateRequested,
		ApplicationID: applicationID,
		StreamGroupID: streamGroupID,
		Regions:       regions,
	})
	if err != nil {
		return c.fail(gen, err)
	}

	offer, err := engine.GenerateOffer(ctx)
	if err != nil {
		return c.fail(gen, fmt.Errorf("generate offer: %w", err))
	}
	if !c.current(gen) {
		return ErrSuperseded
	}

	resp, err := c.gw.StartSession(ctx, client.StartSessionRequest{
		AppIdentifier: applicationID,
		SGIdentifier:  streamGroupID,
		SignalRequest: offer,
		Regions:       c.State().Regions,
	})
	if err != nil {
		return c.fail(gen, fmt.Errorf("start session: %w", err))
	}
	if !c.apply(gen, Event{Kind: SessionCreated, ARN: resp.ARN, Region: resp.Region}) {
		return ErrSuperseded
	}

	c.log.Info().Str("arn", resp.ARN).Str("status", resp.Status).Msg("session created")
	return c.pollUntilActive(ctx, gen, engine, resp.ARN, streamGroupID, c.timeout, c.interval)
}

// PollUntilActive waits for arn to become active, then applies the answer to
// the controller's engine. It supersedes any sequence in flight, and a handle
// that already negotiated is replaced first. CreateSession runs the same loop
// with the configured bounds.
func (c *Controller) PollUntilActive(ctx context.Context, arn, streamGroupID string, timeout, interval time.Duration) error {
	gen, engine, err := c.claim(nil)
	if err != nil {
		return c.fail(gen, err)
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return c.pollUntilActive(ctx, gen, engine, arn, streamGroupID, timeout, interval)
}

func (c *Controller) pollUntilActive(ctx context.Context, gen uint64, engine transport.Engine, arn, streamGroupID string, timeout, interval time.Duration) error {
	deadline := c.clock.Now().Add(timeout)

	for {
		if !c.current(gen) {
			return ErrSuperseded
		}
		if !c.clock.Now().Before(deadline) {
			return c.fail(gen, fmt.Errorf("%w: %s not active after %s", ErrPollTimeout, arn, timeout))
		}

		resp, err := c.gw.GetSession(ctx, streamGroupID, arn)
		if err != nil {
			return c.fail(gen, fmt.Errorf("get session: %w", err))
		}
		if !c.current(gen) {
			return ErrSuperseded
		}

		status := session.ParseStatus(resp.Status)
		switch status.Phase() {
		case session.PhaseActive:
			if err := c.attach(ctx, gen, engine, resp.SignalResponse); err != nil {
				return err
			}
			if !c.apply(gen, Event{Kind: Activated, ARN: arn, Region: resp.Region}) {
				return ErrSuperseded
			}
			c.log.Info().Str("arn", arn).Str("region", resp.Region).Msg("session running")
			c.notify(LevelInfo, "session running in "+resp.Region)
			return nil
		case session.PhaseFailed:
			return c.fail(gen, fmt.Errorf("%w: %s is %s", ErrSessionFailed, arn, status))
		}

		select {
		case <-c.clock.After(interval):
		case <-ctx.Done():
			return c.fail(gen, ctx.Err())
		}
	}
}

// attach applies the answer, attaches input and probes for keyboard lock.
func (c *Controller) attach(ctx context.Context, gen uint64, engine transport.Engine, answer string) error {
	if err := engine.ApplyAnswer(ctx, answer); err != nil {
		return c.fail(gen, fmt.Errorf("apply answer: %w", err))
	}
	if !c.current(gen) {
		return ErrSuperseded
	}
	if err := engine.AttachInput(ctx); err != nil {
		return c.fail(gen, fmt.Errorf("attach input: %w", err))
	}
	if kl, ok := transport.KeyboardLock(engine); ok {
		if err := kl.LockKeyboard(ctx); err != nil {
			c.log.Debug().Err(err).Msg("keyboard lock unavailable")
		}
	}
	return nil
}

// ReconnectSession opens a new connection to an existing session and applies
// the answer directly.
func (c *Controller) ReconnectSession(ctx context.Context, arn string) error {
	arn = strings.TrimSpace(arn)
	gen, engine, err := c.begin(Event{Kind: ReconnectRequested, ARN: arn})
	if err != nil {
		return c.fail(gen, err)
	}
	if arn == "" {
		return c.fail(gen, ErrNoSessionARN)
	}

	offer, err := engine.GenerateOffer(ctx)
	if err != nil {
		return c.fail(gen, fmt.Errorf("generate offer: %w", err))
	}
	if !c.current(gen) {
		return ErrSuperseded
	}

	answer, err := c.gw.Reconnect(ctx, arn, offer)
	if err != nil {
		return c.fail(gen, fmt.Errorf("reconnect: %w", err))
	}
	if !c.current(gen) {
		return ErrSuperseded
	}

	if err := c.attach(ctx, gen, engine, answer); err != nil {
		return err
	}
	if !c.apply(gen, Event{Kind: Reconnected, ARN: arn, Region: session.RegionFromARN(arn)}) {
		return ErrSuperseded
	}
	c.log.Info().Str("arn", arn).Msg("session reconnected")
	c.notify(LevelInfo, "reconnected to "+session.SessionIDFromARN(arn))
	return nil
}

// CloseSession stops the stream, closes the engine and constructs its
// replacement. In-flight sequences are invalidated.
func (c *Controller) CloseSession() error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	old := c.engine
	c.engine = nil
	c.engineUsed = false
	c.mu.Unlock()

	c.apply(gen, Event{Kind: Closed})

	if old != nil {
		if err := old.Close(); err != nil && !errors.Is(err, transport.ErrClosed) {
			c.log.Debug().Err(err).Msg("close engine")
		}
	}

	engine, err := c.newEngine()
	if err != nil {
		err = fmt.Errorf("lifecycle: construct engine: %w", err)
		c.notify(LevelError, err.Error())
		return err
	}
	c.mu.Lock()
	if c.engine == nil {
		c.engine = engine
		engine = nil
	}
	c.mu.Unlock()
	if engine != nil {
		engine.Close()
	}
	return nil
}

// Stats reads one snapshot from the engine of a running stream.
func (c *Controller) Stats(ctx context.Context) (transport.Snapshot, error) {
	c.mu.Lock()
	engine, status := c.engine, c.state.Status
	c.mu.Unlock()
	if status != Running || engine == nil {
		return transport.Snapshot{}, ErrNotRunning
	}
	return engine.Stats(ctx)
}

// Shutdown closes the engine without constructing a replacement.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.gen++
	engine := c.engine
	c.engine = nil
	c.mu.Unlock()
	if engine != nil {
		engine.Close()
	}
}
