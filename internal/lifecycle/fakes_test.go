package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gamestream/streamctl/internal/client"
	"github.com/gamestream/streamctl/internal/transport"
)

const (
	testARN   = "arn:aws:svc:us-west-2:111122223333:streamgroup/sg-abc/streamsession/sess-1"
	testGroup = "sg-abc"
	testApp   = "a-1"
)

// fakeClock advances instantly on After.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

type fakeEngine struct {
	mu         sync.Mutex
	id         int
	offers     int
	answers    []string
	attached   bool
	closed     bool
	afterClose int
	offerErr   error
	answerErr  error
	snapshot   transport.Snapshot
}

func (e *fakeEngine) use() error {
	if e.closed {
		e.afterClose++
		return transport.ErrClosed
	}
	return nil
}

func (e *fakeEngine) GenerateOffer(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.use(); err != nil {
		return "", err
	}
	if e.offerErr != nil {
		return "", e.offerErr
	}
	e.offers++
	return fmt.Sprintf("offer-%d-%d", e.id, e.offers), nil
}

func (e *fakeEngine) ApplyAnswer(_ context.Context, answer string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.use(); err != nil {
		return err
	}
	if e.answerErr != nil {
		return e.answerErr
	}
	e.answers = append(e.answers, answer)
	return nil
}

func (e *fakeEngine) AttachInput(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.use(); err != nil {
		return err
	}
	e.attached = true
	return nil
}

func (e *fakeEngine) Stats(context.Context) (transport.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.use(); err != nil {
		return transport.Snapshot{}, err
	}
	return e.snapshot, nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return transport.ErrClosed
	}
	e.closed = true
	return nil
}

type lockingEngine struct {
	*fakeEngine
	locks int
	err   error
}

func (e *lockingEngine) LockKeyboard(context.Context) error {
	e.locks++
	return e.err
}

// engineFactory records every engine it builds.
type engineFactory struct {
	mu      sync.Mutex
	engines []*fakeEngine
	wrap    func(*fakeEngine) transport.Engine
}

func (f *engineFactory) New() (transport.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &fakeEngine{id: len(f.engines) + 1}
	f.engines = append(f.engines, e)
	if f.wrap != nil {
		return f.wrap(e), nil
	}
	return e, nil
}

func (f *engineFactory) last() *fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engines[len(f.engines)-1]
}

func (f *engineFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

type getResult struct {
	resp client.SessionResponse
	err  error
}

type fakeGateway struct {
	mu    sync.Mutex
	clock *fakeClock

	startResp client.SessionResponse
	startErr  error
	startReqs []client.StartSessionRequest

	script   []getResult
	getTimes []time.Time
	// getEntered and getRelease, when set, pause GetSession so tests can
	// interleave other calls.
	getEntered chan struct{}
	getRelease chan struct{}

	reconnectAnswer string
	reconnectErr    error
	reconnectARNs   []string
}

func (g *fakeGateway) StartSession(_ context.Context, req client.StartSessionRequest) (client.SessionResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.startReqs = append(g.startReqs, req)
	return g.startResp, g.startErr
}

func (g *fakeGateway) GetSession(_ context.Context, group, arn string) (client.SessionResponse, error) {
	if g.getEntered != nil {
		g.getEntered <- struct{}{}
		<-g.getRelease
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getTimes = append(g.getTimes, g.clock.Now())
	if len(g.script) == 0 {
		return client.SessionResponse{ARN: arn, Status: "ACTIVATING"}, nil
	}
	r := g.script[0]
	if len(g.script) > 1 {
		g.script = g.script[1:]
	}
	return r.resp, r.err
}

func (g *fakeGateway) Reconnect(_ context.Context, arn, offer string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reconnectARNs = append(g.reconnectARNs, arn)
	return g.reconnectAnswer, g.reconnectErr
}

func (g *fakeGateway) getCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.getTimes)
}

type recorder struct {
	mu            sync.Mutex
	states        []State
	notifications []Notification
}

func (r *recorder) OnChange(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	r.notifications = append(r.notifications, n)
	r.mu.Unlock()
}

func (r *recorder) errors() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.notifications {
		if n.Level == LevelError {
			out = append(out, n)
		}
	}
	return out
}

type harness struct {
	ctrl    *Controller
	clock   *fakeClock
	gw      *fakeGateway
	engines *engineFactory
	rec     *recorder
}

func newHarness(t testing.TB, gw *fakeGateway, engines *engineFactory) *harness {
	clock := newFakeClock()
	if gw == nil {
		gw = &fakeGateway{}
	}
	gw.clock = clock
	if engines == nil {
		engines = &engineFactory{}
	}
	rec := &recorder{}
	ctrl, err := New(Options{
		Gateway:      gw,
		NewEngine:    engines.New,
		Clock:        clock,
		Notifier:     rec,
		OnChange:     rec.OnChange,
		PollTimeout:  10 * time.Second,
		PollInterval: time.Second,
		Initial:      State{Regions: []string{"us-west-2"}},
		Logger:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return &harness{ctrl: ctrl, clock: clock, gw: gw, engines: engines, rec: rec}
}

func activating(signal string) getResult {
	return getResult{resp: client.SessionResponse{ARN: testARN, Status: "ACTIVATING", SignalResponse: signal}}
}

func active(signal string) getResult {
	return getResult{resp: client.SessionResponse{ARN: testARN, Status: "ACTIVE", SignalResponse: signal, Region: "us-west-2"}}
}
