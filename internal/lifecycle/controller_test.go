package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gamestream/streamctl/internal/client"
	"github.com/gamestream/streamctl/internal/transport"
)

func startOK() client.SessionResponse {
	return client.SessionResponse{ARN: testARN, Status: "ACTIVATING", Region: "us-west-2"}
}

func TestCreateSessionPollsUntilActive(t *testing.T) {
	gw := &fakeGateway{
		startResp: startOK(),
		script:    []getResult{activating("answer-1"), activating("answer-2"), active("answer-3")},
	}
	h := newHarness(t, gw, nil)
	start := h.clock.Now()

	if err := h.ctrl.CreateSession(context.Background(), testApp, testGroup, []string{"us-west-2", "us-east-2"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if got := gw.getCalls(); got != 3 {
		t.Errorf("GetSession calls = %d, want 3", got)
	}
	if elapsed := h.clock.Now().Sub(start); elapsed < 2*time.Second {
		t.Errorf("elapsed = %v, want >= 2s", elapsed)
	}

	engine := h.engines.last()
	if len(engine.answers) != 1 || engine.answers[0] != "answer-3" {
		t.Errorf("applied answers = %v, want [answer-3]", engine.answers)
	}
	if !engine.attached {
		t.Error("input not attached")
	}

	st := h.ctrl.State()
	if st.Status != Running || st.IsStarting || !st.InputEnabled {
		t.Errorf("state = %+v, want RUNNING with input", st)
	}
	if st.LastSessionARN != testARN || st.SessionARN != testARN {
		t.Errorf("arns = (%q, %q)", st.LastSessionARN, st.SessionARN)
	}

	req := gw.startReqs[0]
	if req.AppIdentifier != testApp || req.SGIdentifier != testGroup || req.SignalRequest != "offer-1-1" {
		t.Errorf("start request = %+v", req)
	}
	if len(req.Regions) != 2 || req.Regions[0] != "us-west-2" {
		t.Errorf("regions = %v", req.Regions)
	}
}

func TestCreateSessionSetsStartingOnEntry(t *testing.T) {
	gw := &fakeGateway{startResp: startOK(), script: []getResult{active("answer")}}
	h := newHarness(t, gw, nil)

	h.ctrl.CreateSession(context.Background(), testApp, testGroup, nil)

	first := h.rec.states[0]
	if first.Status != Starting || !first.IsStarting {
		t.Errorf("first transition = %+v, want STARTING with IsStarting", first)
	}
	last := h.rec.states[len(h.rec.states)-1]
	if last.Status != Running || last.IsStarting {
		t.Errorf("last transition = %+v", last)
	}
}

func TestPollUntilActiveTimeout(t *testing.T) {
	gw := &fakeGateway{}
	h := newHarness(t, gw, nil)
	start := h.clock.Now()

	err := h.ctrl.PollUntilActive(context.Background(), testARN, testGroup, 3*time.Second, time.Second)
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}

	if got := gw.getCalls(); got != 3 {
		t.Errorf("GetSession calls = %d, want 3", got)
	}
	if elapsed := h.clock.Now().Sub(start); elapsed != 3*time.Second {
		t.Errorf("elapsed = %v, want 3s", elapsed)
	}
	last := gw.getTimes[len(gw.getTimes)-1]
	if last.Sub(start) != 2*time.Second {
		t.Errorf("last call at %v, want 2s", last.Sub(start))
	}

	st := h.ctrl.State()
	if st.Status != Error || st.IsStarting {
		t.Errorf("state = %+v, want ERROR", st)
	}
	if !strings.Contains(st.LastError, "poll timeout") {
		t.Errorf("LastError = %q", st.LastError)
	}
	if len(h.rec.errors()) != 1 {
		t.Errorf("error notifications = %d, want 1", len(h.rec.errors()))
	}

	// Nothing keeps polling after the loop gave up.
	if got := gw.getCalls(); got != 3 {
		t.Errorf("GetSession calls after timeout = %d, want 3", got)
	}
}

func TestCreateSessionGatewayFailure(t *testing.T) {
	gw := &fakeGateway{startErr: &client.RequestError{StatusCode: http.StatusInternalServerError, Message: "throttled"}}
	h := newHarness(t, gw, nil)

	err := h.ctrl.CreateSession(context.Background(), testApp, testGroup, nil)
	var reqErr *client.RequestError
	if !errors.As(err, &reqErr) || reqErr.Message != "throttled" {
		t.Fatalf("err = %v, want RequestError throttled", err)
	}

	st := h.ctrl.State()
	if st.Status != Error {
		t.Errorf("Status = %s, want ERROR", st.Status)
	}
	if st.IsStarting {
		t.Error("IsStarting should be reset")
	}
	if gw.getCalls() != 0 {
		t.Errorf("GetSession calls = %d, want no poll", gw.getCalls())
	}
	errs := h.rec.errors()
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "throttled") {
		t.Errorf("notifications = %+v", errs)
	}
}

func TestPollFailureMidLoopAborts(t *testing.T) {
	gw := &fakeGateway{
		startResp: startOK(),
		script: []getResult{
			activating(""),
			{err: &client.RequestError{StatusCode: http.StatusInternalServerError, Message: "internal"}},
			active("never"),
		},
	}
	h := newHarness(t, gw, nil)

	if err := h.ctrl.CreateSession(context.Background(), testApp, testGroup, nil); err == nil {
		t.Fatal("expected error")
	}
	if gw.getCalls() != 2 {
		t.Errorf("GetSession calls = %d, want 2 (failed call not retried)", gw.getCalls())
	}
	if st := h.ctrl.State(); st.Status != Error || st.IsStarting {
		t.Errorf("state = %+v", st)
	}
	if len(h.engines.last().answers) != 0 {
		t.Error("no answer should be applied")
	}
}

func TestPollFailedSessionStatus(t *testing.T) {
	gw := &fakeGateway{
		startResp: startOK(),
		script:    []getResult{{resp: client.SessionResponse{ARN: testARN, Status: "TERMINATED"}}},
	}
	h := newHarness(t, gw, nil)

	err := h.ctrl.CreateSession(context.Background(), testApp, testGroup, nil)
	if !errors.Is(err, ErrSessionFailed) {
		t.Fatalf("err = %v, want ErrSessionFailed", err)
	}
	if h.ctrl.State().Status != Error {
		t.Errorf("Status = %s", h.ctrl.State().Status)
	}
}

func TestApplyAnswerFailure(t *testing.T) {
	engines := &engineFactory{}
	gw := &fakeGateway{startResp: startOK(), script: []getResult{active("bad")}}
	h := newHarness(t, gw, engines)
	engines.last().answerErr = errors.New("malformed sdp")

	err := h.ctrl.CreateSession(context.Background(), testApp, testGroup, nil)
	if err == nil || !strings.Contains(err.Error(), "malformed sdp") {
		t.Fatalf("err = %v", err)
	}
	st := h.ctrl.State()
	if st.Status != Error || st.LastSessionARN != "" {
		t.Errorf("state = %+v, want ERROR without LastSessionARN", st)
	}
}

func TestOfferFailure(t *testing.T) {
	engines := &engineFactory{}
	gw := &fakeGateway{startResp: startOK()}
	h := newHarness(t, gw, engines)
	engines.last().offerErr = errors.New("no codecs")

	if err := h.ctrl.CreateSession(context.Background(), testApp, testGroup, nil); err == nil {
		t.Fatal("expected error")
	}
	if len(gw.startReqs) != 0 {
		t.Error("gateway should not be called without an offer")
	}
	if h.ctrl.State().Status != Error {
		t.Error("want ERROR")
	}
}

func TestReconnectSession(t *testing.T) {
	gw := &fakeGateway{reconnectAnswer: "answer-r"}
	h := newHarness(t, gw, nil)

	if err := h.ctrl.ReconnectSession(context.Background(), " "+testARN+" "); err != nil {
		t.Fatalf("ReconnectSession: %v", err)
	}

	if len(gw.reconnectARNs) != 1 || gw.reconnectARNs[0] != testARN {
		t.Errorf("reconnect arns = %v", gw.reconnectARNs)
	}
	if gw.getCalls() != 0 {
		t.Error("reconnect must not poll")
	}
	engine := h.engines.last()
	if len(engine.answers) != 1 || engine.answers[0] != "answer-r" || !engine.attached {
		t.Errorf("engine = %+v", engine)
	}

	st := h.ctrl.State()
	if st.Status != Running || st.IsStarting || !st.InputEnabled {
		t.Errorf("state = %+v", st)
	}
	if st.LastSessionARN != "" {
		t.Errorf("LastSessionARN = %q, reconnect must not set it", st.LastSessionARN)
	}
	if st.Region != "us-west-2" {
		t.Errorf("Region = %q, want region from arn", st.Region)
	}
}

func TestReconnectFailure(t *testing.T) {
	gw := &fakeGateway{reconnectErr: &client.RequestError{StatusCode: http.StatusInternalServerError, Message: "not found"}}
	h := newHarness(t, gw, nil)

	if err := h.ctrl.ReconnectSession(context.Background(), testARN); err == nil {
		t.Fatal("expected error")
	}
	st := h.ctrl.State()
	if st.Status != Error || st.IsStarting {
		t.Errorf("state = %+v", st)
	}
	if len(h.rec.errors()) != 1 {
		t.Error("failure should notify")
	}
}

func TestReconnectWithoutARN(t *testing.T) {
	h := newHarness(t, nil, nil)
	if err := h.ctrl.ReconnectSession(context.Background(), "  "); !errors.Is(err, ErrNoSessionARN) {
		t.Errorf("err = %v, want ErrNoSessionARN", err)
	}
}

func TestCloseThenCreateUsesFreshEngine(t *testing.T) {
	engines := &engineFactory{}
	gw := &fakeGateway{startResp: startOK(), script: []getResult{active("answer")}}
	h := newHarness(t, gw, engines)
	first := engines.last()

	if err := h.ctrl.CloseSession(); err != nil {
		t.Fatal(err)
	}
	if !first.closed {
		t.Error("close should close the engine")
	}
	st := h.ctrl.State()
	if st.Status != Stopped || st.InputEnabled {
		t.Errorf("state after close = %+v", st)
	}

	if err := h.ctrl.CreateSession(context.Background(), testApp, testGroup, nil); err != nil {
		t.Fatalf("CreateSession after close: %v", err)
	}
	if engines.count() != 2 {
		t.Errorf("engines built = %d, want 2", engines.count())
	}
	second := engines.last()
	if second == first || second.offers != 1 || len(second.answers) != 1 {
		t.Errorf("second engine = %+v", second)
	}
	if first.afterClose != 0 || first.offers != 0 {
		t.Error("closed engine was used")
	}
}

func TestSecondCreateRecyclesUsedEngine(t *testing.T) {
	engines := &engineFactory{}
	gw := &fakeGateway{startResp: startOK(), script: []getResult{active("answer")}}
	h := newHarness(t, gw, engines)
	ctx := context.Background()

	h.ctrl.CreateSession(ctx, testApp, testGroup, nil)
	first := engines.last()
	h.ctrl.CreateSession(ctx, testApp, testGroup, nil)

	if !first.closed {
		t.Error("used engine should be closed before the next sequence")
	}
	if engines.count() != 2 {
		t.Errorf("engines built = %d, want 2", engines.count())
	}
}

func TestCreateAfterPollUsesFreshEngine(t *testing.T) {
	engines := &engineFactory{}
	gw := &fakeGateway{startResp: startOK(), script: []getResult{active("answer-poll")}}
	h := newHarness(t, gw, engines)
	ctx := context.Background()

	if err := h.ctrl.PollUntilActive(ctx, testARN, testGroup, 5*time.Second, time.Second); err != nil {
		t.Fatalf("PollUntilActive: %v", err)
	}
	first := engines.last()
	if st := h.ctrl.State(); st.Status != Running {
		t.Fatalf("Status = %s, want RUNNING", st.Status)
	}

	gw.mu.Lock()
	gw.script = []getResult{active("answer-create")}
	gw.mu.Unlock()
	if err := h.ctrl.CreateSession(ctx, testApp, testGroup, nil); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if engines.count() != 2 {
		t.Fatalf("engines built = %d, want 2", engines.count())
	}
	second := engines.last()
	if !first.closed || len(first.answers) != 1 || first.answers[0] != "answer-poll" {
		t.Errorf("polled engine = %+v, want closed with only answer-poll", first)
	}
	if len(second.answers) != 1 || second.answers[0] != "answer-create" {
		t.Errorf("second engine answers = %v, want [answer-create]", second.answers)
	}
}

func TestPollAfterRunningRecyclesEngine(t *testing.T) {
	engines := &engineFactory{}
	gw := &fakeGateway{startResp: startOK(), script: []getResult{active("answer")}}
	h := newHarness(t, gw, engines)
	ctx := context.Background()

	if err := h.ctrl.CreateSession(ctx, testApp, testGroup, nil); err != nil {
		t.Fatal(err)
	}
	first := engines.last()
	if err := h.ctrl.PollUntilActive(ctx, testARN, testGroup, 5*time.Second, time.Second); err != nil {
		t.Fatal(err)
	}

	if !first.closed || len(first.answers) != 1 {
		t.Errorf("negotiated engine = %+v, want closed after one answer", first)
	}
	if engines.count() != 2 || len(engines.last().answers) != 1 {
		t.Errorf("engines built = %d, want a second engine with one answer", engines.count())
	}

	if err := h.ctrl.CloseSession(); err != nil {
		t.Fatal(err)
	}
	if engines.count() != 3 {
		t.Errorf("engines built after close = %d, want 3", engines.count())
	}
}

func TestConcurrentPollSupersedesEarlier(t *testing.T) {
	engines := &engineFactory{}
	gw := &fakeGateway{
		script:     []getResult{active("answer")},
		getEntered: make(chan struct{}),
		getRelease: make(chan struct{}),
	}
	h := newHarness(t, gw, engines)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- h.ctrl.PollUntilActive(ctx, testARN, testGroup, 5*time.Second, time.Second)
	}()
	<-gw.getEntered
	first := engines.last()

	secondDone := make(chan error, 1)
	go func() {
		secondDone <- h.ctrl.PollUntilActive(ctx, testARN, testGroup, 5*time.Second, time.Second)
	}()
	<-gw.getEntered
	close(gw.getRelease)

	for name, done := range map[string]chan error{"first": firstDone, "second": secondDone} {
		select {
		case err := <-done:
			if name == "first" && !errors.Is(err, ErrSuperseded) {
				t.Errorf("first poll err = %v, want ErrSuperseded", err)
			}
			if name == "second" && err != nil {
				t.Errorf("second poll err = %v, want nil", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s poll did not return", name)
		}
	}

	if len(first.answers) != 0 {
		t.Errorf("superseded engine answers = %v, want none", first.answers)
	}
	if engines.count() != 2 || len(engines.last().answers) != 1 {
		t.Errorf("engines built = %d, want the second poll on a fresh engine", engines.count())
	}
	if got := gw.getCalls(); got != 2 {
		t.Errorf("GetSession calls = %d, want 2 (one per loop, no further polling)", got)
	}
}

func TestPollSupersedesCreate(t *testing.T) {
	engines := &engineFactory{}
	gw := &fakeGateway{
		startResp:  startOK(),
		script:     []getResult{active("answer")},
		getEntered: make(chan struct{}),
		getRelease: make(chan struct{}),
	}
	h := newHarness(t, gw, engines)
	ctx := context.Background()
	first := engines.last()

	createDone := make(chan error, 1)
	go func() {
		createDone <- h.ctrl.CreateSession(ctx, testApp, testGroup, nil)
	}()
	<-gw.getEntered

	pollDone := make(chan error, 1)
	go func() {
		pollDone <- h.ctrl.PollUntilActive(ctx, testARN, testGroup, 5*time.Second, time.Second)
	}()
	<-gw.getEntered
	close(gw.getRelease)

	select {
	case err := <-createDone:
		if !errors.Is(err, ErrSuperseded) {
			t.Errorf("create err = %v, want ErrSuperseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("create did not return")
	}
	select {
	case err := <-pollDone:
		if err != nil {
			t.Errorf("poll err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not return")
	}

	if !first.closed || first.offers != 1 || len(first.answers) != 0 {
		t.Errorf("create engine = %+v, want closed after its offer and never answered", first)
	}
	if second := engines.last(); second == first || len(second.answers) != 1 {
		t.Errorf("poll should answer on a fresh engine, got %+v", second)
	}
	if st := h.ctrl.State(); st.Status != Running {
		t.Errorf("Status = %s, want RUNNING", st.Status)
	}
}

func TestCloseMidPollDropsStaleResult(t *testing.T) {
	engines := &engineFactory{}
	gw := &fakeGateway{
		startResp:  startOK(),
		script:     []getResult{active("late-answer")},
		getEntered: make(chan struct{}),
		getRelease: make(chan struct{}),
	}
	h := newHarness(t, gw, engines)
	first := engines.last()

	done := make(chan error, 1)
	go func() {
		done <- h.ctrl.CreateSession(context.Background(), testApp, testGroup, nil)
	}()

	<-gw.getEntered
	if err := h.ctrl.CloseSession(); err != nil {
		t.Fatal(err)
	}
	close(gw.getRelease)

	select {
	case err := <-done:
		if !errors.Is(err, ErrSuperseded) {
			t.Errorf("err = %v, want ErrSuperseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("create did not return")
	}

	st := h.ctrl.State()
	if st.Status != Stopped {
		t.Errorf("Status = %s, want STOPPED (stale ACTIVE dropped)", st.Status)
	}
	if st.LastSessionARN != "" {
		t.Errorf("LastSessionARN = %q, stale loop must not set it", st.LastSessionARN)
	}
	if len(first.answers) != 0 || first.afterClose != 0 {
		t.Errorf("closed engine touched: %+v", first)
	}
	if len(h.rec.errors()) != 0 {
		t.Error("stale sequence must not notify")
	}
}

func TestKeyboardLockProbe(t *testing.T) {
	var lockers []*lockingEngine
	engines := &engineFactory{wrap: func(e *fakeEngine) transport.Engine {
		l := &lockingEngine{fakeEngine: e, err: errors.New("not allowed")}
		lockers = append(lockers, l)
		return l
	}}
	gw := &fakeGateway{reconnectAnswer: "answer"}
	h := newHarness(t, gw, engines)

	if err := h.ctrl.ReconnectSession(context.Background(), testARN); err != nil {
		t.Fatalf("keyboard lock failure must be silent: %v", err)
	}
	if lockers[len(lockers)-1].locks != 1 {
		t.Errorf("locks = %d, want 1", lockers[len(lockers)-1].locks)
	}
	if len(h.rec.errors()) != 0 {
		t.Error("keyboard lock failure must not notify")
	}
}

func TestStatsRequiresRunning(t *testing.T) {
	engines := &engineFactory{}
	gw := &fakeGateway{reconnectAnswer: "answer"}
	h := newHarness(t, gw, engines)
	ctx := context.Background()

	if _, err := h.ctrl.Stats(ctx); !errors.Is(err, ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}

	h.ctrl.ReconnectSession(ctx, testARN)
	engines.last().snapshot = transport.Snapshot{Reports: []transport.Report{{ID: "r1"}}}

	snap, err := h.ctrl.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Reports) != 1 {
		t.Errorf("reports = %v", snap.Reports)
	}
}

func TestSelectRegionsAndPendingARN(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.ctrl.SelectRegions([]string{"eu-central-1", "us-west-2", "eu-central-1", ""})
	h.ctrl.SetPendingSessionARN("  " + testARN)

	st := h.ctrl.State()
	if len(st.Regions) != 2 || st.ActiveRegion() != "eu-central-1" {
		t.Errorf("Regions = %v", st.Regions)
	}
	if st.PendingSessionARN != testARN {
		t.Errorf("PendingSessionARN = %q", st.PendingSessionARN)
	}

	st.Regions[0] = "mutated"
	if h.ctrl.State().Regions[0] != "eu-central-1" {
		t.Error("State() leaked its Regions slice")
	}
}

func TestSubscribeKeepsNewestState(t *testing.T) {
	gw := &fakeGateway{reconnectAnswer: "answer"}
	h := newHarness(t, gw, nil)

	states, cancel := h.ctrl.Subscribe()
	if err := h.ctrl.ReconnectSession(context.Background(), testARN); err != nil {
		t.Fatal(err)
	}

	got := <-states
	if got.Status != Running {
		t.Errorf("newest state = %s, want RUNNING", got.Status)
	}

	cancel()
	cancel()
	if _, ok := <-states; ok {
		t.Error("channel should be closed after cancel")
	}
	h.ctrl.CloseSession()
}
