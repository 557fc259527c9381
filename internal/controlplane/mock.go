package controlplane

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gamestream/streamctl/internal/session"
)

const mockService = "gameliftstreams"

// Answerer negotiates the host side of a session's connection.
type Answerer interface {
	Answer(ctx context.Context, sessionID, offer string) (string, error)
	Release(sessionID string) error
}

// PerformanceSource produces performance stats samples.
type PerformanceSource interface {
	Sample(ctx context.Context) (session.PerformanceStats, error)
}

type MockConfig struct {
	AccountID         string
	DefaultRegion     string
	ActivationDelay   time.Duration
	PerformancePeriod time.Duration
	Now               func() time.Time
}

// Mock is an in-process control plane. Sessions report ACTIVATING until the
// activation delay has passed, then ACTIVE with the host's answer.
type Mock struct {
	cfg      MockConfig
	store    *session.Store
	answerer Answerer
	perf     PerformanceSource
	log      zerolog.Logger

	mu      sync.Mutex
	pending map[string]string
}

var (
	_ Client          = (*Mock)(nil)
	_ PerformanceFeed = (*Mock)(nil)
)

var _ Inventory = (*Mock)(nil)

// NewMock builds a mock control plane. perf may be nil, in which case
// StreamPerformance reports the feed as unavailable.
func NewMock(cfg MockConfig, answerer Answerer, perf PerformanceSource, logger zerolog.Logger) *Mock {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AccountID == "" {
		cfg.AccountID = "111122223333"
	}
	if cfg.DefaultRegion == "" {
		cfg.DefaultRegion = "us-west-2"
	}
	if cfg.PerformancePeriod <= 0 {
		cfg.PerformancePeriod = time.Second
	}
	return &Mock{
		cfg:      cfg,
		store:    session.NewStore(),
		answerer: answerer,
		perf:     perf,
		log:      logger,
		pending:  make(map[string]string),
	}
}

func notFound(arn string) error {
	return &APIError{StatusCode: http.StatusNotFound, Message: "stream session " + arn + " not found"}
}

func validation(msg string) error {
	return &APIError{StatusCode: http.StatusBadRequest, Message: msg}
}

func (m *Mock) StartStreamSession(ctx context.Context, req StartRequest) (session.Info, error) {
	switch {
	case strings.TrimSpace(req.ApplicationID) == "":
		return session.Info{}, validation("ApplicationIdentifier is required")
	case strings.TrimSpace(req.StreamGroupID) == "":
		return session.Info{}, validation("stream group identifier is required")
	case req.SignalRequest == "":
		return session.Info{}, validation("SignalRequest is required")
	case req.Protocol != ProtocolWebRTC:
		return session.Info{}, validation("unsupported protocol " + req.Protocol)
	}

	region := m.cfg.DefaultRegion
	if len(req.Regions) > 0 {
		region = req.Regions[0]
	}
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	arn := session.BuildARN(mockService, region, m.cfg.AccountID, req.StreamGroupID, id)

	answer, err := m.answerer.Answer(ctx, id, req.SignalRequest)
	if err != nil {
		return session.Info{}, &APIError{StatusCode: http.StatusInternalServerError, Message: err.Error()}
	}

	now := m.cfg.Now()
	rec := &session.Record{
		Info: session.Info{
			ARN:    arn,
			Status: session.Activating,
			Region: region,
		},
		StreamGroupID:            req.StreamGroupID,
		ApplicationID:            req.ApplicationID,
		UserID:                   req.UserID,
		Regions:                  req.Regions,
		ConnectionTimeoutSeconds: req.ConnectionTimeoutSeconds,
		CreatedAt:                now,
		ActivateAt:               now.Add(m.cfg.ActivationDelay),
	}
	m.mu.Lock()
	m.pending[arn] = answer
	m.mu.Unlock()
	m.store.Put(rec)

	m.log.Info().Str("arn", arn).Str("region", region).Msg("stream session started")
	return rec.Info, nil
}

func (m *Mock) GetStreamSession(_ context.Context, streamGroupID, arn string) (session.Info, error) {
	now := m.cfg.Now()
	rec, ok := m.store.Modify(arn, func(r *session.Record) {
		if r.Status == session.Activating && !now.Before(r.ActivateAt) {
			m.mu.Lock()
			r.SignalResponse = m.pending[r.ARN]
			delete(m.pending, r.ARN)
			m.mu.Unlock()
			r.Status = session.Active
		}
	})
	if !ok || rec.StreamGroupID != streamGroupID {
		return session.Info{}, notFound(arn)
	}
	return rec.Info, nil
}

func (m *Mock) CreateStreamSessionConnection(ctx context.Context, streamGroupID, arn, signalRequest string) (string, error) {
	rec, ok := m.store.Get(arn)
	if !ok || rec.StreamGroupID != streamGroupID {
		return "", notFound(arn)
	}
	if rec.Status.Phase() == session.PhaseFailed {
		return "", &APIError{StatusCode: http.StatusConflict, Message: "stream session " + arn + " is " + string(rec.Status)}
	}
	if signalRequest == "" {
		return "", validation("SignalRequest is required")
	}

	answer, err := m.answerer.Answer(ctx, session.SessionIDFromARN(arn), signalRequest)
	if err != nil {
		return "", &APIError{StatusCode: http.StatusInternalServerError, Message: err.Error()}
	}
	m.store.Modify(arn, func(r *session.Record) {
		r.Status = session.Active
		r.SignalResponse = answer
		r.Connections++
	})

	m.log.Info().Str("arn", arn).Msg("stream session reconnected")
	return answer, nil
}

// Terminate ends a session and releases its host connection.
func (m *Mock) Terminate(arn string) error {
	if _, ok := m.store.Modify(arn, func(r *session.Record) {
		r.Status = session.Terminated
		r.SignalResponse = ""
	}); !ok {
		return notFound(arn)
	}
	m.mu.Lock()
	delete(m.pending, arn)
	m.mu.Unlock()

	if err := m.answerer.Release(session.SessionIDFromARN(arn)); err != nil {
		m.log.Debug().Err(err).Str("arn", arn).Msg("release host connection")
	}
	return nil
}

// ErrPerformanceUnavailable is returned when the mock has no stats source.
var ErrPerformanceUnavailable = errors.New("controlplane: performance stats unavailable")

func (m *Mock) StreamPerformance(ctx context.Context, arn string) (<-chan session.PerformanceStats, error) {
	if m.perf == nil {
		return nil, ErrPerformanceUnavailable
	}
	if _, ok := m.store.Get(arn); !ok {
		return nil, notFound(arn)
	}

	out := make(chan session.PerformanceStats, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(m.cfg.PerformancePeriod)
		defer ticker.Stop()
		for {
			rec, ok := m.store.Get(arn)
			if !ok || rec.Status.IsTerminal() {
				return
			}
			if rec.Status == session.Active {
				sample, err := m.perf.Sample(ctx)
				if err != nil {
					m.log.Warn().Err(err).Str("arn", arn).Msg("performance sample failed")
				} else {
					select {
					case out <- sample:
					case <-ctx.Done():
						return
					}
				}
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Sessions returns every session the mock knows about, oldest first.
func (m *Mock) Sessions() []*session.Record {
	return m.store.GetAll()
}

// ActiveCount returns how many sessions have not reached a terminal status.
func (m *Mock) ActiveCount() int {
	return m.store.ActiveCount()
}
