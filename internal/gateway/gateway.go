// Package gateway is the Session Gateway: three stateless operations that
// proxy the client to the control plane, and the HTTP surface that exposes
// them.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gamestream/streamctl/internal/controlplane"
	"github.com/gamestream/streamctl/internal/observability"
	"github.com/gamestream/streamctl/internal/session"
)

// DefaultConnectionTimeoutSeconds applies when neither the request nor the
// gateway configuration sets a connection timeout.
const DefaultConnectionTimeoutSeconds = 120

// Error is the single failure kind every operation returns. Message carries
// the underlying diagnostic unchanged.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	msg := err.Error()
	var apiErr *controlplane.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	return &Error{Message: msg, Err: err}
}

type StartRequest struct {
	ApplicationID            string
	StreamGroupID            string
	SignalRequest            string
	Regions                  []string
	ConnectionTimeoutSeconds int
	UserID                   string
}

// Gateway holds the control plane client shared by every request. It keeps
// no per-session state.
type Gateway struct {
	cp                controlplane.Client
	connectionTimeout int
	log               zerolog.Logger
}

func New(cp controlplane.Client, connectionTimeoutSeconds int, logger zerolog.Logger) *Gateway {
	if connectionTimeoutSeconds <= 0 {
		connectionTimeoutSeconds = DefaultConnectionTimeoutSeconds
	}
	return &Gateway{
		cp:                cp,
		connectionTimeout: connectionTimeoutSeconds,
		log:               logger,
	}
}

// ControlPlane returns the shared control plane client.
func (g *Gateway) ControlPlane() controlplane.Client {
	return g.cp
}

func (g *Gateway) StartSession(ctx context.Context, req StartRequest) (session.Info, error) {
	timeout := req.ConnectionTimeoutSeconds
	if timeout <= 0 {
		timeout = g.connectionTimeout
	}

	start := time.Now()
	info, err := g.cp.StartStreamSession(ctx, controlplane.StartRequest{
		ApplicationID:            req.ApplicationID,
		StreamGroupID:            req.StreamGroupID,
		SignalRequest:            req.SignalRequest,
		Regions:                  req.Regions,
		ConnectionTimeoutSeconds: timeout,
		UserID:                   req.UserID,
		Protocol:                 controlplane.ProtocolWebRTC,
		SharePerformanceStats:    true,
	})
	observability.RecordControlPlaneCall("start_stream_session", time.Since(start), err)
	if err != nil {
		g.log.Warn().Err(err).Str("stream_group", req.StreamGroupID).Msg("start stream session failed")
		return session.Info{}, wrap(err)
	}

	g.log.Info().
		Str("arn", info.ARN).
		Str("status", string(info.Status)).
		Str("region", info.Region).
		Msg("stream session started")
	return info, nil
}

func (g *Gateway) GetSession(ctx context.Context, streamGroupID, arn string) (session.Info, error) {
	start := time.Now()
	info, err := g.cp.GetStreamSession(ctx, streamGroupID, arn)
	observability.RecordControlPlaneCall("get_stream_session", time.Since(start), err)
	if err != nil {
		g.log.Debug().Err(err).Str("arn", arn).Msg("get stream session failed")
		return session.Info{}, wrap(err)
	}
	return info, nil
}

// CreateConnection reconnects to an existing session. The stream group is
// taken from the ARN.
func (g *Gateway) CreateConnection(ctx context.Context, arn, signalRequest string) (string, error) {
	arn = strings.TrimSpace(arn)
	group, err := session.StreamGroupFromARN(arn)
	if err != nil {
		return "", wrap(err)
	}

	start := time.Now()
	answer, err := g.cp.CreateStreamSessionConnection(ctx, group, arn, signalRequest)
	observability.RecordControlPlaneCall("create_stream_session_connection", time.Since(start), err)
	if err != nil {
		g.log.Warn().Err(err).Str("arn", arn).Msg("create stream session connection failed")
		return "", wrap(err)
	}

	g.log.Info().Str("arn", arn).Str("stream_group", group).Msg("stream session connection created")
	return answer, nil
}
