// Package controlplane talks to the managed streaming service that owns
// stream sessions.
package controlplane

import (
	"context"
	"fmt"

	"github.com/gamestream/streamctl/internal/session"
)

// ProtocolWebRTC is the only stream protocol the service supports.
const ProtocolWebRTC = "WebRTC"

type StartRequest struct {
	ApplicationID            string
	StreamGroupID            string
	SignalRequest            string
	Regions                  []string
	ConnectionTimeoutSeconds int
	UserID                   string
	Protocol                 string
	SharePerformanceStats    bool
}

// Client is the control plane surface the gateway proxies.
type Client interface {
	StartStreamSession(ctx context.Context, req StartRequest) (session.Info, error)
	GetStreamSession(ctx context.Context, streamGroupID, arn string) (session.Info, error)
	CreateStreamSessionConnection(ctx context.Context, streamGroupID, arn, signalRequest string) (string, error)
}

// PerformanceFeed is implemented by control planes that can stream a
// session's performance stats. The channel is closed when ctx ends or the
// session goes away.
type PerformanceFeed interface {
	StreamPerformance(ctx context.Context, arn string) (<-chan session.PerformanceStats, error)
}

// Inventory is implemented by control planes that keep their own session
// records, such as the mock.
type Inventory interface {
	Sessions() []*session.Record
	ActiveCount() int
}

// APIError is a failed control plane call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("control plane: %d: %s", e.StatusCode, e.Message)
}
