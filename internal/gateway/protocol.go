package gateway

import "github.com/gamestream/streamctl/internal/session"

type StartSessionRequest struct {
	AppIdentifier string   `json:"AppIdentifier"`
	SGIdentifier  string   `json:"SGIdentifier"`
	SignalRequest string   `json:"SignalRequest"`
	Regions       []string `json:"Regions"`
	UserID        string   `json:"UserId,omitempty"`
}

type SessionResponse struct {
	SignalResponse string `json:"signalResponse"`
	ARN            string `json:"arn"`
	Region         string `json:"region"`
	Status         string `json:"status"`
}

func sessionResponse(info session.Info) SessionResponse {
	return SessionResponse{
		SignalResponse: info.SignalResponse,
		ARN:            info.ARN,
		Region:         info.Region,
		Status:         string(info.Status),
	}
}

type ReconnectRequest struct {
	SessionIdentifier string `json:"SessionIdentifier"`
	SignalRequest     string `json:"SignalRequest"`
}

type ReconnectResponse struct {
	SignalResponse string `json:"signalResponse"`
}

// HealthResponse is served on /healthz. Session counts are only present
// when the control plane keeps its own records.
type HealthResponse struct {
	Status             string         `json:"status"`
	ActiveSessions     int            `json:"active_sessions"`
	Sessions           map[string]int `json:"sessions,omitempty"`
	PerformanceClients int            `json:"performance_clients"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

type MessageType string

const (
	MsgPerformance MessageType = "performance"
	MsgError       MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}
