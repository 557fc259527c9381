// Package client talks to the Session Gateway. Types mirror the gateway wire
// protocol without importing the gateway package.
package client

import (
	"encoding/json"
	"fmt"
)

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

type reconnectRequest struct {
	SessionIdentifier string `json:"SessionIdentifier"`
	SignalRequest     string `json:"SignalRequest"`
}

type reconnectResponse struct {
	SignalResponse string `json:"signalResponse"`
}

type MessageType string

const (
	MsgPerformance MessageType = "performance"
	MsgError       MessageType = "error"
)

type WSMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RequestError is a non-2xx gateway response. Message is the gateway's
// free-text diagnostic.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return e.Message
}
