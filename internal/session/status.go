package session

import "strings"

// Status is the control plane's view of a stream session.
type Status string

const (
	Activating                Status = "ACTIVATING"
	Active                    Status = "ACTIVE"
	Connected                 Status = "CONNECTED"
	PendingClientReconnection Status = "PENDING_CLIENT_RECONNECTION"
	Reconnecting              Status = "RECONNECTING"
	Terminating               Status = "TERMINATING"
	Terminated                Status = "TERMINATED"
	Error                     Status = "ERROR"
)

// Phase collapses the control-plane vocabulary into the three states the
// lifecycle controller acts on.
type Phase int

const (
	PhasePending Phase = iota
	PhaseActive
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseFailed:
		return "failed"
	default:
		return "pending"
	}
}

// ParseStatus normalizes a status string from the wire. Unknown values are
// kept as-is so they fall into the pending phase.
func ParseStatus(s string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(s)))
}

func (s Status) Phase() Phase {
	switch s {
	case Active:
		return PhaseActive
	case Error, Terminated, Terminating:
		return PhaseFailed
	default:
		return PhasePending
	}
}

func (s Status) IsTerminal() bool {
	return s == Terminated || s == Error
}

// Info is what the control plane reports about one stream session.
type Info struct {
	ARN            string `json:"arn"`
	Status         Status `json:"status"`
	SignalResponse string `json:"signalResponse"`
	Region         string `json:"region"`
}
