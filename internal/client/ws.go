package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/gamestream/streamctl/internal/session"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// PerformanceClient subscribes to a session's performance stats over the
// gateway websocket.
type PerformanceClient struct {
	baseURL string
	token   string
	dialer  *websocket.Dialer

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	arn     string
	cancel  context.CancelFunc
}

func NewPerformanceClient(baseURL, token string) *PerformanceClient {
	return &PerformanceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		dialer:  websocket.DefaultDialer,
	}
}

// --- Bubble Tea messages ---

// PerfConnectedMsg is sent when the performance feed for ARN connects.
type PerfConnectedMsg struct{ ARN string }

// PerfUnavailableMsg is sent when the gateway has no feed for the session.
// It is informational only.
type PerfUnavailableMsg struct {
	ARN    string
	Reason string
}

// PerfSampleMsg delivers one performance stats sample.
type PerfSampleMsg struct {
	ARN    string
	Sample session.PerformanceStats
}

// PerfClosedMsg is sent when the feed ends.
type PerfClosedMsg struct {
	ARN string
	Err error
}

var errNoConnection = errors.New("client: performance feed not connected")

func (c *PerformanceClient) wsURL(arn string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String() + "/performance/" + url.PathEscape(arn), nil
}

// Subscribe returns a command that opens the feed for arn, replacing any
// previous subscription.
func (c *PerformanceClient) Subscribe(ctx context.Context, arn string) tea.Cmd {
	return func() tea.Msg {
		target, err := c.wsURL(arn)
		if err != nil {
			return PerfUnavailableMsg{ARN: arn, Reason: err.Error()}
		}
		header := http.Header{}
		if c.token != "" {
			header.Set("Authorization", "Bearer "+c.token)
		}

		conn, resp, err := c.dialer.DialContext(ctx, target, header)
		if err != nil {
			reason := err.Error()
			if resp != nil {
				reason = resp.Status
			}
			return PerfUnavailableMsg{ARN: arn, Reason: reason}
		}

		c.mu.Lock()
		if c.cancel != nil {
			c.cancel()
		}
		if c.conn != nil {
			c.conn.Close()
		}
		pingCtx, cancel := context.WithCancel(ctx)
		c.conn = conn
		c.arn = arn
		c.cancel = cancel
		c.mu.Unlock()

		go c.pingLoop(pingCtx, conn)
		return PerfConnectedMsg{ARN: arn}
	}
}

// ReadLoop returns a command that blocks for the next sample. Issue it again
// after each PerfSampleMsg.
func (c *PerformanceClient) ReadLoop() tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn, arn := c.conn, c.arn
		c.mu.Unlock()
		if conn == nil {
			return PerfClosedMsg{Err: errNoConnection}
		}

		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongTimeout))
			return nil
		})
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.drop(conn)
				return PerfClosedMsg{ARN: arn, Err: err}
			}

			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case MsgPerformance:
				var sample session.PerformanceStats
				if json.Unmarshal(msg.Payload, &sample) == nil {
					return PerfSampleMsg{ARN: arn, Sample: sample}
				}
			case MsgError:
				var e struct {
					Message string `json:"message"`
				}
				json.Unmarshal(msg.Payload, &e)
				c.drop(conn)
				return PerfUnavailableMsg{ARN: arn, Reason: e.Message}
			}
		}
	}
}

func (c *PerformanceClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}
	c.mu.Unlock()
	conn.Close()
}

// Close ends the current subscription, if any.
func (c *PerformanceClient) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.drop(conn)
	}
}

func (c *PerformanceClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
