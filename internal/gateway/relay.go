package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gamestream/streamctl/internal/controlplane"
	"github.com/gamestream/streamctl/internal/observability"
	"github.com/gamestream/streamctl/internal/session"
)

var ErrTooManyClients = errors.New("gateway: too many performance clients")

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 16),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// feedGroup is one upstream subscription shared by every client watching
// the same session.
type feedGroup struct {
	clients map[*client]bool
	cancel  context.CancelFunc
}

// Relay fans a session's performance stats out to websocket clients.
type Relay struct {
	feed       controlplane.PerformanceFeed
	maxClients int
	log        zerolog.Logger

	mu     sync.Mutex
	groups map[string]*feedGroup
	count  int
}

func NewRelay(feed controlplane.PerformanceFeed, maxClients int, logger zerolog.Logger) *Relay {
	return &Relay{
		feed:       feed,
		maxClients: maxClients,
		log:        logger,
		groups:     make(map[string]*feedGroup),
	}
}

// Full reports whether another client would exceed the limit.
func (r *Relay) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxClients > 0 && r.count >= r.maxClients
}

// Add registers conn for arn, subscribing upstream if it is the first
// client for that session.
func (r *Relay) Add(arn string, conn *websocket.Conn) (*client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxClients > 0 && r.count >= r.maxClients {
		return nil, ErrTooManyClients
	}

	g, ok := r.groups[arn]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		samples, err := r.feed.StreamPerformance(ctx, arn)
		if err != nil {
			cancel()
			return nil, err
		}
		g = &feedGroup{clients: make(map[*client]bool), cancel: cancel}
		r.groups[arn] = g
		go r.pump(arn, g, samples)
	}

	c := newClient(conn)
	g.clients[c] = true
	r.count++
	observability.SetPerformanceClients(r.count)
	return c, nil
}

func (r *Relay) Remove(arn string, c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(arn, c)
}

func (r *Relay) removeLocked(arn string, c *client) {
	g, ok := r.groups[arn]
	if !ok {
		return
	}
	if _, ok := g.clients[c]; !ok {
		return
	}
	delete(g.clients, c)
	c.close()
	r.count--
	observability.SetPerformanceClients(r.count)

	if len(g.clients) == 0 {
		g.cancel()
		delete(r.groups, arn)
	}
}

// pump forwards upstream samples until the feed closes, then disconnects
// the group's clients.
func (r *Relay) pump(arn string, g *feedGroup, samples <-chan session.PerformanceStats) {
	for sample := range samples {
		r.broadcast(arn, g, WSMessage{Type: MsgPerformance, Payload: sample})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.groups[arn] != g {
		return
	}
	for c := range g.clients {
		r.removeLocked(arn, c)
	}
	r.log.Debug().Str("arn", arn).Msg("performance feed ended")
}

func (r *Relay) broadcast(arn string, g *feedGroup, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("performance marshal failed")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range g.clients {
		select {
		case c.send <- data:
		default:
			r.log.Warn().Str("arn", arn).Msg("performance client too slow, disconnecting")
			r.removeLocked(arn, c)
		}
	}
}

func (r *Relay) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close drops every client and upstream subscription.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for arn, g := range r.groups {
		for c := range g.clients {
			r.removeLocked(arn, c)
		}
	}
}
