package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gamestream/streamctl/internal/controlplane"
	"github.com/gamestream/streamctl/internal/observability"
)

const maxBodyBytes = 1 << 20

type Server struct {
	gateway        *Gateway
	relay          *Relay
	authToken      string
	allowedOrigins map[string]bool
	log            zerolog.Logger
}

// NewServer builds the HTTP surface. The performance route is only served
// when the gateway's control plane implements controlplane.PerformanceFeed.
func NewServer(gw *Gateway, authToken string, allowedOrigins []string, maxPerformanceClients int, logger zerolog.Logger) *Server {
	s := &Server{
		gateway:        gw,
		authToken:      authToken,
		allowedOrigins: make(map[string]bool),
		log:            logger,
	}
	for _, origin := range allowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			s.allowedOrigins[trimmed] = true
		}
	}
	if feed, ok := gw.ControlPlane().(controlplane.PerformanceFeed); ok {
		s.relay = NewRelay(feed, maxPerformanceClients, logger)
	}
	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleStart)
	mux.HandleFunc("/session/", s.handleGet)
	mux.HandleFunc("/reconnect", s.handleReconnect)
	mux.HandleFunc("/performance/", s.handlePerformance)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", observability.Handler())
}

// Handler wraps mux with CORS, request logging and metrics.
func (s *Server) Handler(mux *http.ServeMux) http.Handler {
	return observability.Middleware(s.log, routeLabel, s.cors(mux))
}

// Close disconnects performance clients.
func (s *Server) Close() {
	if s.relay != nil {
		s.relay.Close()
	}
}

func routeLabel(r *http.Request) string {
	switch {
	case r.URL.Path == "/":
		return "/"
	case strings.HasPrefix(r.URL.Path, "/session/"):
		return "/session"
	case strings.HasPrefix(r.URL.Path, "/performance/"):
		return "/performance"
	case r.URL.Path == "/reconnect", r.URL.Path == "/metrics", r.URL.Path == "/healthz":
		return r.URL.Path
	default:
		return "other"
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	return s.allowedOrigins["*"] || s.allowedOrigins[origin]
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}
	// Browsers cannot set headers on websocket upgrades.
	if websocket.IsWebSocketUpgrade(r) && r.URL.Query().Get("token") == s.authToken {
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Message: msg})
}

// writeGatewayError maps any operation failure to a 500 with the
// diagnostic message.
func writeGatewayError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var gwErr *Error
	if errors.As(err, &gwErr) {
		msg = gwErr.Message
	}
	writeError(w, http.StatusInternalServerError, msg)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req StartSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	info, err := s.gateway.StartSession(r.Context(), StartRequest{
		ApplicationID: req.AppIdentifier,
		StreamGroupID: req.SGIdentifier,
		SignalRequest: req.SignalRequest,
		Regions:       req.Regions,
		UserID:        req.UserID,
	})
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(info))
}

// splitEscaped splits the escaped path after prefix into unescaped segments.
func splitEscaped(r *http.Request, prefix string) ([]string, error) {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
	parts := strings.Split(rest, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v, err := url.PathUnescape(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	parts, err := splitEscaped(r, "/session/")
	if err != nil || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "expected /session/{streamGroupId}/{sessionArn}")
		return
	}

	info, err := s.gateway.GetSession(r.Context(), parts[0], parts[1])
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(info))
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ReconnectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	answer, err := s.gateway.CreateConnection(r.Context(), req.SessionIdentifier, req.SignalRequest)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReconnectResponse{SignalResponse: answer})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if inv, ok := s.gateway.ControlPlane().(controlplane.Inventory); ok {
		resp.ActiveSessions = inv.ActiveCount()
		resp.Sessions = make(map[string]int)
		for _, rec := range inv.Sessions() {
			resp.Sessions[string(rec.Status)]++
		}
	}
	if s.relay != nil {
		resp.PerformanceClients = s.relay.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if s.relay == nil {
		writeError(w, http.StatusNotFound, "performance stats not available")
		return
	}
	parts, err := splitEscaped(r, "/performance/")
	if err != nil || len(parts) != 1 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "expected /performance/{sessionArn}")
		return
	}
	arn := parts[0]
	if s.relay.Full() {
		writeError(w, http.StatusServiceUnavailable, ErrTooManyClients.Error())
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("performance upgrade failed")
		return
	}

	c, err := s.relay.Add(arn, conn)
	if err != nil {
		msg := err.Error()
		var apiErr *controlplane.APIError
		if errors.As(err, &apiErr) {
			msg = apiErr.Message
		}
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		conn.WriteJSON(WSMessage{Type: MsgError, Payload: ErrorResponse{Message: msg}})
		conn.Close()
		return
	}

	s.log.Info().Str("arn", arn).Str("remote", r.RemoteAddr).Msg("performance client connected")
	defer func() {
		s.relay.Remove(arn, c)
		s.log.Info().Str("arn", arn).Str("remote", r.RemoteAddr).Msg("performance client disconnected")
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// NewHTTPServer returns the server for handler on host:port.
func NewHTTPServer(host string, port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
