package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// InputChannelLabel names the data channel that carries input events.
const InputChannelLabel = "input"

type PeerConfig struct {
	ICEServers    []string
	GatherTimeout time.Duration
	LoggerFactory logging.LoggerFactory
}

// PeerEngine is the client side of a stream: it receives audio and video and
// sends input over a data channel.
type PeerEngine struct {
	cfg PeerConfig
	pc  *webrtc.PeerConnection
	log logging.LeveledLogger

	mu       sync.Mutex
	input    *webrtc.DataChannel
	answered bool
	attached bool
	closed   bool
}

var _ Engine = (*PeerEngine)(nil)

func newAPI(loggerFactory logging.LoggerFactory) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("transport: register codecs: %w", err)
	}
	s := webrtc.SettingEngine{}
	if loggerFactory != nil {
		s.LoggerFactory = loggerFactory
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(s)), nil
}

func iceConfiguration(servers []string) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(servers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: servers}}
	}
	return cfg
}

func loggerFor(f logging.LoggerFactory, scope string) logging.LeveledLogger {
	if f == nil {
		f = logging.NewDefaultLoggerFactory()
	}
	return f.NewLogger(scope)
}

func NewPeerEngine(cfg PeerConfig) (*PeerEngine, error) {
	api, err := newAPI(cfg.LoggerFactory)
	if err != nil {
		return nil, err
	}
	pc, err := api.NewPeerConnection(iceConfiguration(cfg.ICEServers))
	if err != nil {
		return nil, fmt.Errorf("transport: new peer connection: %w", err)
	}

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("transport: add %s transceiver: %w", kind, err)
		}
	}

	input, err := pc.CreateDataChannel(InputChannelLabel, nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("transport: create input channel: %w", err)
	}

	e := &PeerEngine{
		cfg:   cfg,
		pc:    pc,
		log:   loggerFor(cfg.LoggerFactory, "streamctl-peer"),
		input: input,
	}

	// Media is received and discarded; decode and render live elsewhere.
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.log.Debugf("track %s (%s) started", track.ID(), track.Kind())
		buf := make([]byte, 1500)
		for {
			if _, _, err := track.Read(buf); err != nil {
				if err != io.EOF {
					e.log.Debugf("track %s ended: %v", track.ID(), err)
				}
				return
			}
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		e.log.Infof("peer connection state %s", s)
	})
	input.OnOpen(func() {
		e.mu.Lock()
		attached := e.attached
		e.mu.Unlock()
		if attached {
			e.sendAttach()
		}
	})

	return e, nil
}

func (e *PeerEngine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

func (e *PeerEngine) GenerateOffer(ctx context.Context) (string, error) {
	if err := e.checkOpen(); err != nil {
		return "", err
	}
	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("transport: create offer: %w", err)
	}
	if err := setLocalAndGather(ctx, e.pc, offer, e.cfg.GatherTimeout); err != nil {
		return "", err
	}
	return EncodeSignal(*e.pc.LocalDescription())
}

func (e *PeerEngine) ApplyAnswer(_ context.Context, answer string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	desc, err := DecodeSignal(answer, webrtc.SDPTypeAnswer)
	if err != nil {
		return err
	}
	if err := e.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("transport: apply answer: %w", err)
	}
	e.mu.Lock()
	e.answered = true
	e.mu.Unlock()
	return nil
}

// AttachInput enables input forwarding. The attach message is sent as soon
// as the input channel opens.
func (e *PeerEngine) AttachInput(_ context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if !e.answered {
		e.mu.Unlock()
		return ErrNoRemoteDescription
	}
	e.attached = true
	open := e.input.ReadyState() == webrtc.DataChannelStateOpen
	e.mu.Unlock()

	if open {
		e.sendAttach()
	}
	return nil
}

type inputMessage struct {
	Type string `json:"type"`
}

func (e *PeerEngine) sendAttach() {
	data, _ := json.Marshal(inputMessage{Type: "attach"})
	if err := e.input.SendText(string(data)); err != nil {
		e.log.Warnf("send attach: %v", err)
	}
}

func (e *PeerEngine) Stats(_ context.Context) (Snapshot, error) {
	if err := e.checkOpen(); err != nil {
		return Snapshot{}, err
	}
	return snapshotFromPion(e.pc.GetStats(), time.Now())
}

func (e *PeerEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	e.mu.Unlock()

	if err := e.pc.Close(); err != nil {
		return fmt.Errorf("transport: close: %w", err)
	}
	return nil
}

// setLocalAndGather sets desc as the local description and waits for ICE
// gathering so the signal carries every candidate. When the gather timeout
// elapses first, whatever was gathered so far is used.
func setLocalAndGather(ctx context.Context, pc *webrtc.PeerConnection, desc webrtc.SessionDescription, timeout time.Duration) error {
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("transport: set local description: %w", err)
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-gatherComplete:
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// NewPeerFactory returns a Factory that builds PeerEngines from cfg.
func NewPeerFactory(cfg PeerConfig) Factory {
	return func() (Engine, error) {
		return NewPeerEngine(cfg)
	}
}
