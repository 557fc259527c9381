package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

type HostConfig struct {
	ICEServers    []string
	GatherTimeout time.Duration
	LoggerFactory logging.LoggerFactory
}

// Host answers client offers, one peer connection per session. Each session
// gets a video and an audio track.
type Host struct {
	cfg HostConfig
	api *webrtc.API
	log logging.LeveledLogger

	mu    sync.Mutex
	peers map[string]*webrtc.PeerConnection
}

func NewHost(cfg HostConfig) (*Host, error) {
	api, err := newAPI(cfg.LoggerFactory)
	if err != nil {
		return nil, err
	}
	return &Host{
		cfg:   cfg,
		api:   api,
		log:   loggerFor(cfg.LoggerFactory, "streamgw-host"),
		peers: make(map[string]*webrtc.PeerConnection),
	}, nil
}

// Answer negotiates a new connection for sessionID, replacing any earlier one
// (a reconnect), and returns the encoded answer.
func (h *Host) Answer(ctx context.Context, sessionID, offer string) (string, error) {
	desc, err := DecodeSignal(offer, webrtc.SDPTypeOffer)
	if err != nil {
		return "", err
	}

	pc, err := h.api.NewPeerConnection(iceConfiguration(h.cfg.ICEServers))
	if err != nil {
		return "", fmt.Errorf("transport: new peer connection: %w", err)
	}

	if err := addHostTracks(pc, sessionID); err != nil {
		pc.Close()
		return "", err
	}
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			h.log.Debugf("session %s %s: %s", sessionID, dc.Label(), string(msg.Data))
		})
	})

	if err := pc.SetRemoteDescription(desc); err != nil {
		pc.Close()
		return "", fmt.Errorf("transport: apply offer: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("transport: create answer: %w", err)
	}
	if err := setLocalAndGather(ctx, pc, answer, h.cfg.GatherTimeout); err != nil {
		pc.Close()
		return "", err
	}
	encoded, err := EncodeSignal(*pc.LocalDescription())
	if err != nil {
		pc.Close()
		return "", err
	}

	h.mu.Lock()
	prev := h.peers[sessionID]
	h.peers[sessionID] = pc
	h.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return encoded, nil
}

func addHostTracks(pc *webrtc.PeerConnection, streamID string) error {
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
	if err != nil {
		return fmt.Errorf("transport: video track: %w", err)
	}
	if _, err := pc.AddTrack(video); err != nil {
		return fmt.Errorf("transport: add video track: %w", err)
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		return fmt.Errorf("transport: audio track: %w", err)
	}
	if _, err := pc.AddTrack(audio); err != nil {
		return fmt.Errorf("transport: add audio track: %w", err)
	}
	return nil
}

// Release closes the connection for sessionID.
func (h *Host) Release(sessionID string) error {
	h.mu.Lock()
	pc, ok := h.peers[sessionID]
	delete(h.peers, sessionID)
	h.mu.Unlock()
	if !ok {
		return ErrUnknownPeer
	}
	return pc.Close()
}

func (h *Host) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *Host) Close() error {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]*webrtc.PeerConnection)
	h.mu.Unlock()

	var firstErr error
	for _, pc := range peers {
		if err := pc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
