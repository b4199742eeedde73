// Package rtc adapts a pion PeerConnection to the console's MediaConnection
// surface. The console is the offering side of every call.
package rtc

import (
	"context"
	"sync"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/roadwatch/dashcall/internal/core"
	"github.com/roadwatch/dashcall/internal/domain"
)

type Connection struct {
	pc   *webrtc.PeerConnection
	mode domain.CallMode

	onICE   func(webrtc.ICECandidateInit)
	onState func(webrtc.PeerConnectionState)
	onTrack func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// Options configures one connection. Tuner is optional; a capture adapter
// uses it to register its codecs with the engine before the connection is
// built.
type Options struct {
	ICEServers []string
	Mode       domain.CallMode
	Tuner      core.MediaEngineTuner
}

func NewConnection(opts Options) (*Connection, error) {
	engine := &webrtc.MediaEngine{}
	if err := engine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	// Inbound audio carries RFC 6464 level data for the status meter.
	if err := engine.RegisterHeaderExtension(
		webrtc.RTPHeaderExtensionCapability{URI: sdp.AudioLevelURI},
		webrtc.RTPCodecTypeAudio,
	); err != nil {
		return nil, err
	}
	if opts.Tuner != nil {
		if err := opts.Tuner.Populate(engine); err != nil {
			return nil, err
		}
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(engine))
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: opts.ICEServers}},
	})
	if err != nil {
		return nil, err
	}
	return &Connection{pc: pc, mode: opts.Mode}, nil
}

func (c *Connection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer_connection_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			cancel()
		}
		if c.onState != nil {
			c.onState(s)
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && c.onICE != nil {
			c.onICE(cand.ToJSON())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if c.onTrack != nil {
			c.onTrack(ctx, track, receiver)
		}
	})

	return nil
}

// CreateAndSetOffer requests the media kinds the call mode implies and
// applies the offer as the local description. Candidates trickle through
// OnICECandidate afterwards.
func (c *Connection) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	if c.mode == domain.ModeVideo {
		if _, err := c.pc.AddTransceiverFromKind(
			webrtc.RTPCodecTypeVideo,
			webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly},
		); err != nil {
			return nil, err
		}
	}
	if !c.hasTransceiver(webrtc.RTPCodecTypeAudio) {
		if _, err := c.pc.AddTransceiverFromKind(
			webrtc.RTPCodecTypeAudio,
			webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly},
		); err != nil {
			return nil, err
		}
	}

	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

func (c *Connection) hasTransceiver(kind webrtc.RTPCodecType) bool {
	for _, tr := range c.pc.GetTransceivers() {
		if tr.Kind() == kind {
			return true
		}
	}
	return false
}

func (c *Connection) ApplyAnswer(answer webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(answer)
}

func (c *Connection) RemoteApplied() bool {
	return c.pc.RemoteDescription() != nil
}

func (c *Connection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *Connection) AddLocalTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	return c.pc.AddTrack(track)
}

func (c *Connection) OnICECandidate(fn func(webrtc.ICECandidateInit)) { c.onICE = fn }

func (c *Connection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) { c.onState = fn }

// OnTrack sets application-level callback for remote tracks.
func (c *Connection) OnTrack(fn func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	c.onTrack = fn
}

func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Msg("closed")
	}
}

func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
