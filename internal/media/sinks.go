package media

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/roadwatch/dashcall/internal/core"
)

// MonitorAudioSink drains an inbound audio track and keeps the most recent
// ssrc-audio-level reading. A real deployment would chain a player behind
// it; the call core only needs the drain and the level.
type MonitorAudioSink struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	level  atomic.Uint32
}

func NewMonitorAudioSink() *MonitorAudioSink {
	s := &MonitorAudioSink{}
	s.level.Store(uint32(core.AudioLevelSilence))
	return s
}

func (s *MonitorAudioSink) Attach(ctx context.Context, track core.RemoteTrack, receiver *webrtc.RTPReceiver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.level.Store(uint32(core.AudioLevelSilence))

	extID := audioLevelExtensionID(receiver)
	go s.drain(ctx, track, extID)
	log.Info().Str("module", "media").Str("track_id", track.ID()).Uint8("level_ext", extID).Msg("audio sink attached")
	return nil
}

func (s *MonitorAudioSink) drain(ctx context.Context, track core.RemoteTrack, extID uint8) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Str("module", "media").Err(err).Msg("audio drain ended")
			return
		}
		if lvl, ok := parseLevel(pkt, extID); ok {
			s.level.Store(uint32(lvl))
		}
	}
}

func (s *MonitorAudioSink) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.level.Store(uint32(core.AudioLevelSilence))
}

func (s *MonitorAudioSink) LastLevel() uint8 {
	return uint8(s.level.Load())
}

// parseLevel extracts the RFC 6464 audio level from a packet, if the
// extension was negotiated and present.
func parseLevel(pkt *rtp.Packet, extID uint8) (uint8, bool) {
	if extID == 0 || pkt == nil {
		return 0, false
	}
	payload := pkt.GetExtension(extID)
	if payload == nil {
		return 0, false
	}
	var ext rtp.AudioLevelExtension
	if err := ext.Unmarshal(payload); err != nil {
		return 0, false
	}
	return ext.Level, true
}

func audioLevelExtensionID(receiver *webrtc.RTPReceiver) uint8 {
	if receiver == nil {
		return 0
	}
	for _, ext := range receiver.GetParameters().HeaderExtensions {
		if ext.URI == sdp.AudioLevelURI {
			return uint8(ext.ID)
		}
	}
	return 0
}

// MonitorVideoSink drains an inbound video track so the transport keeps
// flowing, and reports whether any packets have arrived.
type MonitorVideoSink struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	packets atomic.Uint64
}

func NewMonitorVideoSink() *MonitorVideoSink {
	return &MonitorVideoSink{}
}

func (s *MonitorVideoSink) Attach(ctx context.Context, track core.RemoteTrack, _ *webrtc.RTPReceiver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.packets.Store(0)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if _, _, err := track.ReadRTP(); err != nil {
				log.Debug().Str("module", "media").Err(err).Msg("video drain ended")
				return
			}
			s.packets.Add(1)
		}
	}()
	log.Info().Str("module", "media").Str("track_id", track.ID()).Msg("video sink attached")
	return nil
}

func (s *MonitorVideoSink) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *MonitorVideoSink) Receiving() bool {
	return s.packets.Load() > 0
}
