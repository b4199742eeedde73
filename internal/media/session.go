// Package media owns one call's local capture and the mapping from inbound
// tracks to output sinks.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/roadwatch/dashcall/internal/core"
	"github.com/roadwatch/dashcall/internal/domain"
)

// ErrCapture marks a failed local capture acquisition (permission denied,
// no device). Terminal for the call attempt; callers do not retry.
var ErrCapture = errors.New("local capture unavailable")

// TrackRegistrar is the slice of the transport connection the session
// needs for outbound media.
type TrackRegistrar interface {
	AddLocalTrack(webrtc.TrackLocal) (*webrtc.RTPSender, error)
}

// Session binds local capture and sink routing to a single call. It is
// created per call and released on any termination trigger.
type Session struct {
	mode      domain.CallMode
	registrar TrackRegistrar
	capture   core.CaptureDevice
	audioSink core.AudioSink
	videoSink core.Sink

	mu              sync.Mutex
	tracks          []core.LocalTrack
	audioBound      bool
	videoBound      bool
	playbackPending bool
	released        bool
}

func NewSession(mode domain.CallMode, registrar TrackRegistrar, capture core.CaptureDevice, audioSink core.AudioSink, videoSink core.Sink) *Session {
	return &Session{
		mode:      mode,
		registrar: registrar,
		capture:   capture,
		audioSink: audioSink,
		videoSink: videoSink,
	}
}

// BeginCapture acquires local audio capture. Failure is terminal for the
// call attempt; the caller tears the session down rather than retrying.
func (s *Session) BeginCapture(ctx context.Context) error {
	tracks, err := s.capture.Capture(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCapture, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		for _, tr := range tracks {
			_ = tr.Close()
		}
		return nil
	}
	s.tracks = tracks
	log.Info().Str("module", "media").Int("tracks", len(tracks)).Msg("local capture acquired")
	return nil
}

// AttachOutbound registers all captured tracks with the transport
// connection for transmission.
func (s *Session) AttachOutbound() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tr := range s.tracks {
		if _, err := s.registrar.AddLocalTrack(tr); err != nil {
			return fmt.Errorf("add local track: %w", err)
		}
	}
	return nil
}

// HasLocalTracks reports whether capture produced anything to send.
func (s *Session) HasLocalTracks() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracks) > 0
}

// HandleInboundTrack routes an arriving track to its sink. Audio always
// plays; video only in a video session — the device should not send video
// in audio mode, but the console does not trust this. A new track of a
// kind replaces the previous binding for that kind.
func (s *Session) HandleInboundTrack(ctx context.Context, track core.RemoteTrack, receiver *webrtc.RTPReceiver) {
	var sink core.Sink
	switch {
	case track.Kind() == webrtc.RTPCodecTypeAudio:
		sink = s.audioSink
	case track.Kind() == webrtc.RTPCodecTypeVideo && s.mode == domain.ModeVideo:
		sink = s.videoSink
	default:
		log.Warn().Str("module", "media").Str("kind", track.Kind().String()).Str("mode", string(s.mode)).Msg("ignoring inbound track for mode")
		return
	}

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	err := sink.Attach(ctx, track, receiver)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		// Playback could not start yet (output busy, autoplay-style
		// restriction). Surfaced as a call-to-action, not an error.
		s.playbackPending = true
		log.Warn().Str("module", "media").Err(err).Str("kind", track.Kind().String()).Msg("sink attach deferred")
		return
	}
	s.playbackPending = false
	if track.Kind() == webrtc.RTPCodecTypeAudio {
		s.audioBound = true
	} else {
		s.videoBound = true
	}
}

// AudioLevel returns the last dBov reading from the audio sink.
func (s *Session) AudioLevel() uint8 {
	return s.audioSink.LastLevel()
}

func (s *Session) PlaybackPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playbackPending
}

func (s *Session) VideoPresent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoBound
}

// Release stops all capture tracks and detaches sinks. Idempotent.
func (s *Session) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	tracks := s.tracks
	s.tracks = nil
	s.audioBound = false
	s.videoBound = false
	s.playbackPending = false
	s.mu.Unlock()

	for _, tr := range tracks {
		if err := tr.Close(); err != nil {
			log.Error().Str("module", "media").Err(err).Msg("stop capture track")
		}
	}
	s.audioSink.Detach()
	s.videoSink.Detach()
	log.Info().Str("module", "media").Msg("session released")
}
