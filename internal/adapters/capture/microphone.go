// Package capture acquires the console microphone through pion/mediadevices.
package capture

import (
	"context"
	"time"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	_ "github.com/pion/mediadevices/pkg/driver/microphone" // registers the microphone adapter
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/roadwatch/dashcall/internal/core"
)

// Microphone captures local audio as opus tracks. Echo cancellation and
// gain control ride on the platform driver defaults.
type Microphone struct {
	selector *mediadevices.CodecSelector
}

func NewMicrophone() (*Microphone, error) {
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}
	opusParams.Latency = opus.Latency20ms

	return &Microphone{
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithAudioEncoders(&opusParams),
		),
	}, nil
}

// Populate registers the selector's codecs with the transport engine so
// captured tracks negotiate cleanly.
func (m *Microphone) Populate(engine *webrtc.MediaEngine) error {
	m.selector.Populate(engine)
	return nil
}

func (m *Microphone) Capture(_ context.Context) ([]core.LocalTrack, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(48000)
			c.ChannelCount = prop.Int(1)
			c.SampleSize = prop.Int(16)
			c.Latency = prop.Duration(20 * time.Millisecond)
		},
		Codec: m.selector,
	})
	if err != nil {
		return nil, err
	}

	audio := stream.GetAudioTracks()
	tracks := make([]core.LocalTrack, 0, len(audio))
	for _, tr := range audio {
		tracks = append(tracks, tr)
	}
	log.Info().Str("module", "capture").Int("tracks", len(tracks)).Msg("microphone acquired")
	return tracks, nil
}
