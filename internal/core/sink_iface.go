package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Sink is a playback destination for one inbound media track. Attach
// replaces any previous binding; playback start may fail, which callers
// surface as a pending-playback sub-state rather than an error.
type Sink interface {
	Attach(ctx context.Context, track RemoteTrack, receiver *webrtc.RTPReceiver) error
	Detach()
}

// Silence in dBov per RFC 6464; readings range 0 (loudest) to 127.
const AudioLevelSilence uint8 = 127

// AudioSink additionally exposes the most recent audio level reading
// carried by the inbound stream.
type AudioSink interface {
	Sink
	// LastLevel returns the last observed level in dBov, AudioLevelSilence
	// when nothing has been heard yet.
	LastLevel() uint8
}
