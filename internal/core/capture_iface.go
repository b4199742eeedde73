package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// LocalTrack is one captured local media track. Close must stop the
// underlying device capture.
type LocalTrack interface {
	webrtc.TrackLocal
	Close() error
}

// CaptureDevice acquires local media capture for a call. The console only
// ever captures audio; video is receive-only.
type CaptureDevice interface {
	Capture(ctx context.Context) ([]LocalTrack, error)
}

// MediaEngineTuner lets a capture implementation register its codecs with
// the transport engine before a connection is built.
type MediaEngineTuner interface {
	Populate(*webrtc.MediaEngine) error
}
