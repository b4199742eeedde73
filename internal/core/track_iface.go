package core

import (
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// RemoteTrack is the slice of an inbound track that sinks consume.
// *webrtc.TrackRemote satisfies it.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}
