package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaConnection is the capability surface the console consumes from the
// transport engine. The console is always the offering side.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	IsClosed() bool
	// CreateAndSetOffer builds a local offer for the requested media kinds
	// and applies it as the local description.
	CreateAndSetOffer() (*webrtc.SessionDescription, error)
	// ApplyAnswer applies the remote answer description.
	ApplyAnswer(webrtc.SessionDescription) error
	// RemoteApplied reports whether a remote description has been set.
	RemoteApplied() bool
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnConnectionStateChange sets a callback for peer connection state moves.
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	// AddLocalTrack attaches a local capture track to the underlying PeerConnection.
	AddLocalTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
}
