// Package call drives offer/answer/candidate exchange for one console call
// and owns the session lifecycle around it.
package call

import (
	"github.com/pion/webrtc/v4"

	"github.com/roadwatch/dashcall/internal/core"
	"github.com/roadwatch/dashcall/internal/domain"
)

// Relay is the console-to-relay half of the signaling contract. All sends
// are best-effort from the caller's point of view: a failed notification
// never crashes the session.
type Relay interface {
	NotifyStart(mode domain.CallMode, device domain.DeviceID) error
	SendDescription(mode domain.CallMode, to domain.PeerID, desc webrtc.SessionDescription) error
	SendCandidate(mode domain.CallMode, to domain.PeerID, cand webrtc.ICECandidateInit) error
	NotifyEnd(mode domain.CallMode, to domain.PeerID) error
}

// ConnectionFactory builds a transport connection configured for one call
// mode. The connection object is a singleton resource per session.
type ConnectionFactory func(mode domain.CallMode) (core.MediaConnection, error)
