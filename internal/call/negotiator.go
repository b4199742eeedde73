package call

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/roadwatch/dashcall/internal/core"
	"github.com/roadwatch/dashcall/internal/domain"
	"github.com/roadwatch/dashcall/internal/ice"
	"github.com/roadwatch/dashcall/internal/media"
)

var ErrAlreadyStarted = errors.New("negotiation already started")

// State of one call negotiation.
type State int

const (
	StateIdle State = iota
	StateAwaitingReady
	StateOfferSent
	StateConnected
	StateEnded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReady:
		return "awaiting_ready"
	case StateOfferSent:
		return "offer_sent"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal states are never reused; a new call builds a new Negotiator.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateFailed
}

// Negotiator is the per-call state machine. It is not safe for concurrent
// use on its own: the Controller serializes every transition, matching the
// one-event-at-a-time model of the signaling flow.
type Negotiator struct {
	mode  domain.CallMode
	conn  core.MediaConnection
	sess  *media.Session
	relay Relay

	state State
	peer  domain.PeerID
}

func NewNegotiator(mode domain.CallMode, conn core.MediaConnection, sess *media.Session, relay Relay) *Negotiator {
	return &Negotiator{mode: mode, conn: conn, sess: sess, relay: relay, state: StateIdle}
}

func (n *Negotiator) State() State          { return n.state }
func (n *Negotiator) Mode() domain.CallMode { return n.mode }
func (n *Negotiator) Peer() domain.PeerID   { return n.peer }

// Start moves Idle to AwaitingReady: opens the transport connection and,
// in audio mode, begins local capture. Video calls are receive-only and
// capture nothing. A capture failure is terminal for the attempt.
func (n *Negotiator) Start(ctx context.Context) error {
	if n.state != StateIdle {
		return ErrAlreadyStarted
	}
	if err := n.conn.Start(ctx); err != nil {
		n.state = StateFailed
		return err
	}
	if n.mode == domain.ModeAudio {
		if err := n.sess.BeginCapture(ctx); err != nil {
			n.state = StateFailed
			return err
		}
	}
	n.state = StateAwaitingReady
	log.Info().Str("module", "call").Str("mode", string(n.mode)).Msg("awaiting device ready")
	return nil
}

// HandleReady records the peer, attaches local tracks if any, and sends the
// offer. AwaitingReady to OfferSent; any other state ignores the message.
func (n *Negotiator) HandleReady(from domain.PeerID) error {
	if n.state != StateAwaitingReady {
		log.Warn().Str("module", "call").Str("state", n.state.String()).Msg("ready in unexpected state, ignored")
		return nil
	}
	n.peer = from
	if n.sess.HasLocalTracks() {
		if err := n.sess.AttachOutbound(); err != nil {
			return err
		}
	}
	offer, err := n.conn.CreateAndSetOffer()
	if err != nil {
		return err
	}
	if err := n.relay.SendDescription(n.mode, from, *offer); err != nil {
		return err
	}
	n.state = StateOfferSent
	log.Info().Str("module", "call").Str("peer", string(from)).Str("mode", string(n.mode)).Msg("offer sent")
	return nil
}

// HandleAnswer applies the remote description. The transport engine then
// drives connection establishment on its own; we observe it through
// connection-state changes rather than owning the handshake.
func (n *Negotiator) HandleAnswer(desc webrtc.SessionDescription) error {
	if n.state != StateOfferSent {
		log.Warn().Str("module", "call").Str("state", n.state.String()).Msg("answer in unexpected state, ignored")
		return nil
	}
	return n.conn.ApplyAnswer(desc)
}

// HandleCandidate decodes and applies a trickled candidate. It never
// advances negotiation state. Malformed candidates are dropped; candidates
// arriving before the answer is applied are dropped too (no buffering),
// relying on redundant delivery and connectivity checks to recover.
func (n *Negotiator) HandleCandidate(raw json.RawMessage) {
	ci, err := ice.FromJSON(raw)
	if err != nil {
		log.Warn().Str("module", "call").Err(err).Msg("candidate dropped")
		return
	}
	if !n.conn.RemoteApplied() {
		log.Debug().Str("module", "call").Msg("candidate before answer, dropped")
		return
	}
	if err := n.conn.AddICECandidate(ci); err != nil {
		log.Warn().Str("module", "call").Err(err).Msg("add candidate")
	}
}

// HandleConnectionState folds a transport state report into the machine.
// connected is true when the call just reached Connected; failed is true
// exactly once when the transport gave up and teardown must run.
func (n *Negotiator) HandleConnectionState(s webrtc.PeerConnectionState) (connected, failed bool) {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		if n.state == StateOfferSent {
			n.state = StateConnected
			log.Info().Str("module", "call").Str("peer", string(n.peer)).Msg("connected")
			return true, false
		}
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
		if n.state.Terminal() {
			return false, false
		}
		n.state = StateFailed
		// Best effort so the device frees its resources even if local
		// teardown wins the race.
		if err := n.relay.NotifyEnd(n.mode, n.peer); err != nil {
			log.Warn().Str("module", "call").Err(err).Msg("end notification")
		}
		return false, true
	}
	return false, false
}

// End is the explicit local hangup. The recipient may still be unknown if
// negotiation never completed; the relay tolerates an empty address.
func (n *Negotiator) End() {
	if n.state.Terminal() {
		return
	}
	if err := n.relay.NotifyEnd(n.mode, n.peer); err != nil {
		log.Warn().Str("module", "call").Err(err).Msg("end notification")
	}
	n.state = StateEnded
	n.peer = ""
}

// HandleRemoteEnded marks the session ended after the device hung up. No
// notification is sent back; the remote side already tore down.
func (n *Negotiator) HandleRemoteEnded() {
	if n.state.Terminal() {
		return
	}
	n.state = StateEnded
	n.peer = ""
}
