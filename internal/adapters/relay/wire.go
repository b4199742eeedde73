package relay

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/roadwatch/dashcall/internal/domain"
)

// Audio-mode and video-mode traffic travel as logically separate event
// channels; a console driving one mode never sees the other's signaling.
const (
	eventSignal      = "signal"
	eventVideoSignal = "video-signal"

	eventStartCall      = "start-call"
	eventStartVideoCall = "start-video-call"
	eventEndCall        = "end-call"
	eventEndVideoCall   = "end-video-call"

	eventCallEnded      = "call-ended"
	eventVideoCallEnded = "video-call-ended"

	eventError = "error"
)

func signalEvent(mode domain.CallMode) string {
	if mode == domain.ModeVideo {
		return eventVideoSignal
	}
	return eventSignal
}

func startEvent(mode domain.CallMode) string {
	if mode == domain.ModeVideo {
		return eventStartVideoCall
	}
	return eventStartCall
}

func endEvent(mode domain.CallMode) string {
	if mode == domain.ModeVideo {
		return eventEndVideoCall
	}
	return eventEndCall
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// signalFrame carries one signaling payload through the relay. Outbound
// frames address a peer with to; inbound frames name the sender in from.
type signalFrame struct {
	To   domain.PeerID   `json:"to,omitempty"`
	From domain.PeerID   `json:"from,omitempty"`
	Data json.RawMessage `json:"data"`
}

type signalPayload struct {
	Type      string          `json:"type,omitempty"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type startPayload struct {
	DeviceID domain.DeviceID `json:"deviceId"`
}

type endPayload struct {
	To domain.PeerID `json:"to"`
}

// Handler receives relay-delivered events translated to typed inputs.
// Each message is consumed exactly once.
type Handler interface {
	OnReady(mode domain.CallMode, from domain.PeerID)
	OnOffer(mode domain.CallMode, from domain.PeerID, desc webrtc.SessionDescription)
	OnAnswer(mode domain.CallMode, from domain.PeerID, desc webrtc.SessionDescription)
	OnCandidate(mode domain.CallMode, from domain.PeerID, candidate json.RawMessage)
	OnCallEnded(mode domain.CallMode)
	OnRelayError(message string)
}

// dispatch translates one relay frame into a handler call. Unknown events
// are logged and skipped; a malformed frame is an error for the caller to
// log, never a reason to drop the connection.
func dispatch(h Handler, data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("bad envelope: %w", err)
	}

	switch env.Event {
	case eventSignal:
		return dispatchSignal(h, domain.ModeAudio, env.Data)
	case eventVideoSignal:
		return dispatchSignal(h, domain.ModeVideo, env.Data)
	case eventCallEnded:
		h.OnCallEnded(domain.ModeAudio)
	case eventVideoCallEnded:
		h.OnCallEnded(domain.ModeVideo)
	case eventError:
		var msg string
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			msg = string(env.Data)
		}
		h.OnRelayError(msg)
	default:
		log.Warn().Str("module", "relay").Str("event", env.Event).Msg("unknown relay event")
	}
	return nil
}

func dispatchSignal(h Handler, mode domain.CallMode, data []byte) error {
	var frame signalFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("bad signal frame: %w", err)
	}
	var p signalPayload
	if err := json.Unmarshal(frame.Data, &p); err != nil {
		return fmt.Errorf("bad signal payload: %w", err)
	}

	switch {
	case p.Type == "ready":
		h.OnReady(mode, frame.From)
	case p.Type == "offer":
		h.OnOffer(mode, frame.From, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.SDP})
	case p.Type == "answer":
		h.OnAnswer(mode, frame.From, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP})
	case len(p.Candidate) > 0:
		h.OnCandidate(mode, frame.From, p.Candidate)
	default:
		log.Warn().Str("module", "relay").Str("type", p.Type).Msg("unknown signal payload")
	}
	return nil
}
