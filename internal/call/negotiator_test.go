package call

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/roadwatch/dashcall/internal/domain"
	"github.com/roadwatch/dashcall/internal/media"
)

func newTestNegotiator(mode domain.CallMode) (*Negotiator, *fakeConn, *fakeRelay, *fakeCapture) {
	conn := &fakeConn{}
	relay := &fakeRelay{}
	capture := &fakeCapture{}
	sess := media.NewSession(mode, conn, capture, media.NewMonitorAudioSink(), media.NewMonitorVideoSink())
	return NewNegotiator(mode, conn, sess, relay), conn, relay, capture
}

func TestAudioNegotiationFlow(t *testing.T) {
	n, conn, relay, capture := newTestNegotiator(domain.ModeAudio)

	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n.State() != StateAwaitingReady {
		t.Fatalf("state = %v after Start, want awaiting_ready", n.State())
	}
	if capture.callCount() != 1 {
		t.Errorf("capture acquired %d times, want 1", capture.callCount())
	}

	if err := n.HandleReady("p1"); err != nil {
		t.Fatalf("HandleReady: %v", err)
	}
	if n.State() != StateOfferSent {
		t.Errorf("state = %v after ready, want offer_sent", n.State())
	}
	if n.Peer() != "p1" {
		t.Errorf("peer = %q, want p1", n.Peer())
	}
	if len(conn.localTracks) != 1 {
		t.Errorf("local tracks attached = %d, want 1", len(conn.localTracks))
	}
	if len(relay.descs) != 1 || relay.descs[0].to != "p1" || relay.descs[0].mode != domain.ModeAudio {
		t.Fatalf("offer delivery = %+v, want one offer to p1 on audio channel", relay.descs)
	}
	if relay.descs[0].desc.Type != webrtc.SDPTypeOffer {
		t.Errorf("sent description type = %v, want offer", relay.descs[0].desc.Type)
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}
	if err := n.HandleAnswer(answer); err != nil {
		t.Fatalf("HandleAnswer: %v", err)
	}
	if len(conn.answers) != 1 {
		t.Fatalf("answers applied = %d, want 1", len(conn.answers))
	}
	// Still pending until the transport reports connected.
	if n.State() != StateOfferSent {
		t.Errorf("state = %v after answer, want offer_sent", n.State())
	}

	connected, failed := n.HandleConnectionState(webrtc.PeerConnectionStateConnected)
	if !connected || failed {
		t.Errorf("HandleConnectionState(connected) = (%v, %v), want (true, false)", connected, failed)
	}
	if n.State() != StateConnected {
		t.Errorf("state = %v, want connected", n.State())
	}
}

func TestVideoModeSkipsCapture(t *testing.T) {
	n, _, _, capture := newTestNegotiator(domain.ModeVideo)
	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if capture.callCount() != 0 {
		t.Errorf("video call acquired capture %d times, want 0", capture.callCount())
	}
}

func TestReadyInWrongStateIgnored(t *testing.T) {
	n, _, relay, _ := newTestNegotiator(domain.ModeAudio)
	if err := n.HandleReady("p1"); err != nil {
		t.Fatalf("HandleReady before Start: %v", err)
	}
	if n.State() != StateIdle || len(relay.descs) != 0 {
		t.Errorf("premature ready advanced state to %v with %d offers", n.State(), len(relay.descs))
	}
}

func TestCandidateHandling(t *testing.T) {
	n, conn, _, _ := newTestNegotiator(domain.ModeAudio)
	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := n.HandleReady("p1"); err != nil {
		t.Fatalf("HandleReady: %v", err)
	}

	valid := json.RawMessage(`{"candidate":"candidate:1 1 udp 2130706431 10.0.0.2 54400 typ host","sdpMid":"0","sdpMLineIndex":0}`)

	// Before the answer is applied candidates are dropped, no buffering.
	n.HandleCandidate(valid)
	if len(conn.candidates) != 0 {
		t.Fatalf("pre-answer candidate was applied")
	}
	if n.State() != StateOfferSent {
		t.Errorf("candidate advanced state to %v", n.State())
	}

	if err := n.HandleAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}); err != nil {
		t.Fatalf("HandleAnswer: %v", err)
	}
	n.HandleCandidate(valid)
	if len(conn.candidates) != 1 {
		t.Fatalf("post-answer candidate not applied")
	}

	// Malformed candidates drop without advancing or erroring.
	for _, raw := range []string{`"garbage"`, `{}`, `{"candidate":`} {
		n.HandleCandidate(json.RawMessage(raw))
	}
	if len(conn.candidates) != 1 || n.State() != StateOfferSent {
		t.Errorf("malformed candidates changed state: %d applied, state %v", len(conn.candidates), n.State())
	}
}

func TestTransportFailureNotifiesOnce(t *testing.T) {
	n, _, relay, _ := newTestNegotiator(domain.ModeAudio)
	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := n.HandleReady("p1"); err != nil {
		t.Fatalf("HandleReady: %v", err)
	}

	_, failed := n.HandleConnectionState(webrtc.PeerConnectionStateFailed)
	if !failed {
		t.Fatal("first failure report did not request teardown")
	}
	if relay.endCount() != 1 || relay.ends[0].to != "p1" {
		t.Fatalf("end notifications = %+v, want one to p1", relay.ends)
	}

	// Repeated reports after the terminal state are no-ops.
	for _, s := range []webrtc.PeerConnectionState{webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected} {
		if _, failed := n.HandleConnectionState(s); failed {
			t.Errorf("failure in terminal state requested teardown again for %v", s)
		}
	}
	if relay.endCount() != 1 {
		t.Errorf("end notified %d times, want 1", relay.endCount())
	}
}

func TestEndFromEachState(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*Negotiator)
	}{
		{name: "awaiting ready", prepare: func(n *Negotiator) {
			_ = n.Start(context.Background())
		}},
		{name: "offer sent", prepare: func(n *Negotiator) {
			_ = n.Start(context.Background())
			_ = n.HandleReady("p1")
		}},
		{name: "connected", prepare: func(n *Negotiator) {
			_ = n.Start(context.Background())
			_ = n.HandleReady("p1")
			_ = n.HandleAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"})
			n.HandleConnectionState(webrtc.PeerConnectionStateConnected)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _, relay, _ := newTestNegotiator(domain.ModeAudio)
			tt.prepare(n)

			n.End()
			if n.State() != StateEnded {
				t.Errorf("state = %v after End, want ended", n.State())
			}
			if n.Peer() != "" {
				t.Errorf("peer %q survived End", n.Peer())
			}
			if relay.endCount() != 1 {
				t.Fatalf("end notified %d times, want 1", relay.endCount())
			}

			// Terminal state: a second End must not notify again.
			n.End()
			if relay.endCount() != 1 {
				t.Errorf("End in terminal state notified again")
			}
		})
	}
}
