// Package ice converts between the relay's wire forms of an ICE candidate
// and the structured form the transport engine requires. Relays in the
// field emit both a structured record and a bare SDP-fragment string; the
// console accepts either without assuming device-side format discipline.
package ice

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/webrtc/v4"
)

// ErrMalformedCandidate is non-fatal for a call: callers log, drop the
// candidate and continue.
var ErrMalformedCandidate = errors.New("malformed candidate")

// Raw is the relay's structured wire form of a candidate.
type Raw struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex"`
	UsernameFragment *string `json:"usernameFragment"`
}

// FromJSON decodes whichever wire form arrived: a JSON object with a
// candidate field, or a JSON string holding the legacy SDP fragment.
func FromJSON(raw json.RawMessage) (webrtc.ICECandidateInit, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return webrtc.ICECandidateInit{}, fmt.Errorf("%w: %v", ErrMalformedCandidate, err)
		}
		return DecodeString(s)
	}
	var r Raw
	if err := json.Unmarshal(raw, &r); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: %v", ErrMalformedCandidate, err)
	}
	return Decode(r)
}

// Decode validates a structured record and passes it through unchanged.
func Decode(r Raw) (webrtc.ICECandidateInit, error) {
	if r.Candidate == "" {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: empty candidate string", ErrMalformedCandidate)
	}
	return webrtc.ICECandidateInit{
		Candidate:        r.Candidate,
		SDPMid:           r.SDPMid,
		SDPMLineIndex:    r.SDPMLineIndex,
		UsernameFragment: r.UsernameFragment,
	}, nil
}

// DecodeString parses the legacy fixed grammar
//
//	candidate:<foundation> <component> <protocol> <priority> <ip> <port> typ <type><rest>
//
// defaulting sdpMid to "0" and sdpMLineIndex to 0, and extracting a
// trailing ufrag from <rest> when present.
func DecodeString(s string) (webrtc.ICECandidateInit, error) {
	fields := strings.Fields(s)
	if len(fields) < 8 {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: %q", ErrMalformedCandidate, s)
	}
	if !strings.HasPrefix(fields[0], "candidate:") || len(fields[0]) == len("candidate:") {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: missing candidate: prefix in %q", ErrMalformedCandidate, s)
	}
	if _, err := strconv.ParseUint(fields[1], 10, 16); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: component %q", ErrMalformedCandidate, fields[1])
	}
	if _, err := strconv.ParseUint(fields[3], 10, 32); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: priority %q", ErrMalformedCandidate, fields[3])
	}
	if _, err := strconv.ParseUint(fields[5], 10, 16); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: port %q", ErrMalformedCandidate, fields[5])
	}
	if fields[6] != "typ" {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: expected typ, got %q", ErrMalformedCandidate, fields[6])
	}

	mid := "0"
	idx := uint16(0)
	ci := webrtc.ICECandidateInit{
		Candidate:     s,
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}
	// <rest> is attribute pairs: raddr/rport/generation/ufrag/network-id.
	for i := 8; i+1 < len(fields); i += 2 {
		if fields[i] == "ufrag" {
			ufrag := fields[i+1]
			ci.UsernameFragment = &ufrag
		}
	}
	return ci, nil
}
