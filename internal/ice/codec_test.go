package ice

import (
	"encoding/json"
	"errors"
	"testing"
)

const hostCandidate = "candidate:2230659787 1 udp 2122260223 192.168.1.17 51850 typ host generation 0 ufrag kX4f network-id 1"

func TestDecodeString(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantErr   bool
		wantMid   string
		wantIdx   uint16
		wantUfrag string
	}{
		{
			name:      "host with ufrag",
			in:        hostCandidate,
			wantMid:   "0",
			wantIdx:   0,
			wantUfrag: "kX4f",
		},
		{
			name:    "srflx without ufrag",
			in:      "candidate:842163049 1 udp 1677729535 203.0.113.9 40821 typ srflx raddr 192.168.1.17 rport 51850",
			wantMid: "0",
			wantIdx: 0,
		},
		{
			name:    "minimal host",
			in:      "candidate:1 1 udp 2130706431 10.0.0.2 54400 typ host",
			wantMid: "0",
			wantIdx: 0,
		},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "not a candidate at all", wantErr: true},
		{name: "missing prefix", in: "2230659787 1 udp 2122260223 192.168.1.17 51850 typ host", wantErr: true},
		{name: "bare prefix", in: "candidate: 1 udp 2122260223 192.168.1.17 51850 typ host x", wantErr: true},
		{name: "truncated", in: "candidate:1 1 udp 2130706431 10.0.0.2", wantErr: true},
		{name: "bad component", in: "candidate:1 x udp 2130706431 10.0.0.2 54400 typ host", wantErr: true},
		{name: "bad priority", in: "candidate:1 1 udp high 10.0.0.2 54400 typ host", wantErr: true},
		{name: "bad port", in: "candidate:1 1 udp 2130706431 10.0.0.2 fifty typ host", wantErr: true},
		{name: "typ misplaced", in: "candidate:1 1 udp 2130706431 10.0.0.2 54400 type host", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ci, err := DecodeString(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeString(%q): expected error", tt.in)
				}
				if !errors.Is(err, ErrMalformedCandidate) {
					t.Fatalf("error %v is not ErrMalformedCandidate", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeString(%q): %v", tt.in, err)
			}
			if ci.Candidate != tt.in {
				t.Errorf("candidate string changed: %q", ci.Candidate)
			}
			if ci.SDPMid == nil || *ci.SDPMid != tt.wantMid {
				t.Errorf("sdpMid = %v, want %q", ci.SDPMid, tt.wantMid)
			}
			if ci.SDPMLineIndex == nil || *ci.SDPMLineIndex != tt.wantIdx {
				t.Errorf("sdpMLineIndex = %v, want %d", ci.SDPMLineIndex, tt.wantIdx)
			}
			if tt.wantUfrag == "" {
				if ci.UsernameFragment != nil {
					t.Errorf("unexpected ufrag %q", *ci.UsernameFragment)
				}
			} else if ci.UsernameFragment == nil || *ci.UsernameFragment != tt.wantUfrag {
				t.Errorf("ufrag = %v, want %q", ci.UsernameFragment, tt.wantUfrag)
			}
		})
	}
}

func TestDecodeStructured(t *testing.T) {
	mid := "audio"
	idx := uint16(1)
	ci, err := Decode(Raw{Candidate: hostCandidate, SDPMid: &mid, SDPMLineIndex: &idx})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ci.Candidate != hostCandidate || *ci.SDPMid != "audio" || *ci.SDPMLineIndex != 1 {
		t.Errorf("structured record not passed through: %+v", ci)
	}

	if _, err := Decode(Raw{}); !errors.Is(err, ErrMalformedCandidate) {
		t.Errorf("empty structured record: got %v, want ErrMalformedCandidate", err)
	}
}

func TestFromJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "object form", in: `{"candidate":"` + hostCandidate + `","sdpMid":"0","sdpMLineIndex":0}`},
		{name: "string form", in: `"` + hostCandidate + `"`},
		{name: "empty object", in: `{}`, wantErr: true},
		{name: "malformed string form", in: `"nonsense"`, wantErr: true},
		{name: "broken json", in: `{"candidate":`, wantErr: true},
		{name: "null", in: `null`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromJSON(json.RawMessage(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromJSON(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedCandidate) {
				t.Errorf("error %v is not ErrMalformedCandidate", err)
			}
		})
	}
}
