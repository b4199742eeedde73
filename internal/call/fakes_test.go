package call

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/roadwatch/dashcall/internal/core"
	"github.com/roadwatch/dashcall/internal/domain"
)

type fakeConn struct {
	mu            sync.Mutex
	started       bool
	closed        int
	remoteApplied bool
	offers        int
	answers       []webrtc.SessionDescription
	candidates    []webrtc.ICECandidateInit
	localTracks   []webrtc.TrackLocal

	startErr  error
	offerErr  error
	answerErr error

	onICE   func(webrtc.ICECandidateInit)
	onState func(webrtc.PeerConnectionState)
	onTrack func(context.Context, *webrtc.TrackRemote, *webrtc.RTPReceiver)
}

func (f *fakeConn) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeConn) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed > 0
}

func (f *fakeConn) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offerErr != nil {
		return nil, f.offerErr
	}
	f.offers++
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (f *fakeConn) ApplyAnswer(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.answerErr != nil {
		return f.answerErr
	}
	f.answers = append(f.answers, desc)
	f.remoteApplied = true
	return nil
}

func (f *fakeConn) RemoteApplied() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remoteApplied
}

func (f *fakeConn) AddICECandidate(ci webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, ci)
	return nil
}

func (f *fakeConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) { f.onICE = fn }
func (f *fakeConn) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	f.onState = fn
}
func (f *fakeConn) OnTrack(fn func(context.Context, *webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	f.onTrack = fn
}

func (f *fakeConn) AddLocalTrack(t webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.localTracks = append(f.localTracks, t)
	return nil, nil
}

type sentDescription struct {
	mode domain.CallMode
	to   domain.PeerID
	desc webrtc.SessionDescription
}

type sentEnd struct {
	mode domain.CallMode
	to   domain.PeerID
}

type fakeRelay struct {
	mu     sync.Mutex
	starts []domain.CallMode
	descs  []sentDescription
	cands  []domain.PeerID
	ends   []sentEnd
}

func (f *fakeRelay) NotifyStart(mode domain.CallMode, _ domain.DeviceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, mode)
	return nil
}

func (f *fakeRelay) SendDescription(mode domain.CallMode, to domain.PeerID, desc webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.descs = append(f.descs, sentDescription{mode: mode, to: to, desc: desc})
	return nil
}

func (f *fakeRelay) SendCandidate(_ domain.CallMode, to domain.PeerID, _ webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cands = append(f.cands, to)
	return nil
}

func (f *fakeRelay) NotifyEnd(mode domain.CallMode, to domain.PeerID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, sentEnd{mode: mode, to: to})
	return nil
}

func (f *fakeRelay) endCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ends)
}

type fakeMic struct {
	closed int
}

func (f *fakeMic) Bind(webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	return webrtc.RTPCodecParameters{}, nil
}
func (f *fakeMic) Unbind(webrtc.TrackLocalContext) error { return nil }
func (f *fakeMic) ID() string                            { return "mic" }
func (f *fakeMic) RID() string                           { return "" }
func (f *fakeMic) StreamID() string                      { return "local" }
func (f *fakeMic) Kind() webrtc.RTPCodecType             { return webrtc.RTPCodecTypeAudio }
func (f *fakeMic) Close() error                          { f.closed++; return nil }

type fakeCapture struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeCapture) Capture(context.Context) ([]core.LocalTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []core.LocalTrack{&fakeMic{}}, nil
}

func (f *fakeCapture) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
