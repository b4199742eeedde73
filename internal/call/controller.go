package call

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/roadwatch/dashcall/internal/core"
	"github.com/roadwatch/dashcall/internal/domain"
	"github.com/roadwatch/dashcall/internal/media"
)

// levelHolder is allocated per session so a meter outliving its session by
// a tick writes into an orphaned slot, never into the next call's level.
type levelHolder struct {
	v atomic.Int64
}

// Controller owns the single active call session. All relay events,
// transport callbacks and operator intents dispatch through its mutex, so
// each message is handled to completion before the next.
type Controller struct {
	relay        Relay
	capture      core.CaptureDevice
	connect      ConnectionFactory
	device       domain.DeviceID
	samplePeriod time.Duration
	resetDelay   time.Duration

	mu         sync.Mutex
	epoch      domain.SessionID
	neg        *Negotiator
	conn       core.MediaConnection
	sess       *media.Session
	meter      *media.LevelMeter
	levels     *levelHolder
	lastErr    string
	restState  State
	resetTimer *time.Timer
}

func NewController(relay Relay, capture core.CaptureDevice, connect ConnectionFactory, device domain.DeviceID, samplePeriod, resetDelay time.Duration) *Controller {
	return &Controller{
		relay:        relay,
		capture:      capture,
		connect:      connect,
		device:       device,
		samplePeriod: samplePeriod,
		resetDelay:   resetDelay,
		restState:    StateIdle,
	}
}

func (c *Controller) StartAudioCall(ctx context.Context) error {
	return c.start(ctx, domain.ModeAudio)
}

func (c *Controller) StartVideoCall(ctx context.Context) error {
	return c.start(ctx, domain.ModeVideo)
}

func (c *Controller) start(ctx context.Context, mode domain.CallMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.neg != nil {
		// One session at a time: the transport connection is a singleton
		// resource and the active session owns it.
		log.Warn().Str("module", "call").Str("mode", string(mode)).Msg("call already active, start ignored")
		return nil
	}

	conn, err := c.connect(mode)
	if err != nil {
		c.lastErr = "transport unavailable"
		c.restState = StateFailed
		c.scheduleResetLocked()
		return err
	}

	epoch := domain.NewSessionID()
	sess := media.NewSession(mode, conn, c.capture, media.NewMonitorAudioSink(), media.NewMonitorVideoSink())
	neg := NewNegotiator(mode, conn, sess, c.relay)

	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		c.sendLocalCandidate(epoch, mode, ci)
	})
	conn.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.onConnectionState(epoch, s)
	})
	conn.OnTrack(func(tctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.onInboundTrack(tctx, epoch, track, receiver)
	})

	if err := c.relay.NotifyStart(mode, c.device); err != nil {
		conn.Close()
		return err
	}

	if err := neg.Start(ctx); err != nil {
		conn.Close()
		sess.Release()
		if errors.Is(err, media.ErrCapture) {
			c.lastErr = "microphone unavailable"
		} else {
			c.lastErr = "connection failed"
		}
		c.restState = StateFailed
		c.scheduleResetLocked()
		// Let the device stop waiting for us.
		if nerr := c.relay.NotifyEnd(mode, ""); nerr != nil {
			log.Warn().Str("module", "call").Err(nerr).Msg("end notification")
		}
		return err
	}

	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
	c.epoch = epoch
	c.neg = neg
	c.conn = conn
	c.sess = sess
	c.levels = &levelHolder{}
	c.lastErr = ""
	log.Info().Str("module", "call").Str("mode", string(mode)).Str("device", string(c.device)).Msg("call started")
	return nil
}

// EndCall is the explicit local hangup. Safe to call at any time, including
// with no active session.
func (c *Controller) EndCall() {
	c.mu.Lock()
	if c.neg == nil {
		c.mu.Unlock()
		return
	}
	c.neg.End()
	cleanup := c.teardownLocked(StateEnded, "")
	c.mu.Unlock()
	cleanup()
	log.Info().Str("module", "call").Msg("call ended locally")
}

// Status projects the current state for the operator surface.
func (c *Controller) Status() StatusView {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.restState
	var level int
	var videoPresent, playbackPending bool
	if c.neg != nil {
		state = c.neg.State()
		if c.levels != nil {
			level = int(c.levels.v.Load())
		}
		if c.sess != nil {
			videoPresent = c.sess.VideoPresent()
			playbackPending = c.sess.PlaybackPending()
		}
	}
	return Project(state, c.lastErr, level, videoPresent, playbackPending)
}

// OnReady implements the relay handler: the device is available to
// negotiate. Events for the other mode's channel are ignored.
func (c *Controller) OnReady(mode domain.CallMode, from domain.PeerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(mode) {
		return
	}
	if err := c.neg.HandleReady(from); err != nil {
		log.Error().Str("module", "call").Err(err).Msg("ready handling")
		c.lastErr = "connection error"
	}
}

// OnOffer is glare: the device should never initiate. Logged and ignored.
func (c *Controller) OnOffer(mode domain.CallMode, from domain.PeerID, _ webrtc.SessionDescription) {
	log.Warn().Str("module", "call").Str("mode", string(mode)).Str("from", string(from)).Msg("unexpected offer from device, ignored")
}

func (c *Controller) OnAnswer(mode domain.CallMode, from domain.PeerID, desc webrtc.SessionDescription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(mode) {
		return
	}
	if err := c.neg.HandleAnswer(desc); err != nil {
		// Caught per message: the session survives unless the transport
		// itself reports failure afterwards.
		log.Error().Str("module", "call").Err(err).Str("from", string(from)).Msg("answer handling")
		c.lastErr = "connection error"
	}
}

func (c *Controller) OnCandidate(mode domain.CallMode, _ domain.PeerID, candidate json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(mode) {
		return
	}
	c.neg.HandleCandidate(candidate)
}

// OnCallEnded is the remote hangup.
func (c *Controller) OnCallEnded(mode domain.CallMode) {
	c.mu.Lock()
	if !c.liveLocked(mode) {
		c.mu.Unlock()
		return
	}
	c.neg.HandleRemoteEnded()
	cleanup := c.teardownLocked(StateEnded, "")
	c.mu.Unlock()
	cleanup()
	log.Info().Str("module", "call").Msg("call ended by device")
}

// OnRelayError surfaces a relay-reported error and releases the session.
// Holding the capture device because the relay hiccupped would leak it.
func (c *Controller) OnRelayError(message string) {
	c.mu.Lock()
	if c.neg == nil {
		c.lastErr = message
		c.restState = StateFailed
		c.scheduleResetLocked()
		c.mu.Unlock()
		return
	}
	c.neg.HandleRemoteEnded()
	cleanup := c.teardownLocked(StateFailed, message)
	c.mu.Unlock()
	cleanup()
	log.Error().Str("module", "call").Str("error", message).Msg("relay error")
}

func (c *Controller) sendLocalCandidate(epoch domain.SessionID, mode domain.CallMode, ci webrtc.ICECandidateInit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.neg == nil {
		return
	}
	peer := c.neg.Peer()
	if peer == "" {
		// Gathered before the device was ready; nowhere to send it yet.
		return
	}
	if err := c.relay.SendCandidate(mode, peer, ci); err != nil {
		log.Warn().Str("module", "call").Err(err).Msg("send candidate")
	}
}

func (c *Controller) onInboundTrack(ctx context.Context, epoch domain.SessionID, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	c.mu.Lock()
	sess := c.sess
	live := c.epoch == epoch && sess != nil
	c.mu.Unlock()
	if live {
		sess.HandleInboundTrack(ctx, track, receiver)
	}
}

func (c *Controller) onConnectionState(epoch domain.SessionID, s webrtc.PeerConnectionState) {
	c.mu.Lock()
	if c.epoch != epoch || c.neg == nil {
		c.mu.Unlock()
		return
	}
	connected, failed := c.neg.HandleConnectionState(s)
	if connected {
		sess, levels := c.sess, c.levels
		c.meter = media.StartLevelMeter(context.Background(), c.samplePeriod, sess.AudioLevel, func(v int) {
			levels.v.Store(int64(v))
		})
		c.mu.Unlock()
		return
	}
	if failed {
		cleanup := c.teardownLocked(StateFailed, "connection failed")
		c.mu.Unlock()
		cleanup()
		log.Error().Str("module", "call").Str("transport_state", s.String()).Msg("transport failure, session torn down")
		return
	}
	c.mu.Unlock()
}

func (c *Controller) liveLocked(mode domain.CallMode) bool {
	return c.neg != nil && c.neg.Mode() == mode
}

// teardownLocked clears session bookkeeping and returns the cleanup to run
// after the lock is released: the meter's Stop waits for its goroutine and
// must not be called while holding the mutex.
func (c *Controller) teardownLocked(rest State, errText string) func() {
	meter, conn, sess := c.meter, c.conn, c.sess
	c.meter, c.conn, c.sess, c.neg = nil, nil, nil, nil
	c.epoch = ""
	c.levels = nil
	c.restState = rest
	if errText != "" {
		c.lastErr = errText
	}
	c.scheduleResetLocked()
	return func() {
		if meter != nil {
			meter.Stop()
		}
		if conn != nil {
			conn.Close()
		}
		if sess != nil {
			sess.Release()
		}
	}
}

// scheduleResetLocked returns the status to the idle baseline after a short
// delay. Cosmetic debounce, not a protocol requirement.
func (c *Controller) scheduleResetLocked() {
	if c.resetTimer != nil {
		c.resetTimer.Stop()
	}
	c.resetTimer = time.AfterFunc(c.resetDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.neg != nil {
			return
		}
		c.restState = StateIdle
		c.lastErr = ""
	})
}
