// Package relay is the websocket adapter for the signaling relay channel.
// It carries signaling only; media never touches it.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/roadwatch/dashcall/internal/core"
	"github.com/roadwatch/dashcall/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

const writeDeadline = 5 * time.Second

// Client is one console's connection to the relay. It satisfies the call
// package's Relay port for sends and feeds inbound events to a Handler.
type Client struct {
	conn    *websocket.Conn
	handler Handler
	send    chan core.Frame

	mu     sync.RWMutex
	closed bool
}

// Dial connects to the relay. Bind must be called before Start so inbound
// events have somewhere to go.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "relay").Str("url", url).Msg("connected to relay")
	return &Client{
		conn: conn,
		send: make(chan core.Frame, 32),
	}, nil
}

// Bind attaches the inbound event handler.
func (c *Client) Bind(h Handler) { c.handler = h }

// Start runs the read and write pumps until ctx is done or the connection
// breaks.
func (c *Client) Start(ctx context.Context) {
	go c.writePump(ctx)
	go c.readPump(ctx)
}

func (c *Client) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
	log.Info().Str("module", "relay").Msg("relay connection closed")
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "relay").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "relay").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "relay").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "relay").Msg("writePump write error")
				return
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		log.Info().Str("module", "relay").Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "relay").Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "relay").Msg("readPump read error")
				if c.handler != nil {
					c.handler.OnRelayError("relay connection lost")
				}
				return
			}
			if c.handler == nil {
				continue
			}
			if err := dispatch(c.handler, data); err != nil {
				log.Error().Err(err).Str("module", "relay").Msg("bad relay frame")
			}
		}
	}
}

func (c *Client) sendJSON(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}
	return c.TrySend(frame)
}

// NotifyStart tells the relay to wake the device for a call.
func (c *Client) NotifyStart(mode domain.CallMode, device domain.DeviceID) error {
	return c.sendJSON(startEvent(mode), startPayload{DeviceID: device})
}

// SendDescription forwards the local offer to the peer on the mode's channel.
func (c *Client) SendDescription(mode domain.CallMode, to domain.PeerID, desc webrtc.SessionDescription) error {
	inner, err := json.Marshal(signalPayload{Type: desc.Type.String(), SDP: desc.SDP})
	if err != nil {
		return err
	}
	return c.sendJSON(signalEvent(mode), signalFrame{To: to, Data: inner})
}

// SendCandidate trickles a locally gathered candidate to the peer.
func (c *Client) SendCandidate(mode domain.CallMode, to domain.PeerID, cand webrtc.ICECandidateInit) error {
	raw, err := json.Marshal(cand)
	if err != nil {
		return err
	}
	inner, err := json.Marshal(signalPayload{Candidate: raw})
	if err != nil {
		return err
	}
	return c.sendJSON(signalEvent(mode), signalFrame{To: to, Data: inner})
}

// NotifyEnd tells the relay the call is over. The recipient may be empty
// when negotiation never completed; the relay tolerates that.
func (c *Client) NotifyEnd(mode domain.CallMode, to domain.PeerID) error {
	return c.sendJSON(endEvent(mode), endPayload{To: to})
}
