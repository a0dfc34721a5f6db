package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"roomkey/internal/domain"
)

// ErrClosed is returned by operations on a client whose socket is gone.
var ErrClosed = errors.New("signaling client closed")

// Frame is the wire format of the signaling socket.
type Frame struct {
	Event         string          `json:"event"`
	Room          domain.RoomID   `json:"roomId,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

type subKey struct {
	event string
	room  domain.RoomID
}

// Client is a websocket implementation of domain.Signaler.
type Client struct {
	log     zerolog.Logger
	pending *pendingTable

	writeMu sync.Mutex
	conn    *websocket.Conn

	subsMu sync.Mutex
	subs   map[subKey][]chan json.RawMessage

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient returns an unconnected client; call Connect before use.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		log:     log.With().Str("component", "signaling").Logger(),
		pending: newPendingTable(),
		subs:    make(map[subKey][]chan json.RawMessage),
		closed:  make(chan struct{}),
	}
}

// Connect dials the signaling endpoint and starts the read loop.
// http(s) schemes are rewritten to ws(s).
func (c *Client) Connect(ctx context.Context, baseURL string) error {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("failed to parse signaling URL: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, parsed.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to open signaling socket: %w", err)
	}
	c.conn = conn
	c.log.Debug().Str("url", parsed.String()).Msg("signaling socket connected")
	go c.readLoop()
	return nil
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Warn().Err(err).Msg("error reading from signaling socket")
			}
			return
		}
		if frame.CorrelationID != "" {
			if !c.pending.resolve(frame.CorrelationID, frame.Payload) {
				c.log.Debug().
					Str("event", frame.Event).
					Str("correlation_id", frame.CorrelationID).
					Msg("dropping uncorrelated response")
			}
			continue
		}
		c.dispatch(frame)
	}
}

// dispatch fans an uncorrelated frame out to matching subscriptions.
// Subscribers with a full buffer are skipped rather than blocking the loop.
func (c *Client) dispatch(frame Frame) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, key := range []subKey{{frame.Event, frame.Room}, {frame.Event, ""}} {
		for _, ch := range c.subs[key] {
			select {
			case ch <- frame.Payload:
			default:
				c.log.Warn().Str("event", frame.Event).Msg("subscriber buffer full, dropping event")
			}
		}
		if frame.Room == "" {
			break
		}
	}
}

// Emit sends a fire-and-forget event.
func (c *Client) Emit(event string, payload any) error {
	return c.write(Frame{Event: event, Payload: mustRaw(payload)})
}

// Request sends event with a fresh correlation id and waits for the matching
// response until ctx expires.
func (c *Client) Request(ctx context.Context, event string, payload any, room domain.RoomID) (json.RawMessage, error) {
	id := uuid.NewString()
	ch := c.pending.add(id)
	frame := Frame{Event: event, Room: room, CorrelationID: id, Payload: mustRaw(payload)}
	if err := c.write(frame); err != nil {
		c.pending.drop(id)
		return nil, err
	}
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		return resp, nil
	case <-ctx.Done():
		c.pending.drop(id)
		return nil, ctx.Err()
	}
}

// Subscribe registers for uncorrelated events, optionally filtered by room.
// The returned cancel func unregisters and closes the channel.
func (c *Client) Subscribe(event string, room domain.RoomID) (<-chan json.RawMessage, func()) {
	ch := make(chan json.RawMessage, 8)
	key := subKey{event, room}

	c.subsMu.Lock()
	c.subs[key] = append(c.subs[key], ch)
	c.subsMu.Unlock()

	cancel := func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		chans := c.subs[key]
		for i, existing := range chans {
			if existing == ch {
				c.subs[key] = append(chans[:i], chans[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Close tears the socket down, failing all parked requests.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.pending.failAll()
		if c.conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline()); err != nil &&
				!errors.Is(err, websocket.ErrCloseSent) {
				c.log.Warn().Err(err).Msg("error writing close message to signaling socket")
			}
			_ = c.conn.Close()
		}
	})
}

func (c *Client) write(frame Frame) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	if c.conn == nil {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(frame)
}

func deadline() time.Time { return time.Now().Add(5 * time.Second) }

func mustRaw(payload any) json.RawMessage {
	if payload == nil {
		return nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw
	}
	b, err := json.Marshal(payload)
	if err != nil {
		// Payloads are our own structs; a marshal failure is a programming error.
		panic(err)
	}
	return b
}

// Compile-time assertion that Client implements domain.Signaler.
var _ domain.Signaler = (*Client)(nil)
