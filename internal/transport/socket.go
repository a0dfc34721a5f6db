package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomkey/internal/domain"
)

// Events exchanged with the E2EE engine across the signaling socket.
const (
	eventGroupKeyRequest  = "e2ee-group-key-request"
	eventGroupKeyResponse = "e2ee-group-key-response"
	eventDistributeSender = "e2ee-distribute-sender-key"
	eventSenderKeyHeld    = "e2ee-sender-key"
	eventSendToGuest      = "e2ee-send-to-guest"
	eventSendToUser       = "e2ee-send-to-user"
)

const distributeTimeout = 10 * time.Second

// Socket implements domain.GroupTransport over the signaling socket.
type Socket struct {
	signal domain.Signaler
	log    zerolog.Logger

	mu         sync.Mutex
	senderKeys map[domain.RoomID]map[domain.ParticipantID]struct{}
}

// NewSocket returns a transport bound to the signaling client.
func NewSocket(signal domain.Signaler, log zerolog.Logger) *Socket {
	return &Socket{
		signal:     signal,
		log:        log.With().Str("component", "transport").Logger(),
		senderKeys: make(map[domain.RoomID]map[domain.ParticipantID]struct{}),
	}
}

type groupKeyRequest struct {
	Room domain.RoomID `json:"roomId"`
}

type groupKeyResponse struct {
	Room domain.RoomID        `json:"roomId"`
	To   domain.ParticipantID `json:"recipientId"`
	Key  domain.RoomKey       `json:"key"`
}

type distributeSenderKey struct {
	Room    domain.RoomID          `json:"roomId"`
	Force   bool                   `json:"force"`
	Members []domain.ParticipantID `json:"members"`
}

type senderKeyHeld struct {
	Room        domain.RoomID        `json:"roomId"`
	Participant domain.ParticipantID `json:"participantId"`
}

type pointToPoint struct {
	Meeting domain.MeetingID     `json:"meetingId,omitempty"`
	Guest   domain.SessionID     `json:"sessionId,omitempty"`
	User    domain.ParticipantID `json:"userId,omitempty"`
	Type    string               `json:"type"`
	Payload any                  `json:"payload"`
}

// SendGroupKeyRequest asks the engine to broadcast an encrypted key request
// on the room's group channel.
func (s *Socket) SendGroupKeyRequest(_ context.Context, room domain.RoomID) error {
	return s.signal.Emit(eventGroupKeyRequest, groupKeyRequest{Room: room})
}

// SendGroupKeyResponse hands the room key to the engine for encrypted
// point-to-point delivery to one requester.
func (s *Socket) SendGroupKeyResponse(_ context.Context, room domain.RoomID, to domain.ParticipantID, key domain.RoomKey) error {
	return s.signal.Emit(eventGroupKeyResponse, groupKeyResponse{Room: room, To: to, Key: key})
}

// EnsureSenderKeyDistributed waits for the engine to confirm distribution,
// since group-addressed messages are undecryptable without it.
func (s *Socket) EnsureSenderKeyDistributed(ctx context.Context, room domain.RoomID, force bool, members []domain.ParticipantID) error {
	ctx, cancel := context.WithTimeout(ctx, distributeTimeout)
	defer cancel()
	_, err := s.signal.Request(ctx, eventDistributeSender, distributeSenderKey{
		Room:    room,
		Force:   force,
		Members: members,
	}, room)
	return err
}

// HasSenderKey consults the locally tracked set of announced sender keys.
func (s *Socket) HasSenderKey(room domain.RoomID, p domain.ParticipantID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.senderKeys[room][p]
	return ok
}

// SendToGuest delivers an encrypted point-to-point message to a guest session.
func (s *Socket) SendToGuest(_ context.Context, meeting domain.MeetingID, guest domain.SessionID, msgType string, payload any) error {
	return s.signal.Emit(eventSendToGuest, pointToPoint{Meeting: meeting, Guest: guest, Type: msgType, Payload: payload})
}

// SendToUser delivers an encrypted point-to-point message to a member.
func (s *Socket) SendToUser(_ context.Context, user domain.ParticipantID, msgType string, payload any) error {
	return s.signal.Emit(eventSendToUser, pointToPoint{User: user, Type: msgType, Payload: payload})
}

// Attach pumps inbound engine deliveries into the exchange coordinator and
// keeps the sender-key set current. It returns when ctx is done; the
// subscriptions are unregistered on the way out so late deliveries cannot
// reach a torn-down coordinator.
func (s *Socket) Attach(ctx context.Context, exchange domain.ExchangeService) {
	requests, cancelReq := s.signal.Subscribe(eventGroupKeyRequest, "")
	responses, cancelResp := s.signal.Subscribe(eventGroupKeyResponse, "")
	senderKeys, cancelSK := s.signal.Subscribe(eventSenderKeyHeld, "")
	defer cancelReq()
	defer cancelResp()
	defer cancelSK()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-requests:
			if !ok {
				return
			}
			var req struct {
				Room domain.RoomID        `json:"roomId"`
				From domain.ParticipantID `json:"senderId"`
			}
			if err := json.Unmarshal(raw, &req); err != nil {
				s.log.Warn().Err(err).Msg("malformed group key request")
				continue
			}
			if err := exchange.HandleKeyRequest(ctx, req.Room, req.From); err != nil {
				s.log.Warn().Err(err).Str("room", req.Room.String()).Msg("failed to answer key request")
			}
		case raw, ok := <-responses:
			if !ok {
				return
			}
			var resp struct {
				Room domain.RoomID        `json:"roomId"`
				From domain.ParticipantID `json:"senderId"`
				Key  domain.RoomKey       `json:"key"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				s.log.Warn().Err(err).Msg("malformed group key response")
				continue
			}
			exchange.HandleKeyResponse(resp.Room, resp.From, resp.Key)
		case raw, ok := <-senderKeys:
			if !ok {
				return
			}
			var held senderKeyHeld
			if err := json.Unmarshal(raw, &held); err != nil {
				continue
			}
			s.mu.Lock()
			if s.senderKeys[held.Room] == nil {
				s.senderKeys[held.Room] = make(map[domain.ParticipantID]struct{})
			}
			s.senderKeys[held.Room][held.Participant] = struct{}{}
			s.mu.Unlock()
		}
	}
}

// Compile-time assertion that Socket implements domain.GroupTransport.
var _ domain.GroupTransport = (*Socket)(nil)
