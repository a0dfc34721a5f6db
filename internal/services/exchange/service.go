package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomkey/internal/crypto"
	"roomkey/internal/domain"
)

// Timing defaults. ResponseWindow bounds a joiner run; SenderKeyRetryDelay
// is how long to wait for a first response before redistributing our sender
// key and resending the request once.
const (
	DefaultResponseWindow      = 30 * time.Second
	DefaultSenderKeyRetryDelay = 2 * time.Second
)

// Service implements domain.ExchangeService.
type Service struct {
	discovery domain.DiscoveryService
	transport domain.GroupTransport
	signal    domain.Signaler
	log       zerolog.Logger

	ResponseWindow      time.Duration
	SenderKeyRetryDelay time.Duration

	mu   sync.Mutex
	keys map[domain.RoomID]*domain.RoomKey
	runs map[domain.RoomID]*run
}

type run struct {
	responses chan response
}

type response struct {
	from domain.ParticipantID
	key  domain.RoomKey
}

// New returns a coordinator with default timing.
func New(discovery domain.DiscoveryService, transport domain.GroupTransport, signal domain.Signaler, log zerolog.Logger) *Service {
	return &Service{
		discovery:           discovery,
		transport:           transport,
		signal:              signal,
		log:                 log.With().Str("component", "exchange").Logger(),
		ResponseWindow:      DefaultResponseWindow,
		SenderKeyRetryDelay: DefaultSenderKeyRetryDelay,
		keys:                make(map[domain.RoomID]*domain.RoomKey),
		runs:                make(map[domain.RoomID]*run),
	}
}

// ObtainKey re-derives the local role and either generates the room key or
// requests it from the room's occupants. Calling it again after a failed run
// is the retry path: the participant set is rechecked every time, and an
// emptied room converts the retry into the originator path.
//
// On PartialReceived the collected key stays held (retrievable via Key) and
// the typed error reports who answered; proceeding degraded is the caller's
// explicit choice.
func (s *Service) ObtainKey(ctx context.Context, room domain.RoomID) (domain.RoomKey, error) {
	r, err := s.begin(room)
	if err != nil {
		return domain.RoomKey{}, err
	}
	defer s.end(room, r)

	role, err := s.discovery.CheckParticipants(ctx, room)
	if err != nil {
		return domain.RoomKey{}, err
	}
	if role.IsFirstParticipant {
		s.log.Info().Str("room", room.String()).Msg("room is empty, originating key")
		return s.generate(ctx, room)
	}
	return s.request(ctx, room, r, role.ParticipantIDs)
}

// GenerateKey mints a fresh key for a room we are first into.
func (s *Service) GenerateKey(ctx context.Context, room domain.RoomID) (domain.RoomKey, error) {
	r, err := s.begin(room)
	if err != nil {
		return domain.RoomKey{}, err
	}
	defer s.end(room, r)
	return s.generate(ctx, room)
}

// generate is the originator path: local generation cannot fail except on an
// unusable crypto environment, but the key must still be announced to the
// group sender-key mechanism before others can use it.
func (s *Service) generate(ctx context.Context, room domain.RoomID) (domain.RoomKey, error) {
	key, err := crypto.GenerateRoomKey()
	if err != nil {
		return domain.RoomKey{}, err
	}
	s.hold(room, key)
	if err := s.transport.EnsureSenderKeyDistributed(ctx, room, true, nil); err != nil {
		s.log.Warn().Err(err).Str("room", room.String()).Msg("sender key announcement failed, joiners will trigger redistribution")
	}
	s.confirm(room)
	return key, nil
}

// request is the joiner path.
func (s *Service) request(ctx context.Context, room domain.RoomID, r *run, participants []domain.ParticipantID) (domain.RoomKey, error) {
	status := make(map[domain.ParticipantID]bool, len(participants))
	for _, p := range participants {
		status[p] = false
	}
	remaining := len(status)

	// Responders cannot decrypt our request (nor we their replies) without
	// sender keys on both sides, so distribution is forced up front.
	if err := s.transport.EnsureSenderKeyDistributed(ctx, room, true, participants); err != nil {
		s.log.Warn().Err(err).Str("room", room.String()).Msg("sender key distribution failed before key request")
	}
	if err := s.transport.SendGroupKeyRequest(ctx, room); err != nil {
		s.log.Warn().Err(err).Str("room", room.String()).Msg("key request send failed")
		return domain.RoomKey{}, &domain.KeyExchangeError{Outcome: domain.NoneReceived, Missing: participants}
	}

	window := time.NewTimer(s.ResponseWindow)
	defer window.Stop()
	retry := time.NewTimer(s.SenderKeyRetryDelay)
	defer retry.Stop()
	retried := false

	var key *domain.RoomKey
	for {
		select {
		case <-ctx.Done():
			// Torn down mid-run; pending responses are dropped by end().
			return domain.RoomKey{}, ctx.Err()

		case resp := <-r.responses:
			seen, known := status[resp.from]
			if !known {
				// Status entries are seeded at discovery only; a sender that
				// was never part of the fan-out cannot supply the key or
				// count toward the outcome.
				s.log.Debug().Str("room", room.String()).Str("from", resp.from.String()).Msg("dropping key response from unseeded sender")
				continue
			}
			if seen {
				continue // first-response-wins; duplicates are discarded
			}
			status[resp.from] = true
			remaining--
			if key == nil {
				k := resp.key
				key = &k
				// Any single authentic response suffices for correctness:
				// every participant holds the same room key. Waiting for the
				// rest gates readiness, not key validity.
				s.hold(room, k)
			}
			if remaining == 0 {
				s.confirm(room)
				return *key, nil
			}

		case <-retry.C:
			if key != nil || retried {
				continue
			}
			// Nothing yet; assume our sender key was slow to land, push it
			// again and resend the request once.
			retried = true
			s.log.Debug().Str("room", room.String()).Msg("no responses yet, redistributing sender key and resending request")
			if err := s.transport.EnsureSenderKeyDistributed(ctx, room, true, participants); err != nil {
				s.log.Warn().Err(err).Str("room", room.String()).Msg("sender key redistribution failed")
			}
			if err := s.transport.SendGroupKeyRequest(ctx, room); err != nil {
				s.log.Warn().Err(err).Str("room", room.String()).Msg("key request resend failed")
			}

		case <-window.C:
			responded, missing := splitStatus(status)
			if len(responded) == 0 {
				return domain.RoomKey{}, &domain.KeyExchangeError{Outcome: domain.NoneReceived, Missing: missing}
			}
			// Partial coverage: the key is held, but proceeding is the
			// user's explicit call, never a silent default.
			return domain.RoomKey{}, &domain.KeyExchangeError{
				Outcome:   domain.PartialReceived,
				Responded: responded,
				Missing:   missing,
			}
		}
	}
}

// HandleKeyRequest serves our held key to a requester. Requests for rooms we
// hold no key for are ignored.
func (s *Service) HandleKeyRequest(ctx context.Context, room domain.RoomID, from domain.ParticipantID) error {
	key, ok := s.Key(room)
	if !ok {
		s.log.Debug().Str("room", room.String()).Str("from", from.String()).Msg("ignoring key request, no key held")
		return nil
	}
	// The requester cannot decrypt our reply without our sender key.
	if err := s.transport.EnsureSenderKeyDistributed(ctx, room, true, []domain.ParticipantID{from}); err != nil {
		s.log.Warn().Err(err).Str("room", room.String()).Msg("sender key distribution failed before key response")
	}
	return s.transport.SendGroupKeyResponse(ctx, room, from, key)
}

// HandleKeyResponse feeds an inbound response into the active run for the
// room. Responses arriving after a run ended (timeout, cancellation,
// completion) are dropped rather than mutating torn-down state.
func (s *Service) HandleKeyResponse(room domain.RoomID, from domain.ParticipantID, key domain.RoomKey) {
	s.mu.Lock()
	r := s.runs[room]
	s.mu.Unlock()
	if r == nil {
		s.log.Debug().Str("room", room.String()).Str("from", from.String()).Msg("dropping key response, no active run")
		return
	}
	select {
	case r.responses <- response{from: from, key: key}:
	default:
		s.log.Warn().Str("room", room.String()).Msg("response buffer full, dropping key response")
	}
}

// Key returns the held key for a room, if any.
func (s *Service) Key(room domain.RoomID) (domain.RoomKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.keys[room]
	if k == nil {
		return domain.RoomKey{}, false
	}
	return *k, true
}

// Forget wipes and discards the held key for a room. Called when the local
// participant leaves or the room session ends.
func (s *Service) Forget(room domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.keys[room]; k != nil {
		crypto.Wipe(k[:])
		delete(s.keys, room)
	}
}

// Close forgets every held key.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for room, k := range s.keys {
		crypto.Wipe(k[:])
		delete(s.keys, room)
	}
}

func (s *Service) begin(room domain.RoomID) (*run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[room] != nil {
		return nil, domain.ErrExchangeInFlight
	}
	r := &run{responses: make(chan response, 32)}
	s.runs[room] = r
	return r, nil
}

func (s *Service) end(room domain.RoomID, r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[room] == r {
		delete(s.runs, room)
	}
}

func (s *Service) hold(room domain.RoomID, key domain.RoomKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old := s.keys[room]; old != nil {
		crypto.Wipe(old[:])
	}
	k := key
	s.keys[room] = &k
}

// confirm tells the signaling server this participant holds the room key.
func (s *Service) confirm(room domain.RoomID) {
	if s.signal == nil {
		return
	}
	if err := s.signal.Emit(domain.EventConfirmKey, struct {
		Room domain.RoomID `json:"roomId"`
	}{Room: room}); err != nil {
		s.log.Warn().Err(err).Str("room", room.String()).Msg("key confirmation emit failed")
	}
}

func splitStatus(status map[domain.ParticipantID]bool) (responded, missing []domain.ParticipantID) {
	for p, ok := range status {
		if ok {
			responded = append(responded, p)
		} else {
			missing = append(missing, p)
		}
	}
	return responded, missing
}

// Compile-time assertion that Service implements domain.ExchangeService.
var _ domain.ExchangeService = (*Service)(nil)
