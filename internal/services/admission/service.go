// Package admission runs the guest waiting-room handshake: request, pending,
// and an asynchronous grant or decline from the host. A decline is a valid
// protocol outcome, not a failure; the guest may knock again once the
// cooldown has passed.
package admission

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomkey/internal/domain"
)

// DefaultCooldown is the minimum gap between admission requests for the
// same guest session. Requests inside the window are rejected locally,
// without a network call.
const DefaultCooldown = 5 * time.Second

// Service implements domain.AdmissionService.
type Service struct {
	api    domain.MeetingAPI
	signal domain.Signaler
	log    zerolog.Logger

	Cooldown time.Duration
	Now      func() time.Time

	mu       sync.Mutex
	last     map[domain.SessionID]time.Time
	states   map[domain.SessionID]domain.AdmissionState
	declined map[domain.SessionID]bool
}

// New returns an admission service with the default cooldown.
func New(api domain.MeetingAPI, signal domain.Signaler, log zerolog.Logger) *Service {
	return &Service{
		api:      api,
		signal:   signal,
		log:      log.With().Str("component", "admission").Logger(),
		Cooldown: DefaultCooldown,
		Now:      time.Now,
		last:     make(map[domain.SessionID]time.Time),
		states:   make(map[domain.SessionID]domain.AdmissionState),
		declined: make(map[domain.SessionID]bool),
	}
}

// RequestAdmission knocks for the given guest session. Inside the cooldown
// window it fails locally with a ThrottledError carrying the remaining wait;
// otherwise the request goes out and the session transitions to Pending.
// A declined session may knock again, subject to the same cooldown.
func (s *Service) RequestAdmission(ctx context.Context, meeting domain.MeetingID, session domain.SessionID) error {
	s.mu.Lock()
	if at, ok := s.last[session]; ok {
		if elapsed := s.Now().Sub(at); elapsed < s.Cooldown {
			remaining := s.Cooldown - elapsed
			s.mu.Unlock()
			return &domain.ThrottledError{Remaining: remaining}
		}
	}
	s.last[session] = s.Now()
	s.mu.Unlock()

	if err := s.api.RequestAdmission(ctx, meeting, session); err != nil {
		return fmt.Errorf("admission request: %w", err)
	}

	s.mu.Lock()
	s.states[session] = domain.AdmissionPending
	// A fresh request re-arms decline handling for this session.
	s.declined[session] = false
	s.mu.Unlock()

	s.log.Info().
		Str("meeting", meeting.String()).
		Str("session", session.String()).
		Msg("admission requested")
	return nil
}

type resolution struct {
	Meeting domain.MeetingID `json:"meetingId"`
	Session domain.SessionID `json:"sessionId"`
}

// Await blocks until the host grants or declines the pending request, or ctx
// expires. Duplicate decline deliveries for an already-declined session are
// ignored. On grant the caller proceeds to join the media room; on decline
// the session returns to a Pending-eligible state after the cooldown.
func (s *Service) Await(ctx context.Context, meeting domain.MeetingID, session domain.SessionID) (domain.AdmissionState, error) {
	grants, cancelGrant := s.signal.Subscribe(domain.EventAdmissionGranted, "")
	declines, cancelDecline := s.signal.Subscribe(domain.EventAdmissionDeclined, "")
	defer cancelGrant()
	defer cancelDecline()

	for {
		select {
		case <-ctx.Done():
			return s.State(session), ctx.Err()

		case raw, ok := <-grants:
			if !ok {
				return s.State(session), ctx.Err()
			}
			if !s.matches(raw, meeting, session) {
				continue
			}
			s.mu.Lock()
			s.states[session] = domain.AdmissionGranted
			s.mu.Unlock()
			s.log.Info().Str("session", session.String()).Msg("admission granted")
			return domain.AdmissionGranted, nil

		case raw, ok := <-declines:
			if !ok {
				return s.State(session), ctx.Err()
			}
			if !s.matches(raw, meeting, session) {
				continue
			}
			s.mu.Lock()
			if s.declined[session] {
				s.mu.Unlock()
				s.log.Debug().Str("session", session.String()).Msg("duplicate decline delivery ignored")
				continue
			}
			s.declined[session] = true
			s.states[session] = domain.AdmissionDeclined
			s.mu.Unlock()
			s.log.Info().Str("session", session.String()).Msg("admission declined")
			return domain.AdmissionDeclined, nil
		}
	}
}

// State reports the current waiting-room state for a session.
func (s *Service) State(session domain.SessionID) domain.AdmissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[session]
}

func (s *Service) matches(raw json.RawMessage, meeting domain.MeetingID, session domain.SessionID) bool {
	var res resolution
	if err := json.Unmarshal(raw, &res); err != nil {
		s.log.Warn().Err(err).Msg("malformed admission resolution")
		return false
	}
	return res.Session == session && (res.Meeting == "" || res.Meeting == meeting)
}

// Compile-time assertion that Service implements domain.AdmissionService.
var _ domain.AdmissionService = (*Service)(nil)
