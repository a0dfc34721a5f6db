// Package discovery answers "who is currently in the room" questions: the
// short correlated participant check that decides originator-vs-joiner role,
// and the long-horizon guest poll that waits for a room to come alive.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"roomkey/internal/domain"
)

// Timing defaults. CheckTimeout bounds one correlated check; PollInterval
// and PollBudget shape the guest wait loop.
const (
	DefaultCheckTimeout = 5 * time.Second
	DefaultPollInterval = 10 * time.Second
	DefaultPollBudget   = 15 * time.Minute
)

// Service implements domain.DiscoveryService.
type Service struct {
	signal domain.Signaler
	api    domain.MeetingAPI
	log    zerolog.Logger

	CheckTimeout time.Duration
	PollInterval time.Duration
	PollBudget   time.Duration
	Now          func() time.Time
}

// New returns a discovery service with default timing.
func New(signal domain.Signaler, api domain.MeetingAPI, log zerolog.Logger) *Service {
	return &Service{
		signal:       signal,
		api:          api,
		log:          log.With().Str("component", "discovery").Logger(),
		CheckTimeout: DefaultCheckTimeout,
		PollInterval: DefaultPollInterval,
		PollBudget:   DefaultPollBudget,
		Now:          time.Now,
	}
}

type checkRequest struct {
	Room domain.RoomID `json:"roomId"`
}

type checkResponse struct {
	Room         domain.RoomID          `json:"roomId"`
	Participants []domain.ParticipantID `json:"participants"`
}

// CheckParticipants asks the signaling server who occupies the room and
// classifies the local participant as originator or joiner. A missing
// response within CheckTimeout fails with domain.ErrDiscoveryTimeout.
func (s *Service) CheckParticipants(ctx context.Context, room domain.RoomID) (domain.RoleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.CheckTimeout)
	defer cancel()

	raw, err := s.signal.Request(ctx, domain.EventCheckParticipants, checkRequest{Room: room}, room)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.RoleResult{}, domain.ErrDiscoveryTimeout
		}
		return domain.RoleResult{}, err
	}

	var resp checkResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.RoleResult{}, domain.ErrDiscoveryTimeout
	}

	result := domain.RoleResult{
		IsFirstParticipant: len(resp.Participants) == 0,
		ParticipantCount:   len(resp.Participants),
		ParticipantIDs:     resp.Participants,
	}
	s.log.Debug().
		Str("room", room.String()).
		Int("count", result.ParticipantCount).
		Bool("first", result.IsFirstParticipant).
		Msg("participant check")
	return result, nil
}

// WaitForRoom polls for occupants every PollInterval for up to PollBudget.
// It ends in one of three ways: participants appeared, the meeting's
// announced end time passed with nobody present, or the budget ran out
// before the room started (the user may retry manually). Telling the latter
// two apart depends on the meeting's end time, not mere absence.
func (s *Service) WaitForRoom(ctx context.Context, meeting domain.MeetingID, room domain.RoomID) (domain.WaitOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.PollBudget)
	defer cancel()

	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		role, err := s.CheckParticipants(ctx, room)
		switch {
		case err == nil && role.ParticipantCount > 0:
			return domain.WaitParticipantsFound, nil
		case err != nil && !errors.Is(err, domain.ErrDiscoveryTimeout):
			if ctx.Err() != nil {
				return domain.WaitRoomNotStarted, nil
			}
			return domain.WaitRoomNotStarted, err
		}

		// Nobody there. Has the meeting already ended?
		if m, err := s.api.GetMeeting(ctx, meeting); err == nil {
			if !m.EndAt.IsZero() && s.Now().After(m.EndAt) {
				return domain.WaitRoomEnded, nil
			}
		} else {
			s.log.Warn().Err(err).Str("meeting", meeting.String()).Msg("meeting lookup failed during wait")
		}

		select {
		case <-ctx.Done():
			return domain.WaitRoomNotStarted, nil
		case <-ticker.C:
		}
	}
}

// Compile-time assertion that Service implements domain.DiscoveryService.
var _ domain.DiscoveryService = (*Service)(nil)
