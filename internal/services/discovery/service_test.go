package discovery_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"roomkey/internal/domain"
	"roomkey/internal/services/discovery"
)

const (
	room    = domain.RoomID("room-1")
	meeting = domain.MeetingID("meet-1")
)

// scriptSignaler answers check-participants requests from a script of
// participant lists; a nil entry blocks until the request context expires.
type scriptSignaler struct {
	mu     sync.Mutex
	script [][]domain.ParticipantID
	calls  int
}

func (f *scriptSignaler) Emit(string, any) error { return nil }

func (f *scriptSignaler) Request(ctx context.Context, event string, _ any, _ domain.RoomID) (json.RawMessage, error) {
	if event != domain.EventCheckParticipants {
		return nil, errors.New("unexpected event: " + event)
	}
	f.mu.Lock()
	idx := f.calls
	f.calls++
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	entry := f.script[idx]
	f.mu.Unlock()

	if entry == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return json.Marshal(map[string]any{"roomId": room, "participants": entry})
}

func (f *scriptSignaler) Subscribe(string, domain.RoomID) (<-chan json.RawMessage, func()) {
	ch := make(chan json.RawMessage)
	return ch, func() {}
}

type meetingAPI struct {
	meeting domain.Meeting
	err     error
}

func (f *meetingAPI) GetMeeting(context.Context, domain.MeetingID) (domain.Meeting, error) {
	return f.meeting, f.err
}

func (f *meetingAPI) ListParticipants(context.Context, domain.MeetingID) ([]domain.ParticipantID, error) {
	return nil, nil
}

func (f *meetingAPI) RequestAdmission(context.Context, domain.MeetingID, domain.SessionID) error {
	return nil
}

func (f *meetingAPI) JoinExternal(context.Context, string, string, domain.PublicKeyBundle) (domain.ExternalSession, error) {
	return domain.ExternalSession{}, nil
}

func newService(sig *scriptSignaler, api *meetingAPI) *discovery.Service {
	svc := discovery.New(sig, api, zerolog.Nop())
	svc.CheckTimeout = 100 * time.Millisecond
	svc.PollInterval = 20 * time.Millisecond
	svc.PollBudget = 300 * time.Millisecond
	return svc
}

func TestCheckParticipantsClassifiesRole(t *testing.T) {
	cases := []struct {
		name      string
		occupants []domain.ParticipantID
		first     bool
	}{
		{"empty room makes us originator", []domain.ParticipantID{}, true},
		{"occupied room makes us joiner", []domain.ParticipantID{"a", "b"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig := &scriptSignaler{script: [][]domain.ParticipantID{tc.occupants}}
			svc := newService(sig, &meetingAPI{})

			role, err := svc.CheckParticipants(context.Background(), room)
			if err != nil {
				t.Fatalf("CheckParticipants: %v", err)
			}
			if role.IsFirstParticipant != tc.first {
				t.Fatalf("IsFirstParticipant: want %v, got %v", tc.first, role.IsFirstParticipant)
			}
			if role.ParticipantCount != len(tc.occupants) {
				t.Fatalf("count: want %d, got %d", len(tc.occupants), role.ParticipantCount)
			}
		})
	}
}

func TestCheckParticipantsTimeout(t *testing.T) {
	sig := &scriptSignaler{script: [][]domain.ParticipantID{nil}} // never answers
	svc := newService(sig, &meetingAPI{})

	if _, err := svc.CheckParticipants(context.Background(), room); !errors.Is(err, domain.ErrDiscoveryTimeout) {
		t.Fatalf("want ErrDiscoveryTimeout, got %v", err)
	}
}

func TestWaitForRoomFindsLateArrivals(t *testing.T) {
	sig := &scriptSignaler{script: [][]domain.ParticipantID{
		{}, {}, {"a"},
	}}
	svc := newService(sig, &meetingAPI{})

	outcome, err := svc.WaitForRoom(context.Background(), meeting, room)
	if err != nil {
		t.Fatalf("WaitForRoom: %v", err)
	}
	if outcome != domain.WaitParticipantsFound {
		t.Fatalf("want WaitParticipantsFound, got %v", outcome)
	}
}

func TestWaitForRoomDetectsEndedMeeting(t *testing.T) {
	sig := &scriptSignaler{script: [][]domain.ParticipantID{{}}}
	api := &meetingAPI{meeting: domain.Meeting{
		ID:    meeting,
		EndAt: time.Now().Add(-time.Hour),
	}}
	svc := newService(sig, api)

	outcome, err := svc.WaitForRoom(context.Background(), meeting, room)
	if err != nil {
		t.Fatalf("WaitForRoom: %v", err)
	}
	if outcome != domain.WaitRoomEnded {
		t.Fatalf("want WaitRoomEnded, got %v", outcome)
	}
}

func TestWaitForRoomBudgetExhausted(t *testing.T) {
	sig := &scriptSignaler{script: [][]domain.ParticipantID{{}}}
	// The meeting has no end time yet, so an empty room never counts as ended.
	svc := newService(sig, &meetingAPI{meeting: domain.Meeting{ID: meeting}})

	outcome, err := svc.WaitForRoom(context.Background(), meeting, room)
	if err != nil {
		t.Fatalf("WaitForRoom: %v", err)
	}
	if outcome != domain.WaitRoomNotStarted {
		t.Fatalf("want WaitRoomNotStarted, got %v", outcome)
	}
}
