package app

import (
	"context"
	"errors"
	"fmt"

	"roomkey/internal/domain"
)

// App exposes the protocol flows the UI layer drives.
type App struct {
	wire *Wire
}

// New wraps a wired dependency graph.
func New(w *Wire) *App { return &App{wire: w} }

// EnterRoom runs the member entry flow: register with signaling, determine
// role, obtain the room key (generating or requesting as appropriate) and
// join the media room. Absence of a key blocks entry; there is no
// unencrypted fallback.
func (a *App) EnterRoom(ctx context.Context, room domain.RoomID, participant domain.ParticipantID) (domain.RoomKey, error) {
	if err := a.wire.Signal.Emit(domain.EventRegisterParticipant, roomEvent{Room: room, Participant: participant}); err != nil {
		return domain.RoomKey{}, err
	}
	key, err := a.wire.Exchange.ObtainKey(ctx, room)
	if err != nil {
		return domain.RoomKey{}, err
	}
	if err := a.wire.Signal.Emit(domain.EventJoinRoom, roomEvent{Room: room, Participant: participant}); err != nil {
		return domain.RoomKey{}, err
	}
	return key, nil
}

// ProceedPartial joins the room with the key collected by a run that ended
// PartialReceived. It is an explicit, user-opted-into degraded mode and
// fails if no key is actually held.
func (a *App) ProceedPartial(room domain.RoomID, participant domain.ParticipantID) (domain.RoomKey, error) {
	key, ok := a.wire.Exchange.Key(room)
	if !ok {
		return domain.RoomKey{}, errors.New("no key held for room, cannot proceed")
	}
	if err := a.wire.Signal.Emit(domain.EventJoinRoom, roomEvent{Room: room, Participant: participant}); err != nil {
		return domain.RoomKey{}, err
	}
	return key, nil
}

// LeaveRoom announces departure and wipes the held room key.
func (a *App) LeaveRoom(room domain.RoomID, participant domain.ParticipantID) error {
	err := a.wire.Signal.Emit(domain.EventLeaveRoom, roomEvent{Room: room, Participant: participant})
	a.wire.Exchange.Forget(room)
	return err
}

// EnterAsGuest runs the full guest flow: bootstrap and register key
// material against the invitation token, wait for the room to come alive,
// knock, await the host's verdict, then obtain the room key.
func (a *App) EnterAsGuest(ctx context.Context, token, displayName string) (domain.ExternalSession, domain.RoomKey, error) {
	sess, err := a.wire.Guests.Register(ctx, token, displayName)
	if err != nil {
		return domain.ExternalSession{}, domain.RoomKey{}, err
	}

	meeting, err := a.wire.API.GetMeeting(ctx, sess.MeetingID)
	if err != nil {
		return sess, domain.RoomKey{}, err
	}

	outcome, err := a.wire.Discovery.WaitForRoom(ctx, sess.MeetingID, meeting.Room)
	if err != nil {
		return sess, domain.RoomKey{}, err
	}
	switch outcome {
	case domain.WaitRoomEnded:
		return sess, domain.RoomKey{}, fmt.Errorf("meeting %s has already ended", sess.MeetingID)
	case domain.WaitRoomNotStarted:
		return sess, domain.RoomKey{}, fmt.Errorf("meeting %s has not started yet", sess.MeetingID)
	}

	if err := a.wire.Admission.RequestAdmission(ctx, sess.MeetingID, sess.SessionID); err != nil {
		return sess, domain.RoomKey{}, err
	}
	state, err := a.wire.Admission.Await(ctx, sess.MeetingID, sess.SessionID)
	if err != nil {
		return sess, domain.RoomKey{}, err
	}
	if state != domain.AdmissionGranted {
		return sess, domain.RoomKey{}, fmt.Errorf("admission %s", state)
	}

	key, err := a.wire.Exchange.ObtainKey(ctx, meeting.Room)
	if err != nil {
		return sess, domain.RoomKey{}, err
	}
	if err := a.wire.Signal.Emit(domain.EventJoinRoom, roomEvent{
		Room:        meeting.Room,
		Participant: domain.ParticipantID(sess.SessionID),
	}); err != nil {
		return sess, domain.RoomKey{}, err
	}
	return sess, key, nil
}

// DisposeGuest purges the guest's key material and wipes any held room key.
func (a *App) DisposeGuest(meeting domain.MeetingID, room domain.RoomID) {
	a.wire.Exchange.Forget(room)
	a.wire.Guests.Dispose(meeting)
}

type roomEvent struct {
	Room        domain.RoomID        `json:"roomId"`
	Participant domain.ParticipantID `json:"participantId"`
}
