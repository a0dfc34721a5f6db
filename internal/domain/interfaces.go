package domain

import (
	"context"
	"encoding/json"
)

// Signaling event names shared with the signaling server.
const (
	EventCheckParticipants   = "check-participants"
	EventRegisterParticipant = "register-participant"
	EventConfirmKey          = "confirm-e2ee-key"
	EventJoinRoom            = "join-room"
	EventLeaveRoom           = "leave-room"
	EventAdmissionGranted    = "admission-granted"
	EventAdmissionDeclined   = "admission-declined"
)

// BootstrapStore is the session-scoped key-value container backing one
// tab's bootstrap state. Implementations never touch durable storage;
// Clear must remove every key under a prefix, wiping values, including
// half-initialized state.
type BootstrapStore interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
	Clear(prefix string)
}

// GroupTransport is the asynchronous secure-messaging layer (Signal-style)
// used purely as encrypted transport for key material. It is an external
// collaborator; nothing in this module reimplements its primitives.
type GroupTransport interface {
	// SendGroupKeyRequest broadcasts a key request to the room's group channel.
	SendGroupKeyRequest(ctx context.Context, room RoomID) error
	// SendGroupKeyResponse delivers the shared room key to one requester.
	SendGroupKeyResponse(ctx context.Context, room RoomID, to ParticipantID, key RoomKey) error
	// EnsureSenderKeyDistributed (re-)distributes our group sender key to the
	// given members. With force it redistributes even when already sent.
	EnsureSenderKeyDistributed(ctx context.Context, room RoomID, force bool, members []ParticipantID) error
	// HasSenderKey reports whether we hold the participant's sender key.
	HasSenderKey(room RoomID, p ParticipantID) bool
	// SendToGuest delivers a point-to-point message to an external session.
	SendToGuest(ctx context.Context, meeting MeetingID, guest SessionID, msgType string, payload any) error
	// SendToUser delivers a point-to-point message to a member.
	SendToUser(ctx context.Context, user ParticipantID, msgType string, payload any) error
}

// Signaler is the socket signaling collaborator. Emit is fire-and-forget;
// Request correlates a response by id and honors the context deadline;
// Subscribe returns a stream of events filtered by room plus a cancel func.
type Signaler interface {
	Emit(event string, payload any) error
	Request(ctx context.Context, event string, payload any, room RoomID) (json.RawMessage, error)
	Subscribe(event string, room RoomID) (<-chan json.RawMessage, func())
}

// MeetingAPI is the HTTP collaborator for meeting metadata, guest
// registration and admission requests.
type MeetingAPI interface {
	GetMeeting(ctx context.Context, id MeetingID) (Meeting, error)
	ListParticipants(ctx context.Context, id MeetingID) ([]ParticipantID, error)
	RequestAdmission(ctx context.Context, id MeetingID, session SessionID) error
	JoinExternal(ctx context.Context, token, displayName string, bundle PublicKeyBundle) (ExternalSession, error)
}

// KeyMaterialService produces and tops up local key material.
type KeyMaterialService interface {
	EnsureKeyMaterial(existing *KeyBundle) (KeyBundle, error)
}

// DiscoveryService answers "who is in the room" questions.
type DiscoveryService interface {
	CheckParticipants(ctx context.Context, room RoomID) (RoleResult, error)
	WaitForRoom(ctx context.Context, meeting MeetingID, room RoomID) (WaitOutcome, error)
}

// ExchangeService is the key-exchange protocol core.
type ExchangeService interface {
	// ObtainKey determines the local role and either generates the room key
	// (originator) or requests it from current occupants (joiner).
	ObtainKey(ctx context.Context, room RoomID) (RoomKey, error)
	// GenerateKey mints a fresh key for an empty room.
	GenerateKey(ctx context.Context, room RoomID) (RoomKey, error)
	// Key returns the held key for a room, if any.
	Key(room RoomID) (RoomKey, bool)
	// HandleKeyRequest serves our held key to a requesting participant.
	HandleKeyRequest(ctx context.Context, room RoomID, from ParticipantID) error
	// HandleKeyResponse feeds an inbound key response into the active run.
	// Responses for rooms without an active run are dropped.
	HandleKeyResponse(room RoomID, from ParticipantID, key RoomKey)
	// Forget wipes and discards the held key for a room.
	Forget(room RoomID)
}

// AdmissionService runs the guest waiting-room handshake.
type AdmissionService interface {
	RequestAdmission(ctx context.Context, meeting MeetingID, session SessionID) error
	Await(ctx context.Context, meeting MeetingID, session SessionID) (AdmissionState, error)
	State(session SessionID) AdmissionState
}

// GuestService registers a temporary guest identity and guarantees that its
// key material is purged when the meeting ends.
type GuestService interface {
	Register(ctx context.Context, token, displayName string) (ExternalSession, error)
	Session() (ExternalSession, bool)
	Dispose(meeting MeetingID)
}
