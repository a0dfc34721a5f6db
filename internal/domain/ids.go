package domain

// RoomID identifies a live media room.
type RoomID string

func (r RoomID) String() string { return string(r) }

// MeetingID identifies the scheduled meeting a room belongs to.
type MeetingID string

func (m MeetingID) String() string { return string(m) }

// SessionID is the handle a guest receives when registering an invitation
// token. It stands in for a durable identity for the lifetime of one meeting.
type SessionID string

func (s SessionID) String() string { return string(s) }

// ParticipantID identifies a participant inside a room. For members this is
// their user id; for guests it is their external session id.
type ParticipantID string

func (p ParticipantID) String() string { return string(p) }
