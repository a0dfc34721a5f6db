package domain

import "time"

// Identity holds the long-term key pairs backing a participant's device on
// the secure-messaging transport. Private halves never leave the process.
type Identity struct {
	XPub   X25519Public   `json:"publicKey"`
	XPriv  X25519Private  `json:"privateKey"`
	EdPub  Ed25519Public  `json:"signingPublicKey"`
	EdPriv Ed25519Private `json:"signingPrivateKey"`
}

// SignedPreKey is the medium-term pre-key pair plus a signature over its
// public half. Valid for seven days from CreatedAt; replaced wholesale on
// expiry, never updated in place.
type SignedPreKey struct {
	ID        int           `json:"id"`
	Public    X25519Public  `json:"publicKey"`
	Private   X25519Private `json:"privateKey"`
	Signature []byte        `json:"signature"`
	CreatedAt int64         `json:"timestamp"` // unix milliseconds
}

// OneTimePreKey is one entry of the single-use pre-key pool. Ids increase
// monotonically; consumption is the transport's concern, not ours.
type OneTimePreKey struct {
	ID      int           `json:"id"`
	Public  X25519Public  `json:"publicKey"`
	Private X25519Private `json:"privateKey"`
}

// KeyBundle is the full local key material for one guest session: identity,
// current signed pre-key, remaining one-time pre-keys and the next free
// one-time pre-key id.
type KeyBundle struct {
	Identity       Identity
	SignedPreKey   SignedPreKey
	OneTimePreKeys []OneTimePreKey
	NextPreKeyID   int
}

// OneTimePreKeyPublic is the published half of a one-time pre-key.
type OneTimePreKeyPublic struct {
	ID     int          `json:"id"`
	Public X25519Public `json:"publicKey"`
}

// PublicKeyBundle is what a guest uploads when registering an invitation
// token: public halves and the signed pre-key signature only.
type PublicKeyBundle struct {
	IdentityKey     X25519Public          `json:"identityKey"`
	SigningKey      Ed25519Public         `json:"signingKey"`
	SignedPreKeyID  int                   `json:"signedPreKeyId"`
	SignedPreKey    X25519Public          `json:"signedPreKey"`
	SignedPreKeySig []byte                `json:"signedPreKeySignature"`
	OneTimePreKeys  []OneTimePreKeyPublic `json:"oneTimePreKeys"`
}

// Public strips a KeyBundle down to the uploadable halves.
func (b KeyBundle) Public() PublicKeyBundle {
	pub := PublicKeyBundle{
		IdentityKey:     b.Identity.XPub,
		SigningKey:      b.Identity.EdPub,
		SignedPreKeyID:  b.SignedPreKey.ID,
		SignedPreKey:    b.SignedPreKey.Public,
		SignedPreKeySig: append([]byte(nil), b.SignedPreKey.Signature...),
		OneTimePreKeys:  make([]OneTimePreKeyPublic, 0, len(b.OneTimePreKeys)),
	}
	for _, k := range b.OneTimePreKeys {
		pub.OneTimePreKeys = append(pub.OneTimePreKeys, OneTimePreKeyPublic{ID: k.ID, Public: k.Public})
	}
	return pub
}

// Meeting is the scheduled container of a room as the meeting API reports it.
type Meeting struct {
	ID      MeetingID `json:"id"`
	Room    RoomID    `json:"roomId"`
	Title   string    `json:"title"`
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

// ExternalSession is the handle a registered guest operates under.
type ExternalSession struct {
	SessionID   SessionID `json:"sessionId"`
	MeetingID   MeetingID `json:"meetingId"`
	DisplayName string    `json:"displayName"`
}

// RoleResult is the outcome of participant discovery for a room.
type RoleResult struct {
	IsFirstParticipant bool
	ParticipantCount   int
	ParticipantIDs     []ParticipantID
}

// WaitOutcome classifies the long-horizon guest poll for a room.
type WaitOutcome int

const (
	// WaitParticipantsFound means the room is live; proceed to key exchange.
	WaitParticipantsFound WaitOutcome = iota
	// WaitRoomEnded means the meeting's scheduled end time has passed with
	// nobody present.
	WaitRoomEnded
	// WaitRoomNotStarted means the poll budget ran out before anyone joined;
	// the user may retry manually.
	WaitRoomNotStarted
)

func (o WaitOutcome) String() string {
	switch o {
	case WaitParticipantsFound:
		return "participants-found"
	case WaitRoomEnded:
		return "room-ended"
	default:
		return "room-not-started"
	}
}

// AdmissionState is the guest waiting-room state machine.
type AdmissionState int

const (
	AdmissionNotRequested AdmissionState = iota
	AdmissionPending
	AdmissionGranted
	AdmissionDeclined
)

func (s AdmissionState) String() string {
	switch s {
	case AdmissionPending:
		return "pending"
	case AdmissionGranted:
		return "granted"
	case AdmissionDeclined:
		return "declined"
	default:
		return "not-requested"
	}
}

// ExchangeOutcome classifies how a joiner's fan-out key request ended.
type ExchangeOutcome int

const (
	// AllReceived: every seeded participant answered before the deadline.
	AllReceived ExchangeOutcome = iota
	// PartialReceived: some answered; the caller may retry or explicitly
	// proceed with the key already held.
	PartialReceived
	// NoneReceived: nobody answered; hard failure, retry required.
	NoneReceived
)

func (o ExchangeOutcome) String() string {
	switch o {
	case AllReceived:
		return "all-received"
	case PartialReceived:
		return "partial-received"
	default:
		return "none-received"
	}
}
