package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCryptoUnavailable means the runtime has no usable asymmetric-crypto
	// primitive (for example no secure randomness). Terminal; not retryable.
	ErrCryptoUnavailable = errors.New("cryptographic primitives unavailable on this device")

	// ErrDiscoveryTimeout means the participant check got no correlated
	// response in time. The caller may retry discovery.
	ErrDiscoveryTimeout = errors.New("participant discovery timed out")

	// ErrExchangeInFlight rejects a second key-exchange run for a room while
	// one is active, so two RoomKeys can never race into existence.
	ErrExchangeInFlight = errors.New("key exchange already in flight for this room")

	// ErrRegistrationFailed wraps guest registration failures. Terminal for
	// the attempt; the whole bootstrap may be re-invoked.
	ErrRegistrationFailed = errors.New("guest registration failed")
)

// ThrottledError is a local, non-network rejection of an admission request
// inside the cooldown window. It is a wait instruction, not a failure.
type ThrottledError struct {
	Remaining time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("admission request throttled, retry in %s", e.Remaining.Round(time.Second))
}

// RemainingSeconds is the wait surfaced to the caller, rounded up.
func (e *ThrottledError) RemainingSeconds() int {
	return int((e.Remaining + time.Second - 1) / time.Second)
}

// KeyExchangeError reports a joiner run that did not reach AllReceived.
// On PartialReceived the coordinator still holds the key it collected; the
// caller decides between retrying and proceeding degraded.
type KeyExchangeError struct {
	Outcome   ExchangeOutcome
	Responded []ParticipantID
	Missing   []ParticipantID
}

func (e *KeyExchangeError) Error() string {
	return fmt.Sprintf("key exchange %s: %d responded, %d missing",
		e.Outcome, len(e.Responded), len(e.Missing))
}

// IsThrottled extracts a ThrottledError from err, if any.
func IsThrottled(err error) (*ThrottledError, bool) {
	var te *ThrottledError
	ok := errors.As(err, &te)
	return te, ok
}
