// Package exchange implements the room key-exchange coordinator.
//
// A participant entering a room either originates the shared room key (the
// room was empty) or requests it from the current occupants over the
// secure-messaging transport. The coordinator owns role determination, the
// fan-out request with its response bookkeeping, timeout and partial-failure
// policy, the responder side that serves a held key, and in-memory custody
// of the key itself. At most one run is active per room; a concurrent call
// is rejected so two different keys can never race into existence.
//
// Response handling is idempotent per sender: the first valid response from
// a participant wins and later duplicates are discarded, so transport
// reordering or redelivery cannot corrupt a run. Every retry starts from a
// fresh participant check; a room that emptied out in the meantime converts
// the retry into the originator path.
package exchange
