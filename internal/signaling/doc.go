// Package signaling implements the websocket signaling client.
//
// The socket carries fire-and-forget emits (join/leave, key confirmations)
// and correlated request/response pairs (participant checks). Correlation is
// explicit: every request carries a generated id and parks in a pending
// table with a context deadline, so protocol state machines never depend on
// externally registered callbacks firing later. Inbound frames without a
// correlation id fan out to event subscriptions filtered by room.
package signaling
