// Package transport adapts the external secure-messaging layer to the
// domain.GroupTransport contract.
//
// The Signal-style E2EE engine terminates the signaling socket: frames sent
// here are instructions to that engine (encrypt and fan out a group key
// request, distribute our sender key, deliver a point-to-point message), and
// inbound frames are its already-decrypted deliveries. No key ever crosses
// the wire unencrypted past the engine, and none of its cryptographic
// machinery is reimplemented in this module.
package transport
