// Package crypto exposes the minimal primitives used by roomkey.
//
// Contents
//
//   - X25519 key generation with RFC 7748 clamping (GenerateX25519)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Room shared-key generation (GenerateRoomKey)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// All functions return fixed-size array types defined in internal/domain to
// avoid accidental reallocations. A failing secure-random source is reported
// as domain.ErrCryptoUnavailable, which is terminal for the bootstrap flow.
// The symmetric and ratchet operations of the secure-messaging layer are an
// external collaborator and are deliberately absent here.
package crypto
