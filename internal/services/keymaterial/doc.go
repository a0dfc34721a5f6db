// Package keymaterial generates and tops up the local key bundle a guest
// needs before it can speak to the secure-messaging layer.
//
// EnsureKeyMaterial is pure: it takes whatever material already exists and
// returns a complete bundle, regenerating only what is missing, expired or
// malformed. Persisting the result into the bootstrap store is the caller's
// concern, keeping construction separate from storage.
package keymaterial
