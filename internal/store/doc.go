// Package store provides the session-scoped bootstrap store.
//
// It is the one shared-mutable resource of the protocol core: a plain
// in-memory key-value container holding generated key material and
// negotiated session identifiers for the lifetime of one tab/session.
// Nothing here ever reaches durable storage; Clear wipes values before
// dropping them, and clearing a namespace is the mechanism by which guest
// private key material is purged. All methods are concurrency-safe via
// internal locking. Writes are last-writer-wins at key granularity.
package store
