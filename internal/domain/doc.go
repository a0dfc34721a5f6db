// Package domain defines core data models and interfaces shared across the app.
// It contains plain types (ids, key material, protocol outcomes), the
// collaborator contracts (secure-messaging transport, signaling, meeting API,
// bootstrap store) and the typed errors the protocol core surfaces.
package domain
