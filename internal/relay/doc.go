// Package relay provides the HTTP implementation of domain.MeetingAPI.
//
// The meeting service owns scheduled-meeting metadata, the external-guest
// join endpoint and the admission request endpoint. This package offers a
// concrete JSON-over-HTTP client for it.
//
// Supported operations include:
//   - Fetching meeting metadata (schedule, room id, end time).
//   - Listing a meeting's current participants.
//   - Registering an invitation token plus a public key bundle as a guest.
//   - Requesting admission to a live room as a guest.
//
// All requests accept a context for cancellation and deadlines. Non-2xx
// statuses are returned as errors with the HTTP method, path and status
// text to aid diagnostics.
package relay
