// Package commands defines the roomkey CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - join   Enter a room as a member: discover role, generate or request
//     the shared room key, join the media room
//   - guest  Enter via invitation token: bootstrap a temporary identity,
//     wait for the room, knock on the waiting room, exchange keys
//   - leave  Announce departure and wipe the held room key
//
// # Implementation
//
// The root command builds the dependency graph (session store, signaling
// client, transport adapter, meeting API client, services) and connects the
// signaling socket before any subcommand runs, so handlers share one app
// context whose teardown purges every secret.
package commands
