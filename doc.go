// Package session keeps a client authenticated against an API that uses
// short-lived access credentials and a rotating HTTP-only refresh cookie,
// while any number of API calls run concurrently.
//
// Refresh coordination:
//   - Coordinator allows at most one refresh in flight per domain. Callers
//     that ask for a fresh session while one runs attach to it and all
//     receive its outcome: nil when renewed, the same *RefreshError when not.
//   - Execute (and Domain.Do) replays a call that failed as unauthorized
//     exactly once after a renewal. A replay rejected again is a terminal
//     *ReplayError and never triggers another refresh.
//
// Session state:
//   - Store exposes signed_out, resolving and authenticated states to any
//     number of readers and subscribers. Only the coordinator, bootstrap,
//     login and logout write to it.
//   - Bootstrapper resolves the identity once at start-up, with at most one
//     silent refresh and two identity lookups no matter how many callers ask.
//
// Domains:
//   - Domain wires a Store, Coordinator and Bootstrapper around a Backend.
//     One generic Domain is instantiated per identity domain (admin, owner,
//     tenant) and domains never share state.
//
// Activity sinks and metrics receive best-effort events for every refresh,
// state change, login, logout and bootstrap.
package session
