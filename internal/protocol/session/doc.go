// Package session owns pilot<->director transport helpers.
//
// Ownership boundary:
// - connection handles and serialized frame writes
// - retry/backoff primitives
// - transport reliability configuration
package session
