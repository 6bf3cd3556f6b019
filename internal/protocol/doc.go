// Package protocol owns the wire contract between pilot and director.
//
// Ownership boundary:
// - reserved field names on the newline-delimited JSON wire
// - the canonical rejection frame
// - frame/payload/session primitives live in subpackages
package protocol
