// Package pilot owns the controller side of the transport: dialing the
// director, resilient reconnect with capped exponential backoff, and the
// inbound codec -> dispatcher path for instruction frames.
package pilot
