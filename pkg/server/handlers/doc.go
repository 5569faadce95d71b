// Package handlers implements the HTTP handlers for the proxy surface:
// chat completions, liveness/readiness, and the stats snapshot endpoint.
//
// Handlers depend on narrow interfaces (Fleet, Recorder) rather than on the
// server package, so they are testable with fakes.
package handlers
