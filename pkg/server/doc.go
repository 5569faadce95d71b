// Package server provides Proxima's HTTP proxy surface and ties the
// dispatch layer together.
//
// # Layout
//
// Server owns one Dispatcher per configured upstream. A Dispatcher bundles
// the upstream's HTTP client, connection pool, pipelining manager, and
// batch manager, and registers its pool/pipeline pair in the dispatch
// registry. The HTTP handlers live in the handlers subpackage and reach the
// dispatchers through the Fleet interface; middleware lives in the
// middleware subpackage.
//
// # Shutdown
//
// Shutdown drains in order: the HTTP listener stops accepting, each batch
// manager flushes and closes, then pipelines and pools shut down, and the
// server waits for every pipeline to report completion before the usage
// store is closed.
package server
