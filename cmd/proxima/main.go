// Proxima is a reverse proxy for LLM APIs with connection pooling,
// request pipelining, and adaptive batching.
//
// It sits between clients and upstream completion endpoints, providing:
//   - Bounded connection pools with warm-up and health tracking
//   - HTTP pipelining with priority-ordered dispatch
//   - Request coalescing into batch windows
//   - Usage history persistence (memory or SQLite)
//   - Prometheus metrics and structured logging
//
// Usage:
//
//	# Start server with default configuration
//	proxima run
//
//	# Start with custom configuration file
//	proxima run --config /path/to/config.yaml
//
//	# Validate a configuration file without starting
//	proxima validate --config /path/to/config.yaml
//
//	# Show version information
//	proxima version
package main

func main() {
	Execute()
}
