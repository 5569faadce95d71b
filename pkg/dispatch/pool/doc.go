// Package pool provides a bounded pool of logical connections to a single
// upstream base address.
//
// # Overview
//
// A Pool owns between MinConnections and MaxConnections connections. Callers
// acquire a connection, run the injected executor against it, and release
// it. When every connection is busy and the pool is at its maximum size,
// acquirers wait on a FIFO list bounded by AcquireTimeout.
//
// # Acquisition
//
//  1. Pop an idle connection if one exists
//  2. Else create a new connection if the pool is below MaxConnections
//  3. Else join the FIFO wait list, bounded by AcquireTimeout
//
// On release, a waiting acquirer (if any) is handed the connection directly,
// skipping the idle set. Unhealthy connections are discarded on release
// instead of being returned.
//
// # Thread Safety
//
// All pool state is guarded by one mutex per Pool instance; admission
// decisions for one pool never interleave. Waiting happens outside the lock
// on a per-waiter channel.
package pool
