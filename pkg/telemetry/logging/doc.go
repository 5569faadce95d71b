// Package logging provides structured logging for Proxima built on log/slog.
//
// Logger wraps slog with level/format parsing from configuration and
// context-aware variants that pick up request-scoped fields (request ID,
// upstream, model) placed in the context by the server middleware.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "debug", Format: "text"})
//	if err != nil {
//		return err
//	}
//	defer logger.Shutdown()
//
//	ctx = logging.WithRequestID(ctx, id)
//	logger.InfoContext(ctx, "request admitted", "queue_depth", 3)
package logging
