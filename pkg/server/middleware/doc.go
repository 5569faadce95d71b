// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// Middleware functions are chained in a specific order:
//
//	handler = Recovery(RequestID(Logging(handler)))
//
// Recovery sits outermost so panics anywhere in the chain are caught;
// RequestID runs before Logging so every log line carries the ID.
package middleware
