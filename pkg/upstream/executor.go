package upstream

import (
	"context"
	"errors"
	"sync"

	"proxima-hq/proxima/pkg/dispatch"
	"proxima-hq/proxima/pkg/dispatch/pool"
)

// Executor returns a pool executor that runs requests through the client.
// Network failures mark the pooled connection unhealthy so the pool discards
// it on release.
func (c *Client) Executor() pool.Executor {
	return func(ctx context.Context, conn *pool.Connection, req *dispatch.RequestOptions) (*dispatch.Response, error) {
		resp, err := c.Do(ctx, req)
		if err != nil {
			if isTransportError(err) {
				conn.MarkUnhealthy()
			}
			return nil, err
		}
		return resp, nil
	}
}

// BatchExecutor returns a batch executor that fans the batch out over
// concurrent HTTP calls. Individual request failures are reported as failed
// responses at the request's position; the executor itself fails only when
// every request in the batch fails.
func (c *Client) BatchExecutor() dispatch.BatchExecutor {
	return func(ctx context.Context, reqs []*dispatch.RequestOptions) ([]*dispatch.Response, error) {
		responses := make([]*dispatch.Response, len(reqs))
		errs := make([]error, len(reqs))

		var wg sync.WaitGroup
		for i, req := range reqs {
			wg.Add(1)
			go func(i int, req *dispatch.RequestOptions) {
				defer wg.Done()
				resp, err := c.Do(ctx, req)
				if err != nil {
					errs[i] = err
					responses[i] = failedResponse(err)
					return
				}
				responses[i] = resp
			}(i, req)
		}
		wg.Wait()

		failures := 0
		var lastErr error
		for _, err := range errs {
			if err != nil {
				failures++
				lastErr = err
			}
		}
		if failures == len(reqs) && failures > 0 {
			return nil, lastErr
		}

		return responses, nil
	}
}

// failedResponse converts an execution error into a failed response so one
// bad request does not sink the rest of its batch.
func failedResponse(err error) *dispatch.Response {
	resp := &dispatch.Response{
		Success: false,
		Body:    []byte(err.Error()),
	}

	var upstreamErr *Error
	if errors.As(err, &upstreamErr) {
		resp.StatusCode = upstreamErr.StatusCode
	}

	return resp
}

// isTransportError reports whether the error indicates a broken transport
// rather than an upstream-level rejection.
func isTransportError(err error) bool {
	var authErr *AuthError
	var rateErr *RateLimitError
	var upstreamErr *Error
	if errors.As(err, &authErr) || errors.As(err, &rateErr) || errors.As(err, &upstreamErr) {
		return false
	}
	return true
}
