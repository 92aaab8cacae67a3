package session

import "context"

// Execute runs call and applies the replay policy for expired sessions.
//
// When call reports Unauthorized, Execute asks the coordinator for a fresh
// session. A failed refresh is returned as is. After a renewal call is
// replayed exactly once; if the replay is Unauthorized again the result is a
// *ReplayError, which is terminal and never triggers another refresh. Any
// other error is returned unchanged.
func Execute[T any](ctx context.Context, c *Coordinator, call func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	result, err := call(ctx)
	if c == nil || !IsUnauthorized(err) {
		return result, err
	}

	if ferr := c.EnsureFreshSession(ctx); ferr != nil {
		return zero, ferr
	}

	result, err = call(ctx)
	if IsUnauthorized(err) {
		c.logger.Warn("replay rejected after refresh", "domain", c.domain, "error", err)
		return zero, &ReplayError{Domain: c.domain, Cause: err}
	}
	return result, err
}
