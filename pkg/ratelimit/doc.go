// Package ratelimit provides request rate limiting for the HTTP transport.
//
// The login flow is a short sequential chain of requests, but the platform
// still throttles aggressive clients; the transport routes every request
// through a token bucket sized from configuration.
//
// Usage:
//
//	limiter := ratelimit.PerMinute(60)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // context cancelled
//	}
//	// proceed with request
package ratelimit
