// Package transport provides the shared HTTP layer for web and mobile API
// endpoints: default headers, a cookie jar spanning the whole login flow,
// rate limiting, and retry of transient failures.
//
// Responses are returned fully buffered so callers can classify 4xx bodies
// instead of losing them to an error path.
package transport
