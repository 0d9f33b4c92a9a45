// Package auth drives the web login flow as a small state machine: CSRF
// discovery, credential sealing, submission, then exactly one of
// authenticated, two-factor pending, checkpoint pending, or failed.
//
// Outcomes surface as typed errors from the errors package so callers can
// branch without string matching.
package auth
