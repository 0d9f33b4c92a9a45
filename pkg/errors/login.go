package errors

import "fmt"

// The login flow surfaces failures as typed values so callers can branch
// on the error kind instead of inspecting message strings.

// CredentialError means the username/password combination was rejected.
// It is never retried automatically.
type CredentialError struct {
	Username string
	Message  string
}

func (e *CredentialError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("invalid credentials for %q: %s", e.Username, e.Message)
	}
	return fmt.Sprintf("invalid credentials for %q", e.Username)
}

// TwoFactorRequiredError means the account requires a verification code.
// Recoverable: retry the login with a code or a code provider configured.
type TwoFactorRequiredError struct {
	Identifier   string
	ContactPoint string // masked, e.g. "+1 *** ***42"
}

func (e *TwoFactorRequiredError) Error() string {
	if e.ContactPoint != "" {
		return fmt.Sprintf("two-factor verification required (code sent to %s, identifier %s)", e.ContactPoint, e.Identifier)
	}
	return fmt.Sprintf("two-factor verification required (identifier %s)", e.Identifier)
}

// CheckpointRequiredError means the platform demands a verification step
// that only a human in a browser can complete. The URL must reach the user.
type CheckpointRequiredError struct {
	URL string
}

func (e *CheckpointRequiredError) Error() string {
	return fmt.Sprintf("security checkpoint required, complete it in a browser: %s", e.URL)
}

// TransportError wraps a network or server failure during the login flow.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SealingError wraps a key-fetch or encryption failure. The caller decides
// whether to abort or fall back; sealing never falls back on its own.
type SealingError struct {
	Stage string // "fetch_keys" or "encrypt"
	Err   error
}

func (e *SealingError) Error() string {
	return fmt.Sprintf("credential sealing failed at %s: %v", e.Stage, e.Err)
}

func (e *SealingError) Unwrap() error { return e.Err }
