package auth

import "instaapi/pkg/logger"

// State tracks the login flow through its phases. Transitions are linear
// up to Submitted, then fan out on the server's verdict.
type State int

const (
	StateNotStarted State = iota
	StateKeysFetched
	StateCredentialSealed
	StateSubmitted
	StateAuthenticated
	StateTwoFactorPending
	StateCheckpointPending
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateKeysFetched:
		return "keys_fetched"
	case StateCredentialSealed:
		return "credential_sealed"
	case StateSubmitted:
		return "submitted"
	case StateAuthenticated:
		return "authenticated"
	case StateTwoFactorPending:
		return "two_factor_pending"
	case StateCheckpointPending:
		return "checkpoint_pending"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// transition moves the controller state and logs the edge
func (c *Controller) transition(to State) {
	logger.LogStateTransition(c.state.String(), to.String())
	c.state = to
}
