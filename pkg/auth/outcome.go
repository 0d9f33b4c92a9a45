package auth

import (
	"encoding/json"
)

// loginResponse is the union of fields the login and two-factor endpoints
// return across their outcomes
type loginResponse struct {
	Authenticated     bool   `json:"authenticated"`
	User              bool   `json:"user"`
	UserID            string `json:"userId"`
	Status            string `json:"status"`
	Message           string `json:"message"`
	ErrorType         string `json:"error_type"`
	TwoFactorRequired bool   `json:"two_factor_required"`
	TwoFactorInfo     *struct {
		Identifier      string `json:"two_factor_identifier"`
		ObfuscatedPhone string `json:"obfuscated_phone_number"`
		Username        string `json:"username"`
	} `json:"two_factor_info"`
	CheckpointURL string          `json:"checkpoint_url"`
	Challenge     json.RawMessage `json:"challenge"`
}

// checkpointLocation digs the challenge URL out of whichever field the
// server put it in
func (r *loginResponse) checkpointLocation() string {
	if r.CheckpointURL != "" {
		return r.CheckpointURL
	}
	var ch struct {
		URL     string `json:"url"`
		APIPath string `json:"api_path"`
	}
	if len(r.Challenge) > 0 && json.Unmarshal(r.Challenge, &ch) == nil {
		if ch.APIPath != "" {
			return ch.APIPath
		}
		return ch.URL
	}
	return ""
}

// outcome is the single classification of a login submission. Every path
// through the flow funnels into exactly one of these.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeBadCredentials
	outcomeTwoFactor
	outcomeCheckpoint
	outcomeFailed
)

// classify maps a login response to its outcome. Order matters: the
// checkpoint and two-factor signals arrive alongside authenticated=false,
// so they are checked before the credential verdict.
func classify(r *loginResponse) outcome {
	if r.TwoFactorRequired {
		return outcomeTwoFactor
	}
	if r.checkpointLocation() != "" || r.ErrorType == "checkpoint_challenge_required" {
		return outcomeCheckpoint
	}
	if r.Authenticated {
		return outcomeSuccess
	}
	// status "fail" is an endpoint-level refusal (throttle, malformed
	// request); a clean status with authenticated=false is the server's
	// verdict on the credentials themselves
	if r.Status == "fail" {
		return outcomeFailed
	}
	return outcomeBadCredentials
}
