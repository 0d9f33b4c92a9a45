package session

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Session holds the cookies and identifiers that make up an authenticated
// web session. SessionID and CSRFToken are the load-bearing fields; the
// rest make the cookie header look like a real browser's.
type Session struct {
	SessionID   string `json:"session_id"`
	CSRFToken   string `json:"csrf_token"`
	AccountID   string `json:"account_id"`
	MID         string `json:"mid"`
	SecondaryID string `json:"secondary_id"`
	Datr        string `json:"datr"`
	UserAgent   string `json:"user_agent"`
	SavedAt     string `json:"saved_at"`
}

// New builds a session stamped with the current time
func New(sessionID, csrfToken, accountID string) *Session {
	return &Session{
		SessionID: sessionID,
		CSRFToken: csrfToken,
		AccountID: accountID,
		SavedAt:   time.Now().UTC().Format(time.RFC3339),
	}
}

// IsComplete reports whether the session carries everything needed to
// authenticate a request
func (s *Session) IsComplete() bool {
	return s.SessionID != "" && s.CSRFToken != "" && s.AccountID != ""
}

// Jazoest derives the jazoest form token from a CSRF token: the digit 2
// followed by the decimal sum of the token's byte values.
func Jazoest(csrfToken string) string {
	sum := 0
	for _, b := range []byte(csrfToken) {
		sum += int(b)
	}
	return fmt.Sprintf("2%d", sum)
}

// CookieHeader renders the session as a Cookie header value in the order
// browsers emit it. Empty fields are skipped.
func (s *Session) CookieHeader() string {
	pairs := []struct {
		name  string
		value string
	}{
		{"ig_did", s.SecondaryID},
		{"mid", s.MID},
		{"ig_nrcb", "1"},
		{"datr", s.Datr},
		{"dpr", "2"},
		{"ds_user_id", s.AccountID},
		{"ps_l", "1"},
		{"ps_n", "1"},
		{"csrftoken", s.CSRFToken},
		{"sessionid", s.SessionID},
		{"rur", "ASH"},
		{"wd", "1920x1080"},
	}

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		parts = append(parts, p.name+"="+p.value)
	}
	return strings.Join(parts, "; ")
}

// Cookies returns the session as cookies suitable for a jar
func (s *Session) Cookies() []*http.Cookie {
	var cookies []*http.Cookie
	add := func(name, value string) {
		if value != "" {
			cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
		}
	}
	add("ig_did", s.SecondaryID)
	add("mid", s.MID)
	add("datr", s.Datr)
	add("ds_user_id", s.AccountID)
	add("csrftoken", s.CSRFToken)
	add("sessionid", s.SessionID)
	return cookies
}
