package auth

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"instaapi/pkg/challenge"
	"instaapi/pkg/device"
	errs "instaapi/pkg/errors"
	"instaapi/pkg/logger"
	"instaapi/pkg/sealing"
	"instaapi/pkg/session"
	"instaapi/pkg/transport"
)

// urlset holds the endpoints the controller talks to, derived from one
// base so tests can point the whole flow at a local server
type urlset struct {
	base      string
	loginPage string
	loginAjax string
	twoFactor string
	logout    string
	probe     string
}

func urlsFor(base string) urlset {
	return urlset{
		base:      base,
		loginPage: base + "/accounts/login/",
		loginAjax: base + "/api/v1/web/accounts/login/ajax/",
		twoFactor: base + "/api/v1/web/accounts/login/ajax/two_factor/",
		logout:    base + "/accounts/logout/ajax/",
		probe:     base + "/accounts/current_user/?__a=1",
	}
}

// Config assembles a Controller from its collaborators
type Config struct {
	// Client is the shared HTTP layer. Required.
	Client *transport.Client
	// Sealer encrypts passwords before submission. Required.
	Sealer *sealing.Sealer
	// Store persists sessions. Optional; without it sessions only live
	// in memory.
	Store *session.Store
	// Device stamps sessions with the generated identity's user agent.
	// Optional.
	Device *device.Identity
	// CodeProvider supplies two-factor codes when the server asks for
	// one mid-login. Optional.
	CodeProvider challenge.CodeProvider
	// BaseURL overrides the production endpoints
	BaseURL string
	// Logger defaults to the global logger
	Logger logger.Logger
}

// Controller drives the web login flow end to end: CSRF discovery,
// credential sealing, submission, and outcome handling.
type Controller struct {
	client   *transport.Client
	sealer   *sealing.Sealer
	store    *session.Store
	device   *device.Identity
	provider challenge.CodeProvider
	urls     urlset
	logger   logger.Logger

	mu    sync.Mutex
	state State
}

// NewController validates the config and builds a controller
func NewController(cfg Config) (*Controller, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("auth controller requires an HTTP client")
	}
	if cfg.Sealer == nil {
		return nil, fmt.Errorf("auth controller requires a credential sealer")
	}

	base := cfg.BaseURL
	if base == "" {
		base = transport.WebBaseURL
	}
	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &Controller{
		client:   cfg.Client,
		sealer:   cfg.Sealer,
		store:    cfg.Store,
		device:   cfg.Device,
		provider: cfg.CodeProvider,
		urls:     urlsFor(base),
		logger:   log,
		state:    StateNotStarted,
	}, nil
}

// State returns the current flow state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LoginOptions tweaks a single login attempt
type LoginOptions struct {
	// VerificationCode is a pre-supplied two-factor code, used before
	// asking the configured CodeProvider
	VerificationCode string
}

// ajaxHeaders are the request headers the web login endpoints expect
func (c *Controller) ajaxHeaders(csrf string) map[string]string {
	return map[string]string{
		"x-csrftoken":      csrf,
		"x-requested-with": "XMLHttpRequest",
		"x-ig-app-id":      transport.WebAppID,
		"referer":          c.urls.loginPage,
	}
}

// Login runs the full flow for one credential pair. The returned error is
// typed: CredentialError, TwoFactorRequiredError, CheckpointRequiredError,
// SealingError, or TransportError.
func (c *Controller) Login(ctx context.Context, username, password string, opts LoginOptions) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateNotStarted
	username = transport.SanitizeUsername(username)
	if !transport.IsValidUsername(username) {
		c.transition(StateFailed)
		return nil, &errs.CredentialError{Username: username, Message: "invalid username"}
	}

	csrf, err := c.fetchCSRF(ctx)
	if err != nil {
		c.transition(StateFailed)
		return nil, err
	}
	c.transition(StateKeysFetched)

	sealed, err := c.sealer.Seal(ctx, password)
	if err != nil {
		c.transition(StateFailed)
		return nil, err
	}
	c.transition(StateCredentialSealed)

	form := url.Values{}
	form.Set("username", username)
	form.Set("enc_password", sealed.Value)
	form.Set("queryParams", "{}")
	form.Set("optIntoOneTap", "false")
	form.Set("trustedDeviceRecords", "{}")

	resp, err := c.client.PostForm(ctx, c.urls.loginAjax, form, c.ajaxHeaders(csrf))
	if err != nil {
		c.transition(StateFailed)
		return nil, err
	}
	c.transition(StateSubmitted)

	var body loginResponse
	if err := resp.DecodeJSON(&body); err != nil {
		c.transition(StateFailed)
		return nil, err
	}

	switch classify(&body) {
	case outcomeSuccess:
		return c.finishLogin(&body, csrf)

	case outcomeTwoFactor:
		c.transition(StateTwoFactorPending)
		return c.handleTwoFactor(ctx, username, csrf, &body, opts)

	case outcomeCheckpoint:
		c.transition(StateCheckpointPending)
		return nil, &errs.CheckpointRequiredError{
			URL: challenge.NormalizeURL(body.checkpointLocation()),
		}

	case outcomeBadCredentials:
		c.transition(StateFailed)
		return nil, &errs.CredentialError{Username: username, Message: body.Message}

	default:
		c.transition(StateFailed)
		// a rejected sealed password can mean rotated keys
		c.sealer.Invalidate()
		msg := body.Message
		if msg == "" {
			msg = "login rejected"
		}
		return nil, &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: msg,
			Code:    resp.StatusCode,
		}
	}
}

// handleTwoFactor resolves a two-factor demand with the pre-supplied code
// or the configured provider, or surfaces it as a typed error
func (c *Controller) handleTwoFactor(ctx context.Context, username, csrf string, body *loginResponse, opts LoginOptions) (*session.Session, error) {
	identifier := ""
	contactPoint := ""
	if body.TwoFactorInfo != nil {
		identifier = body.TwoFactorInfo.Identifier
		contactPoint = body.TwoFactorInfo.ObfuscatedPhone
	}

	code := opts.VerificationCode
	if code == "" && c.provider != nil {
		var err error
		code, err = c.provider.Code(ctx, &challenge.Info{
			StepData: challenge.StepData{ContactPoint: contactPoint},
		})
		if err != nil {
			c.transition(StateFailed)
			return nil, fmt.Errorf("two-factor code provider failed: %w", err)
		}
	}
	if code == "" {
		return nil, &errs.TwoFactorRequiredError{
			Identifier:   identifier,
			ContactPoint: contactPoint,
		}
	}

	return c.submitTwoFactor(ctx, username, identifier, code, csrf)
}

// TwoFactor completes a login that previously returned
// TwoFactorRequiredError
func (c *Controller) TwoFactor(ctx context.Context, username, identifier, code string) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	csrf := c.client.CookieValue(c.urls.base, "csrftoken")
	if csrf == "" {
		var err error
		csrf, err = c.fetchCSRF(ctx)
		if err != nil {
			return nil, err
		}
	}
	return c.submitTwoFactor(ctx, username, identifier, code, csrf)
}

func (c *Controller) submitTwoFactor(ctx context.Context, username, identifier, code, csrf string) (*session.Session, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("verificationCode", code)
	form.Set("identifier", identifier)
	form.Set("queryParams", "{}")
	form.Set("trustedDeviceRecords", "{}")

	resp, err := c.client.PostForm(ctx, c.urls.twoFactor, form, c.ajaxHeaders(csrf))
	if err != nil {
		c.transition(StateFailed)
		return nil, err
	}

	var body loginResponse
	if err := resp.DecodeJSON(&body); err != nil {
		c.transition(StateFailed)
		return nil, err
	}

	if classify(&body) == outcomeSuccess {
		return c.finishLogin(&body, csrf)
	}

	c.transition(StateFailed)
	msg := body.Message
	if msg == "" {
		msg = "verification code rejected"
	}
	return nil, &errs.CredentialError{Username: username, Message: msg}
}

// finishLogin assembles a session from the response body and the cookies
// the server set during the flow
func (c *Controller) finishLogin(body *loginResponse, csrf string) (*session.Session, error) {
	sessionID := c.client.CookieValue(c.urls.base, "sessionid")
	if sessionID == "" {
		c.transition(StateFailed)
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "login succeeded but no session cookie was set",
		}
	}
	if fresh := c.client.CookieValue(c.urls.base, "csrftoken"); fresh != "" {
		csrf = fresh
	}

	s := session.New(sessionID, csrf, body.UserID)
	s.MID = c.client.CookieValue(c.urls.base, "mid")
	s.SecondaryID = c.client.CookieValue(c.urls.base, "ig_did")
	s.Datr = c.client.CookieValue(c.urls.base, "datr")
	if c.device != nil {
		s.UserAgent = c.device.UserAgent()
	}

	c.transition(StateAuthenticated)
	c.logger.InfoWithFields("login complete", map[string]interface{}{
		"account_id": s.AccountID,
	})

	if c.store != nil {
		if err := c.store.Save(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ValidateSession probes whether the current cookies still authenticate.
// It answers false on any failure; probing never raises.
func (c *Controller) ValidateSession(ctx context.Context) bool {
	resp, err := c.client.Get(ctx, c.urls.probe, nil)
	if err != nil {
		return false
	}
	if resp.StatusCode != 200 {
		return false
	}

	var payload struct {
		Status   string                 `json:"status"`
		FormData map[string]interface{} `json:"form_data"`
	}
	if err := resp.DecodeJSON(&payload); err != nil {
		// unauthenticated probes bounce to an HTML login page
		return false
	}
	return payload.Status == "ok" || len(payload.FormData) > 0
}

// RestoreSession installs a saved session's cookies into the HTTP client
func (c *Controller) RestoreSession(s *session.Session) error {
	if s == nil || !s.IsComplete() {
		return fmt.Errorf("cannot restore incomplete session")
	}
	for _, ck := range s.Cookies() {
		if err := c.client.SetCookie(c.urls.base, ck); err != nil {
			return err
		}
	}
	if s.UserAgent != "" {
		c.client.SetHeader("User-Agent", s.UserAgent)
	}
	return nil
}

// LoadSession loads the persisted session and installs it
func (c *Controller) LoadSession() (*session.Session, error) {
	if c.store == nil {
		return nil, session.ErrNoSession
	}
	s, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if err := c.RestoreSession(s); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveSession persists a session through the configured store
func (c *Controller) SaveSession(s *session.Session) error {
	if c.store == nil {
		return fmt.Errorf("no session store configured")
	}
	return c.store.Save(s)
}

// Logout tells the server to end the session, then clears local state.
// The remote call is best effort; local cookies and the saved session are
// always cleared.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	csrf := c.client.CookieValue(c.urls.base, "csrftoken")
	form := url.Values{}
	form.Set("one_tap_app_login", "0")

	if _, err := c.client.PostForm(ctx, c.urls.logout, form, c.ajaxHeaders(csrf)); err != nil {
		c.logger.WarnWithFields("remote logout failed, clearing local session anyway", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if err := c.client.ClearCookies(); err != nil {
		return err
	}
	if c.store != nil {
		if err := c.store.Clear(); err != nil {
			return err
		}
	}
	c.transition(StateNotStarted)
	return nil
}
