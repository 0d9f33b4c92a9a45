package auth

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"

	"instaapi/pkg/challenge"
	errs "instaapi/pkg/errors"
	"instaapi/pkg/logger"
	"instaapi/pkg/sealing"
	"instaapi/pkg/session"
	"instaapi/pkg/transport"
)

// testServer wires a fake login backend: the login page always serves
// encryption keys and a CSRF cookie, the rest is per-test
type testServer struct {
	mux *http.ServeMux
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	pub, _, err := box.GenerateKey(crand.Reader)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/login/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "csrf-initial", Path: "/"})
		fmt.Fprintf(w, `<script>{"key_id":"87","public_key":"%s","version":"10"}</script>`,
			hex.EncodeToString(pub[:]))
	})

	ts := &testServer{mux: mux, srv: httptest.NewServer(mux)}
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) controller(t *testing.T, cfg Config) *Controller {
	t.Helper()
	client, err := transport.NewClient(transport.Options{})
	require.NoError(t, err)

	cfg.Client = client
	cfg.Sealer = sealing.NewSealer(sealing.NewFetcherWithBaseURL(client, ts.srv.URL), time.Hour)
	cfg.BaseURL = ts.srv.URL

	c, err := NewController(cfg)
	require.NoError(t, err)
	return c
}

func TestLoginSuccess(t *testing.T) {
	ts := newTestServer(t)

	var gotForm map[string]string
	ts.mux.HandleFunc("/api/v1/web/accounts/login/ajax/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"username":     r.PostFormValue("username"),
			"enc_password": r.PostFormValue("enc_password"),
			"csrf_header":  r.Header.Get("x-csrftoken"),
			"app_id":       r.Header.Get("x-ig-app-id"),
		}
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "abc", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "xyz", Path: "/"})
		w.Write([]byte(`{"authenticated":true,"userId":"42","status":"ok"}`))
	})

	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	c := ts.controller(t, Config{Store: store})

	s, err := c.Login(context.Background(), "alice", "hunter2", LoginOptions{})
	require.NoError(t, err)

	assert.Equal(t, "abc", s.SessionID)
	assert.Equal(t, "xyz", s.CSRFToken)
	assert.Equal(t, "42", s.AccountID)
	assert.Equal(t, StateAuthenticated, c.State())

	assert.Equal(t, "alice", gotForm["username"])
	assert.True(t, strings.HasPrefix(gotForm["enc_password"], "#PWD_INSTAGRAM_BROWSER:10:"), gotForm["enc_password"])
	assert.Equal(t, "csrf-initial", gotForm["csrf_header"])
	assert.Equal(t, transport.WebAppID, gotForm["app_id"])

	// session was persisted
	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", saved.SessionID)
}

func TestLoginProceedsWithoutCSRFToken(t *testing.T) {
	pub, _, err := box.GenerateKey(crand.Reader)
	require.NoError(t, err)

	mux := http.NewServeMux()
	// login page serves keys but no CSRF token anywhere
	mux.HandleFunc("/accounts/login/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<script>{"key_id":"87","public_key":"%s","version":"10"}</script>`,
			hex.EncodeToString(pub[:]))
	})
	var gotCSRF string
	mux.HandleFunc("/api/v1/web/accounts/login/ajax/", func(w http.ResponseWriter, r *http.Request) {
		gotCSRF = r.Header.Get("x-csrftoken")
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "abc", Path: "/"})
		w.Write([]byte(`{"authenticated":true,"userId":"42","status":"ok"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ts := &testServer{mux: mux, srv: srv}
	c := ts.controller(t, Config{})

	s, err := c.Login(context.Background(), "alice", "hunter2", LoginOptions{})
	require.NoError(t, err)
	assert.Equal(t, "abc", s.SessionID)
	assert.Empty(t, gotCSRF)
}

func TestLoginTwoFactorRequired(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/api/v1/web/accounts/login/ajax/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"two_factor_required":true,"two_factor_info":{"two_factor_identifier":"id1","obfuscated_phone_number":"+1 *** 42"},"status":"fail"}`))
	})

	c := ts.controller(t, Config{})

	_, err := c.Login(context.Background(), "alice", "hunter2", LoginOptions{})
	var tfa *errs.TwoFactorRequiredError
	require.ErrorAs(t, err, &tfa)
	assert.Equal(t, "id1", tfa.Identifier)
	assert.Equal(t, "+1 *** 42", tfa.ContactPoint)
	assert.Equal(t, StateTwoFactorPending, c.State())
}

func TestLoginTwoFactorWithCode(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/api/v1/web/accounts/login/ajax/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"two_factor_required":true,"two_factor_info":{"two_factor_identifier":"id1"},"status":"fail"}`))
	})

	var gotCode, gotIdentifier string
	ts.mux.HandleFunc("/api/v1/web/accounts/login/ajax/two_factor/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotCode = r.PostFormValue("verificationCode")
		gotIdentifier = r.PostFormValue("identifier")
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "tfa-session", Path: "/"})
		w.Write([]byte(`{"authenticated":true,"userId":"42","status":"ok"}`))
	})

	c := ts.controller(t, Config{})

	s, err := c.Login(context.Background(), "alice", "hunter2", LoginOptions{VerificationCode: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "tfa-session", s.SessionID)
	assert.Equal(t, "123456", gotCode)
	assert.Equal(t, "id1", gotIdentifier)
	assert.Equal(t, StateAuthenticated, c.State())
}

func TestLoginTwoFactorWithProvider(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/api/v1/web/accounts/login/ajax/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"two_factor_required":true,"two_factor_info":{"two_factor_identifier":"id1","obfuscated_phone_number":"+1 *** 42"},"status":"fail"}`))
	})
	ts.mux.HandleFunc("/api/v1/web/accounts/login/ajax/two_factor/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "prov-session", Path: "/"})
		w.Write([]byte(`{"authenticated":true,"userId":"42","status":"ok"}`))
	})

	var sawContact string
	provider := challenge.CodeFunc(func(ctx context.Context, info *challenge.Info) (string, error) {
		sawContact = info.StepData.ContactPoint
		return "654321", nil
	})

	c := ts.controller(t, Config{CodeProvider: provider})

	s, err := c.Login(context.Background(), "alice", "hunter2", LoginOptions{})
	require.NoError(t, err)
	assert.Equal(t, "prov-session", s.SessionID)
	assert.Equal(t, "+1 *** 42", sawContact)
}

func TestLoginCheckpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/api/v1/web/accounts/login/ajax/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"checkpoint_required","checkpoint_url":"/challenge/123/abc/","status":"fail"}`))
	})

	c := ts.controller(t, Config{})

	_, err := c.Login(context.Background(), "alice", "hunter2", LoginOptions{})
	var cp *errs.CheckpointRequiredError
	require.ErrorAs(t, err, &cp)
	assert.Equal(t, "https://i.instagram.com/api/v1/challenge/123/abc/", cp.URL)
	assert.Equal(t, StateCheckpointPending, c.State())
}

func TestLoginBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/api/v1/web/accounts/login/ajax/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"authenticated":false,"user":true,"status":"ok"}`))
	})

	c := ts.controller(t, Config{})

	_, err := c.Login(context.Background(), "alice", "wrong", LoginOptions{})
	var credErr *errs.CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, "alice", credErr.Username)
	assert.Equal(t, StateFailed, c.State())
}

func TestLoginInvalidUsername(t *testing.T) {
	ts := newTestServer(t)
	c := ts.controller(t, Config{})

	_, err := c.Login(context.Background(), "not a user!", "pw", LoginOptions{})
	var credErr *errs.CredentialError
	require.ErrorAs(t, err, &credErr)
}

func TestLoginEndpointRefusal(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/api/v1/web/accounts/login/ajax/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"fail","message":"Please wait a few minutes before you try again."}`))
	})

	c := ts.controller(t, Config{})

	_, err := c.Login(context.Background(), "alice", "hunter2", LoginOptions{})
	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeAuth, apiErr.Type)
	assert.Contains(t, apiErr.Message, "wait a few minutes")
}

func TestValidateSession(t *testing.T) {
	ts := newTestServer(t)

	authed := true
	ts.mux.HandleFunc("/accounts/current_user/", func(w http.ResponseWriter, r *http.Request) {
		if authed {
			w.Write([]byte(`{"status":"ok","form_data":{"username":"alice"}}`))
			return
		}
		w.Write([]byte(`<html>please log in</html>`))
	})

	c := ts.controller(t, Config{})

	assert.True(t, c.ValidateSession(context.Background()))

	authed = false
	assert.False(t, c.ValidateSession(context.Background()))
}

func TestValidateSessionNeverRaises(t *testing.T) {
	ts := newTestServer(t)
	c := ts.controller(t, Config{})
	// no probe handler registered: the mux answers 404
	assert.False(t, c.ValidateSession(context.Background()))
}

func TestLogoutClearsLocalState(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/accounts/logout/ajax/", func(w http.ResponseWriter, r *http.Request) {
		// remote end misbehaving must not keep the local session alive
		w.WriteHeader(http.StatusBadRequest)
	})

	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.Save(session.New("sid", "csrf", "42")))

	c := ts.controller(t, Config{Store: store})
	require.NoError(t, c.RestoreSession(&session.Session{SessionID: "sid", CSRFToken: "csrf", AccountID: "42"}))

	require.NoError(t, c.Logout(context.Background()))

	_, err := store.Load()
	assert.True(t, errors.Is(err, session.ErrNoSession))
	assert.Empty(t, c.client.CookieValue(ts.srv.URL, "sessionid"))
}

func TestRestoreAndLoadSession(t *testing.T) {
	ts := newTestServer(t)

	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	saved := session.New("sid", "csrf", "42")
	saved.UserAgent = "TestAgent/1.0"
	require.NoError(t, store.Save(saved))

	c := ts.controller(t, Config{Store: store})

	s, err := c.LoadSession()
	require.NoError(t, err)
	assert.Equal(t, "sid", s.SessionID)
	assert.Equal(t, "sid", c.client.CookieValue(ts.srv.URL, "sessionid"))
	assert.Equal(t, "csrf", c.client.CookieValue(ts.srv.URL, "csrftoken"))
}

func TestRestoreRejectsIncompleteSession(t *testing.T) {
	ts := newTestServer(t)
	c := ts.controller(t, Config{})

	assert.Error(t, c.RestoreSession(nil))
	assert.Error(t, c.RestoreSession(&session.Session{SessionID: "only"}))
}

func TestLoginLogsCompletion(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("/api/v1/web/accounts/login/ajax/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "abc", Path: "/"})
		w.Write([]byte(`{"authenticated":true,"userId":"42","status":"ok"}`))
	})

	log := logger.NewTestLogger()
	c := ts.controller(t, Config{Logger: log})

	_, err := c.Login(context.Background(), "alice", "hunter2", LoginOptions{})
	require.NoError(t, err)

	require.True(t, log.HasMessage("login complete"))
	infos := log.GetMessagesByLevel("INFO")
	require.NotEmpty(t, infos)
	assert.Equal(t, "42", infos[len(infos)-1].Fields["account_id"])
}

func TestNewControllerRequiresCollaborators(t *testing.T) {
	_, err := NewController(Config{})
	assert.Error(t, err)

	client, err := transport.NewClient(transport.Options{})
	require.NoError(t, err)
	_, err = NewController(Config{Client: client})
	assert.Error(t, err)
}
