package challenge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instaapi/pkg/transport"
)

func newResolver(t *testing.T, provider CodeProvider, base string) *Resolver {
	t.Helper()
	c, err := transport.NewClient(transport.Options{})
	require.NoError(t, err)
	r := NewResolver(c, provider)
	r.base = base
	return r
}

func TestResolveEmailChallenge(t *testing.T) {
	var submittedCode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"step_name":"verify_email","step_data":{"email":"a***@b.com"}}`))
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			submittedCode = r.PostFormValue("security_code")
			w.Write([]byte(`{"status":"ok","logged_in_user":{"pk":42}}`))
		}
	}))
	defer srv.Close()

	var sawInfo *Info
	provider := CodeFunc(func(ctx context.Context, info *Info) (string, error) {
		sawInfo = info
		return "123456", nil
	})

	r := newResolver(t, provider, srv.URL)
	res, err := r.Resolve(context.Background(), srv.URL+"/challenge/1/x/")
	require.NoError(t, err)

	assert.True(t, res.Resolved)
	assert.Equal(t, KindEmail, res.Kind)
	assert.Equal(t, "123456", submittedCode)
	require.NotNil(t, sawInfo)
	assert.Equal(t, "a***@b.com", sawInfo.StepData.Email)
}

func TestResolveSelectsMethodFirst(t *testing.T) {
	var choices []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"step_name":"select_verify_method","step_data":{"phone_number":"+1234"}}`))
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			if c := r.PostFormValue("choice"); c != "" {
				choices = append(choices, c)
				w.Write([]byte(`{"status":"ok","step_name":"verify_sms_code","step_data":{"phone_number":"+1234"}}`))
				return
			}
			w.Write([]byte(`{"status":"ok","logged_in_user":{"pk":42}}`))
		}
	}))
	defer srv.Close()

	provider := CodeFunc(func(ctx context.Context, info *Info) (string, error) {
		return "654321", nil
	})

	r := newResolver(t, provider, srv.URL)
	res, err := r.Resolve(context.Background(), srv.URL+"/challenge/1/x/")
	require.NoError(t, err)

	assert.True(t, res.Resolved)
	assert.Equal(t, KindSMS, res.Kind)
	// SMS maps to choice 0
	assert.Equal(t, []string{"0"}, choices)
}

func TestResolveNoProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"step_name":"verify_email","step_data":{"email":"a***@b.com"}}`))
	}))
	defer srv.Close()

	r := newResolver(t, nil, srv.URL)
	res, err := r.Resolve(context.Background(), srv.URL+"/challenge/1/x/")
	require.NoError(t, err)

	assert.False(t, res.Resolved)
	assert.Equal(t, KindEmail, res.Kind)
	assert.Contains(t, res.Message, "provider")
}

func TestResolveNoProviderSendsNothing(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		w.Write([]byte(`{"step_name":"select_verify_method","step_data":{"phone_number":"+1234"}}`))
	}))
	defer srv.Close()

	r := newResolver(t, nil, srv.URL)
	res, err := r.Resolve(context.Background(), srv.URL+"/challenge/1/x/")
	require.NoError(t, err)

	assert.False(t, res.Resolved)
	assert.Contains(t, res.Message, "provider")
	// method selection must not run: that would ask the server to send a
	// code nothing here can consume
	assert.Equal(t, 0, posts)
}

func TestResolveCodeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"step_name":"verify_email"}`))
		case http.MethodPost:
			w.Write([]byte(`{"status":"fail","message":"Please check the code"}`))
		}
	}))
	defer srv.Close()

	provider := CodeFunc(func(ctx context.Context, info *Info) (string, error) {
		return "000000", nil
	})

	r := newResolver(t, provider, srv.URL)
	res, err := r.Resolve(context.Background(), srv.URL+"/challenge/1/x/")
	require.NoError(t, err)

	assert.False(t, res.Resolved)
	assert.Equal(t, "Please check the code", res.Message)
}

func TestResolveConsent(t *testing.T) {
	var gotChoice string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"step_name":"consent_required"}`))
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			gotChoice = r.PostFormValue("choice")
			w.Write([]byte(`{"status":"ok"}`))
		}
	}))
	defer srv.Close()

	r := newResolver(t, nil, srv.URL)
	res, err := r.Resolve(context.Background(), srv.URL+"/challenge/1/x/")
	require.NoError(t, err)

	assert.True(t, res.Resolved)
	assert.Equal(t, KindConsent, res.Kind)
	assert.Equal(t, "0", gotChoice)
}

func TestResolveCaptcha(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"step_name":"captcha_challenge"}`))
	}))
	defer srv.Close()

	r := newResolver(t, nil, srv.URL)
	res, err := r.Resolve(context.Background(), srv.URL+"/challenge/1/x/")
	require.NoError(t, err)

	assert.False(t, res.Resolved)
	assert.Equal(t, KindCaptcha, res.Kind)
}

func TestResolveUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"step_name":"something_new"}`))
	}))
	defer srv.Close()

	r := newResolver(t, nil, srv.URL)
	res, err := r.Resolve(context.Background(), srv.URL+"/challenge/1/x/")
	require.NoError(t, err)

	assert.False(t, res.Resolved)
	assert.Equal(t, KindUnknown, res.Kind)
}
