package challenge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	errs "instaapi/pkg/errors"
	"instaapi/pkg/logger"
	"instaapi/pkg/transport"
)

// CodeProvider supplies the verification code a challenge asked for. The
// info argument tells the provider where the code was sent.
type CodeProvider interface {
	Code(ctx context.Context, info *Info) (string, error)
}

// CodeFunc adapts a function to the CodeProvider interface
type CodeFunc func(ctx context.Context, info *Info) (string, error)

// Code implements CodeProvider
func (f CodeFunc) Code(ctx context.Context, info *Info) (string, error) {
	return f(ctx, info)
}

// Result is the outcome of a resolution attempt. A challenge the resolver
// cannot handle is a Result, not an error; errors are reserved for
// transport and provider failures.
type Result struct {
	Resolved bool
	Kind     Kind
	Message  string
}

// Resolver walks a challenge to completion: consent screens are accepted,
// verification methods selected, and codes submitted.
type Resolver struct {
	client   *transport.Client
	provider CodeProvider
	base     string
	logger   logger.Logger
}

// NewResolver creates a resolver. provider may be nil, in which case
// code-based challenges fail fast instead of hanging.
func NewResolver(client *transport.Client, provider CodeProvider) *Resolver {
	return &Resolver{
		client:   client,
		provider: provider,
		base:     apiBase,
		logger:   logger.GetLogger(),
	}
}

// serverReply is the common shape of challenge step responses
type serverReply struct {
	Status       string          `json:"status"`
	Message      string          `json:"message"`
	LoggedInUser json.RawMessage `json:"logged_in_user"`
	Action       string          `json:"action"`
}

func (r *serverReply) success() bool {
	return r.Status == "ok" || len(r.LoggedInUser) > 0
}

// Resolve fetches the challenge state and drives it to completion
func (r *Resolver) Resolve(ctx context.Context, challengeURL string) (*Result, error) {
	u := normalizeAgainst(challengeURL, r.base)
	if u == "" {
		return nil, fmt.Errorf("empty challenge URL")
	}

	resp, err := r.client.Get(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	info := ParseState(resp.Body)
	kind := DetectKind(info)

	r.logger.InfoWithFields("challenge detected", map[string]interface{}{
		"kind":      string(kind),
		"step_name": info.StepName,
	})

	switch kind {
	case KindConsent:
		return r.acceptConsent(ctx, u, info)
	case KindEmail, KindSMS:
		return r.resolveWithCode(ctx, u, info, kind)
	case KindCaptcha:
		return &Result{Kind: kind, Message: "captcha challenges require a browser"}, nil
	default:
		return &Result{Kind: kind, Message: fmt.Sprintf("unrecognized challenge step %q", info.StepName)}, nil
	}
}

// acceptConsent answers consent screens with the accept choice. Consent
// flows can chain several screens, so it loops a bounded number of times.
func (r *Resolver) acceptConsent(ctx context.Context, u string, info *Info) (*Result, error) {
	for i := 0; i < 3; i++ {
		form := url.Values{}
		form.Set("choice", "0")

		reply, body, err := r.post(ctx, u, form)
		if err != nil {
			return nil, err
		}
		if reply.success() {
			return &Result{Resolved: true, Kind: KindConsent}, nil
		}

		next := ParseState(body)
		if DetectKind(next) != KindConsent {
			return &Result{Kind: KindConsent, Message: "consent flow did not complete"}, nil
		}
	}
	return &Result{Kind: KindConsent, Message: "consent flow did not complete"}, nil
}

// resolveWithCode drives email and SMS verification: pick the method if
// the server is still asking, then submit the provider's code. Without a
// provider it bails before any request, so the server never sends a code
// nobody can consume.
func (r *Resolver) resolveWithCode(ctx context.Context, u string, info *Info, kind Kind) (*Result, error) {
	if r.provider == nil {
		return &Result{Kind: kind, Message: "no verification code provider configured"}, nil
	}

	if info.StepName == "select_verify_method" {
		choice := "0" // SMS
		if kind == KindEmail {
			choice = "1"
		}
		form := url.Values{}
		form.Set("choice", choice)

		reply, body, err := r.post(ctx, u, form)
		if err != nil {
			return nil, err
		}
		// status ok here only means the code was sent; a logged_in_user
		// payload is the actual completion signal
		if len(reply.LoggedInUser) > 0 {
			return &Result{Resolved: true, Kind: kind}, nil
		}
		info = ParseState(body)
	}

	code, err := r.provider.Code(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("code provider failed: %w", err)
	}

	form := url.Values{}
	form.Set("security_code", code)

	reply, _, err := r.post(ctx, u, form)
	if err != nil {
		return nil, err
	}
	if reply.success() {
		return &Result{Resolved: true, Kind: kind}, nil
	}

	msg := reply.Message
	if msg == "" {
		msg = "verification code rejected"
	}
	return &Result{Kind: kind, Message: msg}, nil
}

// post submits a challenge step form and decodes the reply
func (r *Resolver) post(ctx context.Context, u string, form url.Values) (*serverReply, []byte, error) {
	resp, err := r.client.PostForm(ctx, u, form, nil)
	if err != nil {
		return nil, nil, err
	}

	var reply serverReply
	if err := json.Unmarshal(resp.Body, &reply); err != nil {
		return nil, nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("challenge reply is not JSON: %v", err),
			Code:    resp.StatusCode,
		}
	}
	return &reply, resp.Body, nil
}
