package auth

import (
	"context"
	"net/http"
	"regexp"

	"instaapi/pkg/logger"
	"instaapi/pkg/transport"
)

var csrfBodyRe = regexp.MustCompile(`"csrf_token"\s*:\s*"([^"]+)"`)

// fetchCSRF loads the login page and extracts a CSRF token, trying the
// cookie jar first, then the response headers, then the page body. A
// missing token degrades the flow rather than aborting it: some login
// variants tolerate an absent token.
func (c *Controller) fetchCSRF(ctx context.Context) (string, error) {
	resp, err := c.client.Get(ctx, c.urls.loginPage, nil)
	if err != nil {
		return "", err
	}
	if err := transport.CheckStatus(resp, c.urls.loginPage); err != nil {
		return "", err
	}

	type strategy struct {
		name string
		fn   func() string
	}
	strategies := []strategy{
		{"cookie", func() string { return c.client.CookieValue(c.urls.base, "csrftoken") }},
		{"header", func() string { return csrfFromHeaders(resp.Header) }},
		{"body", func() string { return csrfFromBody(resp.Body) }},
	}

	for _, s := range strategies {
		token := s.fn()
		logger.LogStrategy("csrf", s.name, token != "")
		if token != "" {
			return token, nil
		}
	}

	c.logger.Warn("no CSRF token in login page response, proceeding without one")
	return "", nil
}

func csrfFromHeaders(h http.Header) string {
	return h.Get("x-csrftoken")
}

func csrfFromBody(body []byte) string {
	if m := csrfBodyRe.FindSubmatch(body); m != nil {
		return string(m[1])
	}
	return ""
}
