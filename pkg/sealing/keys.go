package sealing

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	errs "instaapi/pkg/errors"
	"instaapi/pkg/logger"
	"instaapi/pkg/transport"
)

// Keys are the password encryption parameters published by the server.
// They rotate server-side, so cached copies must be invalidated when a
// submission is rejected.
type Keys struct {
	KeyID     int
	PublicKey string // 64 hex chars, a curve25519 public key
	Version   int
}

// Validate checks the keys are usable for sealing
func (k *Keys) Validate() error {
	if k.KeyID <= 0 {
		return fmt.Errorf("invalid key id %d", k.KeyID)
	}
	if len(k.PublicKey) != 64 {
		return fmt.Errorf("public key must be 64 hex chars, got %d", len(k.PublicKey))
	}
	if _, err := hex.DecodeString(k.PublicKey); err != nil {
		return fmt.Errorf("public key is not hex: %w", err)
	}
	if k.Version <= 0 {
		return fmt.Errorf("invalid key version %d", k.Version)
	}
	return nil
}

var (
	keyIDRe     = regexp.MustCompile(`"key_id"\s*:\s*"?(\d+)"?`)
	publicKeyRe = regexp.MustCompile(`"public_key"\s*:\s*"([a-f0-9]{64})"`)
	versionRe   = regexp.MustCompile(`"version"\s*:\s*"?(\d+)"?`)
)

// Fetcher discovers encryption keys by probing the endpoints that publish
// them, in order of reliability
type Fetcher struct {
	client *transport.Client
	logger logger.Logger

	loginPageURL  string
	sharedDataURL string
}

// NewFetcher creates a key fetcher on top of the shared HTTP client
func NewFetcher(client *transport.Client) *Fetcher {
	return NewFetcherWithBaseURL(client, transport.WebBaseURL)
}

// NewFetcherWithBaseURL creates a key fetcher against a non-production base
func NewFetcherWithBaseURL(client *transport.Client, base string) *Fetcher {
	return &Fetcher{
		client:        client,
		logger:        logger.GetLogger(),
		loginPageURL:  base + "/accounts/login/",
		sharedDataURL: base + "/data/shared_data/",
	}
}

// Fetch walks the discovery strategies until one yields a valid key set
func (f *Fetcher) Fetch(ctx context.Context) (*Keys, error) {
	type strategy struct {
		name string
		fn   func(context.Context) (*Keys, error)
	}
	strategies := []strategy{
		{"shared_data", f.fromSharedData},
		{"login_page", f.fromLoginPage},
	}

	var lastErr error
	for _, s := range strategies {
		keys, err := s.fn(ctx)
		found := err == nil && keys != nil
		logger.LogStrategy("encryption_keys", s.name, found)
		if found {
			return keys, nil
		}
		if err != nil {
			lastErr = err
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no strategy produced encryption keys")
	}
	return nil, &errs.SealingError{Stage: "fetch_keys", Err: lastErr}
}

// fromLoginPage scrapes the login page HTML and its response headers
func (f *Fetcher) fromLoginPage(ctx context.Context) (*Keys, error) {
	resp, err := f.client.Get(ctx, f.loginPageURL, nil)
	if err != nil {
		return nil, err
	}
	if err := transport.CheckStatus(resp, f.loginPageURL); err != nil {
		return nil, err
	}

	if keys := keysFromBody(resp.Body); keys != nil {
		return keys, nil
	}
	if keys := keysFromHeaders(resp.Header); keys != nil {
		return keys, nil
	}
	return nil, fmt.Errorf("login page carried no encryption keys")
}

// fromSharedData queries the shared data endpoint
func (f *Fetcher) fromSharedData(ctx context.Context) (*Keys, error) {
	var payload struct {
		Encryption struct {
			KeyID     string `json:"key_id"`
			PublicKey string `json:"public_key"`
			Version   string `json:"version"`
		} `json:"encryption"`
	}
	if err := f.client.GetJSON(ctx, f.sharedDataURL, nil, &payload); err != nil {
		return nil, err
	}

	keyID, err := strconv.Atoi(payload.Encryption.KeyID)
	if err != nil {
		return nil, fmt.Errorf("shared data key_id %q is not numeric", payload.Encryption.KeyID)
	}
	version, err := strconv.Atoi(payload.Encryption.Version)
	if err != nil {
		return nil, fmt.Errorf("shared data version %q is not numeric", payload.Encryption.Version)
	}

	keys := &Keys{KeyID: keyID, PublicKey: payload.Encryption.PublicKey, Version: version}
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	return keys, nil
}

// keysFromBody extracts keys embedded in page HTML, either as raw JSON
// config or inside the _sharedData script blob
func keysFromBody(body []byte) *Keys {
	idMatch := keyIDRe.FindSubmatch(body)
	pkMatch := publicKeyRe.FindSubmatch(body)
	if idMatch == nil || pkMatch == nil {
		return nil
	}

	keyID, err := strconv.Atoi(string(idMatch[1]))
	if err != nil {
		return nil
	}
	version := 10
	if vMatch := versionRe.FindSubmatch(body); vMatch != nil {
		if v, err := strconv.Atoi(string(vMatch[1])); err == nil {
			version = v
		}
	}

	keys := &Keys{KeyID: keyID, PublicKey: string(pkMatch[1]), Version: version}
	if keys.Validate() != nil {
		return nil
	}
	return keys
}

// keysFromHeaders extracts keys from the password encryption headers some
// responses attach
func keysFromHeaders(h http.Header) *Keys {
	keyIDStr := h.Get("ig-set-password-encryption-key-id")
	pubKey := h.Get("ig-set-password-encryption-pub-key")
	versionStr := h.Get("ig-set-password-encryption-web-key-version")
	if keyIDStr == "" || pubKey == "" {
		return nil
	}

	keyID, err := strconv.Atoi(keyIDStr)
	if err != nil {
		return nil
	}
	version := 10
	if v, err := strconv.Atoi(versionStr); err == nil && versionStr != "" {
		version = v
	}

	keys := &Keys{KeyID: keyID, PublicKey: pubKey, Version: version}
	if keys.Validate() != nil {
		return nil
	}
	return keys
}

// KeyCache memoizes fetched keys until the TTL passes or a caller
// invalidates them after a rejected submission
type KeyCache struct {
	fetch func(context.Context) (*Keys, error)
	ttl   time.Duration

	mu        sync.Mutex
	keys      *Keys
	fetchedAt time.Time
}

// NewKeyCache wraps a fetch function with caching
func NewKeyCache(fetch func(context.Context) (*Keys, error), ttl time.Duration) *KeyCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &KeyCache{fetch: fetch, ttl: ttl}
}

// Get returns cached keys, fetching when empty or stale
func (c *KeyCache) Get(ctx context.Context) (*Keys, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.keys != nil && time.Since(c.fetchedAt) < c.ttl {
		return c.keys, nil
	}

	keys, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.keys = keys
	c.fetchedAt = time.Now()
	return keys, nil
}

// Invalidate drops the cached keys so the next Get refetches
func (c *KeyCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = nil
}
