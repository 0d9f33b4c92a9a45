package sealing

import (
	"context"
	crand "crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"

	errs "instaapi/pkg/errors"
	"instaapi/pkg/transport"
)

func testKeys(t *testing.T) (*Keys, *[32]byte) {
	t.Helper()
	pub, priv, err := box.GenerateKey(crand.Reader)
	require.NoError(t, err)
	return &Keys{
		KeyID:     87,
		PublicKey: hex.EncodeToString(pub[:]),
		Version:   10,
	}, priv
}

func TestKeysValidate(t *testing.T) {
	keys, _ := testKeys(t)
	assert.NoError(t, keys.Validate())

	bad := *keys
	bad.KeyID = 0
	assert.Error(t, bad.Validate())

	bad = *keys
	bad.PublicKey = "abcd"
	assert.Error(t, bad.Validate())

	bad = *keys
	bad.PublicKey = strings.Repeat("z", 64)
	assert.Error(t, bad.Validate())

	bad = *keys
	bad.Version = 0
	assert.Error(t, bad.Validate())
}

func TestKeysFromBody(t *testing.T) {
	pk := strings.Repeat("ab", 32)

	quoted := []byte(fmt.Sprintf(`{"encryption":{"key_id":"87","public_key":"%s","version":"10"}}`, pk))
	keys := keysFromBody(quoted)
	require.NotNil(t, keys)
	assert.Equal(t, 87, keys.KeyID)
	assert.Equal(t, pk, keys.PublicKey)
	assert.Equal(t, 10, keys.Version)

	unquoted := []byte(fmt.Sprintf(`"key_id": 42, "public_key": "%s"`, pk))
	keys = keysFromBody(unquoted)
	require.NotNil(t, keys)
	assert.Equal(t, 42, keys.KeyID)
	// version defaults when absent
	assert.Equal(t, 10, keys.Version)

	assert.Nil(t, keysFromBody([]byte("<html>nothing here</html>")))
}

func TestKeysFromHeaders(t *testing.T) {
	pk := strings.Repeat("cd", 32)
	h := http.Header{}
	h.Set("ig-set-password-encryption-key-id", "99")
	h.Set("ig-set-password-encryption-pub-key", pk)
	h.Set("ig-set-password-encryption-web-key-version", "9")

	keys := keysFromHeaders(h)
	require.NotNil(t, keys)
	assert.Equal(t, 99, keys.KeyID)
	assert.Equal(t, pk, keys.PublicKey)
	assert.Equal(t, 9, keys.Version)

	assert.Nil(t, keysFromHeaders(http.Header{}))
}

func TestSealRoundtrip(t *testing.T) {
	keys, priv := testKeys(t)
	now := time.Unix(1700000000, 0)

	cred, err := Seal("hunter2", keys, now)
	require.NoError(t, err)
	assert.False(t, cred.Plaintext)
	assert.Equal(t, 87, cred.KeyID)
	assert.Equal(t, int64(1700000000), cred.Timestamp)

	parts := strings.SplitN(cred.Value, ":", 4)
	require.Len(t, parts, 4)
	assert.Equal(t, "#PWD_INSTAGRAM_BROWSER", parts[0])
	assert.Equal(t, "10", parts[1])
	assert.Equal(t, "1700000000", parts[2])

	payload, err := base64.StdEncoding.DecodeString(parts[3])
	require.NoError(t, err)
	require.Greater(t, len(payload), 8)
	assert.Equal(t, byte(1), payload[0])
	assert.Equal(t, byte(87), payload[1])
	assert.Equal(t, []byte{0, 0}, payload[2:4])
	// timestamp is packed as a big-endian uint32, not ASCII digits
	assert.Equal(t, []byte{0x65, 0x53, 0xf1, 0x00}, payload[4:8])

	var pub [32]byte
	raw, err := hex.DecodeString(keys.PublicKey)
	require.NoError(t, err)
	copy(pub[:], raw)

	opened, ok := box.OpenAnonymous(nil, payload[8:], &pub, priv)
	require.True(t, ok)
	assert.Equal(t, "hunter2", string(opened))
}

func TestSealRejectsBadInput(t *testing.T) {
	keys, _ := testKeys(t)

	_, err := Seal("", keys, time.Now())
	var sealErr *errs.SealingError
	require.ErrorAs(t, err, &sealErr)
	assert.Equal(t, "encrypt", sealErr.Stage)

	_, err = Seal("pw", &Keys{KeyID: 1, PublicKey: "short", Version: 10}, time.Now())
	assert.Error(t, err)
}

func TestSealPlaintext(t *testing.T) {
	cred := SealPlaintext("hunter2", time.Unix(1700000000, 0))
	assert.True(t, cred.Plaintext)
	assert.Equal(t, "#PWD_INSTAGRAM_BROWSER:0:1700000000:hunter2", cred.Value)
}

func newFetcher(t *testing.T, srvURL string) *Fetcher {
	t.Helper()
	c, err := transport.NewClient(transport.Options{})
	require.NoError(t, err)
	return NewFetcherWithBaseURL(c, srvURL)
}

func TestFetcherSharedData(t *testing.T) {
	pk := strings.Repeat("12", 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/shared_data/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"encryption":{"key_id":"61","public_key":"%s","version":"10"}}`, pk)
	}))
	defer srv.Close()

	keys, err := newFetcher(t, srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 61, keys.KeyID)
}

func TestFetcherLoginPageFallback(t *testing.T) {
	pk := strings.Repeat("ef", 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// shared data endpoint down, keys only in the login page HTML
		if r.URL.Path != "/accounts/login/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<script>{"key_id":"55","public_key":"%s","version":"10"}</script>`, pk)
	}))
	defer srv.Close()

	keys, err := newFetcher(t, srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 55, keys.KeyID)
	assert.Equal(t, pk, keys.PublicKey)
}

func TestFetcherAllStrategiesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newFetcher(t, srv.URL).Fetch(context.Background())
	var sealErr *errs.SealingError
	require.ErrorAs(t, err, &sealErr)
	assert.Equal(t, "fetch_keys", sealErr.Stage)
}

func TestKeyCache(t *testing.T) {
	keys, _ := testKeys(t)
	var calls int
	cache := NewKeyCache(func(ctx context.Context) (*Keys, error) {
		calls++
		return keys, nil
	}, time.Hour)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := cache.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, keys, got)
	}
	assert.Equal(t, 1, calls)

	cache.Invalidate()
	_, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestKeyCacheDoesNotCacheErrors(t *testing.T) {
	var calls int
	cache := NewKeyCache(func(ctx context.Context) (*Keys, error) {
		calls++
		return nil, fmt.Errorf("boom")
	}, time.Hour)

	ctx := context.Background()
	_, err := cache.Get(ctx)
	assert.Error(t, err)
	_, err = cache.Get(ctx)
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestSealerPlaintextFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	sealer := NewSealer(newFetcher(t, srv.URL), time.Hour)

	// fallback is opt-in
	_, err := sealer.Seal(context.Background(), "hunter2")
	assert.Error(t, err)

	sealer.AllowPlaintextFallback = true
	cred, err := sealer.Seal(context.Background(), "hunter2")
	require.NoError(t, err)
	assert.True(t, cred.Plaintext)
	assert.Contains(t, cred.Value, ":0:")
}
