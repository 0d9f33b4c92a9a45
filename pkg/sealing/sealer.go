package sealing

import (
	"context"
	crand "crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/nacl/box"

	errs "instaapi/pkg/errors"
	"instaapi/pkg/logger"
)

// envelopeVersion is the first byte of the sealed payload
const envelopeVersion = 1

// SealedCredential is a password ready for the enc_password form field
type SealedCredential struct {
	// Value is the full #PWD_INSTAGRAM_BROWSER token
	Value string
	// Plaintext marks the version-0 fallback encoding
	Plaintext bool
	// KeyID identifies the public key used, 0 for plaintext
	KeyID int
	// Timestamp is the unix time baked into the token
	Timestamp int64
}

// Seal encrypts a password against the server's public key and wraps it in
// the browser token format:
//
//	#PWD_INSTAGRAM_BROWSER:<version>:<timestamp>:<base64 payload>
//
// The payload is one envelope version byte, the key id byte, two zero
// bytes, the unix timestamp as four big-endian bytes, then the anonymous
// box ciphertext.
func Seal(password string, keys *Keys, now time.Time) (*SealedCredential, error) {
	if password == "" {
		return nil, &errs.SealingError{Stage: "encrypt", Err: fmt.Errorf("password cannot be empty")}
	}
	if err := keys.Validate(); err != nil {
		return nil, &errs.SealingError{Stage: "encrypt", Err: err}
	}

	rawKey, err := hex.DecodeString(keys.PublicKey)
	if err != nil {
		return nil, &errs.SealingError{Stage: "encrypt", Err: fmt.Errorf("decode public key: %w", err)}
	}
	var publicKey [32]byte
	copy(publicKey[:], rawKey)

	ts := now.Unix()
	var tsBytes [4]byte
	binary.BigEndian.PutUint32(tsBytes[:], uint32(ts))

	sealed, err := box.SealAnonymous(nil, []byte(password), &publicKey, crand.Reader)
	if err != nil {
		return nil, &errs.SealingError{Stage: "encrypt", Err: fmt.Errorf("seal password: %w", err)}
	}

	payload := make([]byte, 0, 8+len(sealed))
	payload = append(payload, envelopeVersion, byte(keys.KeyID), 0, 0)
	payload = append(payload, tsBytes[:]...)
	payload = append(payload, sealed...)

	return &SealedCredential{
		Value: fmt.Sprintf("#PWD_INSTAGRAM_BROWSER:%d:%d:%s",
			keys.Version, ts, base64.StdEncoding.EncodeToString(payload)),
		KeyID:     keys.KeyID,
		Timestamp: ts,
	}, nil
}

// SealPlaintext wraps a password in the version-0 token the server accepts
// when encryption is unavailable
func SealPlaintext(password string, now time.Time) *SealedCredential {
	ts := now.Unix()
	return &SealedCredential{
		Value:     fmt.Sprintf("#PWD_INSTAGRAM_BROWSER:0:%d:%s", ts, password),
		Plaintext: true,
		Timestamp: ts,
	}
}

// Sealer ties key discovery, caching, and sealing together
type Sealer struct {
	cache *KeyCache
	// AllowPlaintextFallback permits the version-0 encoding when keys
	// cannot be fetched or sealing fails. Off by default: plaintext
	// submission is an explicit opt-in.
	AllowPlaintextFallback bool

	logger logger.Logger
}

// NewSealer creates a sealer over a key fetcher
func NewSealer(fetcher *Fetcher, keyTTL time.Duration) *Sealer {
	return &Sealer{
		cache:  NewKeyCache(fetcher.Fetch, keyTTL),
		logger: logger.GetLogger(),
	}
}

// Seal produces a credential token for the given password, fetching keys
// as needed
func (s *Sealer) Seal(ctx context.Context, password string) (*SealedCredential, error) {
	keys, err := s.cache.Get(ctx)
	if err != nil {
		return s.fallback(password, err)
	}

	cred, err := Seal(password, keys, time.Now())
	if err != nil {
		return s.fallback(password, err)
	}
	return cred, nil
}

// Invalidate drops cached keys, forcing a refetch on the next Seal. Called
// after the server rejects a sealed password, which usually means the keys
// rotated.
func (s *Sealer) Invalidate() {
	s.cache.Invalidate()
}

func (s *Sealer) fallback(password string, cause error) (*SealedCredential, error) {
	if !s.AllowPlaintextFallback {
		return nil, cause
	}
	s.logger.WarnWithFields("falling back to plaintext credential encoding", map[string]interface{}{
		"cause": cause.Error(),
	})
	return SealPlaintext(password, time.Now()), nil
}
