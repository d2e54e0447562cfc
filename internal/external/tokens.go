package external

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpirySkew is subtracted from a token's lifetime before it is
// considered stale, so a cached token never expires mid-request.
const tokenExpirySkew = time.Minute

// TokenSource supplies the bearer credential attached to outbound platform
// calls. Implementations must be safe for concurrent use.
type TokenSource interface {
	// Token returns a credential valid at the time of the call. An empty
	// token means the request is sent unauthenticated.
	Token(ctx context.Context) (string, error)
}

// staticTokenSource returns the same credential on every call.
type staticTokenSource string

func (s staticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}

// AnonymousTokenSource returns a source that yields no credential. Dry runs
// and stub-backed tests use it.
func AnonymousTokenSource() TokenSource {
	return staticTokenSource("")
}

// NewAPIKeyTokenSource returns a source that yields a fixed API key.
func NewAPIKeyTokenSource(key string) TokenSource {
	return staticTokenSource(key)
}

// serviceAccountTokenSource self-signs short-lived RS256 tokens for a
// platform service account and caches each one until shortly before expiry.
type serviceAccountTokenSource struct {
	account  string
	audience string
	ttl      time.Duration
	key      *rsa.PrivateKey

	nowFn func() time.Time // for testability; defaults to time.Now

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewServiceAccountTokenSource parses the service account's PEM-encoded RSA
// private key and returns a source that signs tokens with it. audience is
// the platform base URL the tokens are minted for.
func NewServiceAccountTokenSource(account string, privateKeyPEM []byte, audience string, ttl time.Duration) (TokenSource, error) {
	if account == "" {
		return nil, fmt.Errorf("service account is required")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account private key: %w", err)
	}

	if ttl <= 0 {
		ttl = time.Hour
	}

	return &serviceAccountTokenSource{
		account:  account,
		audience: audience,
		ttl:      ttl,
		key:      key,
		nowFn:    time.Now,
	}, nil
}

// Token returns the cached token, re-signing once it is within
// tokenExpirySkew of expiry.
func (s *serviceAccountTokenSource) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	if s.token != "" && now.Before(s.expires.Add(-tokenExpirySkew)) {
		return s.token, nil
	}

	expires := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"iss": s.account,
		"sub": s.account,
		"aud": s.audience,
		"iat": now.Unix(),
		"exp": expires.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign service account token: %w", err)
	}

	s.token = signed
	s.expires = expires
	return signed, nil
}
