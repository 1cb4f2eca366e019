package mockapi

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "groupbuy-mockapi"

var errTokenInvalid = errors.New("token is invalid")

type accessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// tokens issues HS256 access tokens and remembers revocations.
type tokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func newTokens(key []byte, ttl time.Duration, now func() time.Time) *tokens {
	return &tokens{key: key, ttl: ttl, now: now, revoked: make(map[string]time.Time)}
}

func (t *tokens) issue(username, role string) (string, error) {
	now := t.now().UTC()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (t *tokens) verify(raw string) (accessClaims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return accessClaims{}, fmt.Errorf("%w: %v", errTokenInvalid, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return accessClaims{}, errTokenInvalid
	}
	t.mu.Lock()
	_, revoked := t.revoked[claims.ID]
	t.mu.Unlock()
	if revoked {
		return accessClaims{}, fmt.Errorf("%w: revoked", errTokenInvalid)
	}
	return claims, nil
}

func (t *tokens) revoke(claims accessClaims) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for id, expires := range t.revoked {
		if expires.Before(now) {
			delete(t.revoked, id)
		}
	}
	expires := now.Add(t.ttl)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	t.revoked[claims.ID] = expires
}
