package backend

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	accessIssuer   = "catalog-backend"
	accessAudience = "authenticated"
)

var errTokenExpired = errors.New("backend: access token expired")

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type tokenSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func newTokenSigner(key string, ttl time.Duration, now func() time.Time) *tokenSigner {
	return &tokenSigner{key: []byte(key), ttl: ttl, now: now}
}

func (s *tokenSigner) sign(u User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)

	c := accessClaims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    accessIssuer,
			Audience:  jwt.ClaimStrings{accessAudience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := t.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// parse returns errTokenExpired for a well-signed but expired token and
// ErrUnauthenticated for anything else that does not verify.
func (s *tokenSigner) parse(tokenStr string) (*User, time.Time, error) {
	if tokenStr == "" {
		return nil, time.Time{}, ErrUnauthenticated
	}

	t, err := jwt.ParseWithClaims(tokenStr, &accessClaims{}, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(accessIssuer),
		jwt.WithAudience(accessAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, time.Time{}, errTokenExpired
		}
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := t.Claims.(*accessClaims)
	if !ok || !t.Valid || claims.Subject == "" {
		return nil, time.Time{}, ErrUnauthenticated
	}

	return &User{ID: claims.Subject, Email: claims.Email}, claims.ExpiresAt.Time, nil
}

func newOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
