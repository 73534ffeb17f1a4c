// Package authtoken issues and verifies the JWT (HS256) bearer tokens
// the HTTP API uses for authentication (spec §6): claims
// {username, iss, iat, exp, roles[]}.
package authtoken

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredentials is returned when a request carries no bearer token.
var ErrNoCredentials = errors.New("authtoken: no credentials presented")

// Claims is the token payload.
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims include role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Issuer mints and validates tokens signed with a single HMAC secret.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewIssuer returns an Issuer using secret to sign and verify tokens.
// issuer is stamped into the iss claim; ttl is how long freshly issued
// tokens remain valid.
func NewIssuer(secret []byte, issuer string, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("authtoken: secret must not be empty")
	}
	return &Issuer{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// Issue mints a signed token for username with roles, expiring after ttl.
func (i *Issuer) Issue(username string, roles []string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify parses and validates tokenStr, returning its claims.
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("authtoken: unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ExtractToken pulls a bearer token from the Authorization header,
// falling back to a "token" cookie (matching how the teacher's
// emulated-tuner clients — and browsers hitting the Web UI — carry
// credentials).
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if tok := strings.TrimSpace(parts[1]); tok != "" {
				return tok
			}
		}
	}
	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// Authenticate extracts and verifies the bearer token on r.
func (i *Issuer) Authenticate(r *http.Request) (*Claims, error) {
	tok := ExtractToken(r)
	if tok == "" {
		return nil, ErrNoCredentials
	}
	return i.Verify(tok)
}

// RequireRole wraps next so it only runs when the request carries a
// valid bearer token whose claims include role; otherwise it responds
// 401 (no/invalid token) or 403 (valid token, missing role).
func (i *Issuer) RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := i.Authenticate(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !claims.HasRole(role) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
