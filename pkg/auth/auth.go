// Package auth verifies identity tokens issued by the external identity
// provider and turns them into an explicit Identity value.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/foodcart/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleStaff
}

// Identity is the caller of an operation. It is always passed explicitly.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Email  string `json:"email,omitempty"`
	// Relayed is set when the token was minted by an internal service on
	// the caller's behalf rather than by the identity provider.
	Relayed bool `json:"-"`
}

func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

func (i Identity) IsStaff() bool {
	return i.Authenticated() && i.Role == RoleStaff
}

var ErrInvalidToken = errors.New("invalid or expired token")

// RelayAudience marks tokens the gateway signs when it forwards a request
// to the order service.
const RelayAudience = "foodcart-relay"

type Claims struct {
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 identity tokens.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(cfg config.AuthConfig) *Tokens {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for an identity. Production tokens come from the
// identity provider; this is used by tooling and tests.
func (t *Tokens) Issue(id Identity) (string, error) {
	return t.sign(id, nil)
}

// IssueRelay signs a token for id that the order service accepts as coming
// from the gateway.
func (t *Tokens) IssueRelay(id Identity) (string, error) {
	return t.sign(id, jwt.ClaimStrings{RelayAudience})
}

func (t *Tokens) sign(id Identity, aud jwt.ClaimStrings) (string, error) {
	if !id.Authenticated() || !id.Role.Valid() {
		return "", fmt.Errorf("cannot issue token for %+v", id)
	}
	now := t.now()
	claims := Claims{
		Role:  id.Role,
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    t.issuer,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *Tokens) Verify(token string) (Identity, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return Identity{}, ErrInvalidToken
	}
	id := Identity{UserID: claims.Subject, Role: claims.Role, Email: claims.Email}
	for _, aud := range claims.Audience {
		if aud == RelayAudience {
			id.Relayed = true
		}
	}
	return id, nil
}
