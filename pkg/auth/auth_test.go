package auth

import (
	"testing"
	"time"

	"github.com/example/foodcart/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens(config.AuthConfig{JWTSecret: "secret", Issuer: "foodcart"})

	token, err := tokens.Issue(Identity{UserID: "u-1", Role: RoleStaff, Email: "chef@example.com"})
	require.NoError(t, err)

	id, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u-1", Role: RoleStaff, Email: "chef@example.com"}, id)
	assert.True(t, id.IsStaff())
}

func TestTokens_IssueRelay(t *testing.T) {
	tokens := NewTokens(config.AuthConfig{JWTSecret: "secret", Issuer: "foodcart"})
	buyer := Identity{UserID: "u-1", Role: RoleCustomer}

	direct, err := tokens.Issue(buyer)
	require.NoError(t, err)
	id, err := tokens.Verify(direct)
	require.NoError(t, err)
	assert.False(t, id.Relayed)

	relayed, err := tokens.IssueRelay(buyer)
	require.NoError(t, err)
	id, err = tokens.Verify(relayed)
	require.NoError(t, err)
	assert.True(t, id.Relayed)
	assert.Equal(t, "u-1", id.UserID)
	assert.Equal(t, RoleCustomer, id.Role)
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens(config.AuthConfig{JWTSecret: "secret", Issuer: "foodcart"})
	other := NewTokens(config.AuthConfig{JWTSecret: "other", Issuer: "foodcart"})
	foreign := NewTokens(config.AuthConfig{JWTSecret: "secret", Issuer: "someone-else"})

	expired := NewTokens(config.AuthConfig{JWTSecret: "secret", Issuer: "foodcart", TokenTTL: time.Minute})
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }

	id := Identity{UserID: "u-1", Role: RoleCustomer}
	forged, _ := other.Issue(id)
	wrongIssuer, _ := foreign.Issue(id)
	stale, _ := expired.Issue(id)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": forged,
		"wrong issuer": wrongIssuer,
		"expired":      stale,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokens_IssueRequiresIdentity(t *testing.T) {
	tokens := NewTokens(config.AuthConfig{JWTSecret: "secret"})

	_, err := tokens.Issue(Identity{Role: RoleCustomer})
	assert.Error(t, err)
	_, err = tokens.Issue(Identity{UserID: "u", Role: "chef"})
	assert.Error(t, err)
}

func TestIdentity(t *testing.T) {
	assert.False(t, Identity{}.Authenticated())
	assert.False(t, Identity{UserID: "u", Role: RoleCustomer}.IsStaff())
	assert.False(t, Identity{Role: RoleStaff}.IsStaff())
}
