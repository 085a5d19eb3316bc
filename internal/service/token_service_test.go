package service_test

import (
	"testing"
	"time"

	"github.com/janusauth/janus/internal/model"
	"github.com/janusauth/janus/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"gotest.tools/v3/assert"
)

func mintForTest(t *testing.T, stack *testStack, clientID string) (*service.MintedTokens, *model.Session, *model.Client) {
	t.Helper()

	client, err := stack.registry.Lookup(clientID)
	assert.NilError(t, err)

	session, err := stack.sessions.Create("user-1", client.ClientID, "")
	assert.NilError(t, err)

	minted, err := stack.tokens.Mint("user-1", client, session, []string{"openid", "profile"}, "some-nonce")
	assert.NilError(t, err)

	return minted, session, client
}

func parseToken(t *testing.T, stack *testStack, tokenString string) jwt.MapClaims {
	t.Helper()

	public, err := stack.keys.PublicKeys()
	assert.NilError(t, err)

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		kid := token.Header["kid"].(string)
		return public[kid], nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	assert.NilError(t, err)

	claims, ok := token.Claims.(jwt.MapClaims)
	assert.Assert(t, ok)
	return claims
}

func TestTokenMint(t *testing.T) {
	stack := newTestStack(t)

	minted, session, _ := mintForTest(t, stack, "dashboard")

	assert.Equal(t, "Bearer", minted.TokenType)
	assert.Equal(t, 3600, minted.ExpiresIn)
	assert.Equal(t, "openid profile", minted.Scope)

	// Case with access token claims
	claims := parseToken(t, stack, minted.AccessToken)
	assert.Equal(t, "https://auth.example.com", claims["iss"])
	assert.Equal(t, "user-1", claims["sub"])
	assert.Equal(t, "dashboard", claims["aud"])
	assert.Equal(t, session.ID, claims["sid"])
	assert.Equal(t, "org-primary", claims["tenant_id"])

	orgs, ok := claims["org_ids"].([]any)
	assert.Assert(t, ok)
	assert.Equal(t, 2, len(orgs))

	// Case with the id token carrying the nonce
	idClaims := parseToken(t, stack, minted.IDToken)
	assert.Equal(t, "some-nonce", idClaims["nonce"])
	assert.Equal(t, "user-1", idClaims["sub"])

	// Case without the openid scope, no id token
	client, err := stack.registry.Lookup("dashboard")
	assert.NilError(t, err)
	other, err := stack.sessions.Create("user-1", client.ClientID, "")
	assert.NilError(t, err)

	plain, err := stack.tokens.Mint("user-1", client, other, []string{"profile"}, "")
	assert.NilError(t, err)
	assert.Equal(t, "", plain.IDToken)
}

func TestTokenMintTenantOverride(t *testing.T) {
	stack := newTestStack(t)

	client, err := stack.registry.Lookup("dashboard")
	assert.NilError(t, err)

	// Case with an active tenant override on the session
	session, err := stack.sessions.Create("user-1", client.ClientID, "org-other")
	assert.NilError(t, err)

	minted, err := stack.tokens.Mint("user-1", client, session, []string{"profile"}, "")
	assert.NilError(t, err)

	claims := parseToken(t, stack, minted.AccessToken)
	assert.Equal(t, "org-other", claims["tenant_id"])
}

func TestTokenSurvivesRotation(t *testing.T) {
	stack := newTestStack(t)

	minted, _, _ := mintForTest(t, stack, "dashboard")

	// Case with a token signed just before rotation
	assert.NilError(t, stack.keys.Rotate())

	claims := parseToken(t, stack, minted.AccessToken)
	assert.Equal(t, "user-1", claims["sub"])
}

func TestTokenRefreshRotation(t *testing.T) {
	stack := newTestStack(t)

	minted, session, client := mintForTest(t, stack, "dashboard")
	first := minted.RefreshToken

	// Case with a normal refresh, a new pair comes back
	refreshed, _, err := stack.tokens.Refresh(first, client)
	assert.NilError(t, err)
	assert.Assert(t, refreshed.AccessToken != "")
	assert.Assert(t, refreshed.RefreshToken != first)

	// Case with the new value being usable
	again, _, err := stack.tokens.Refresh(refreshed.RefreshToken, client)
	assert.NilError(t, err)
	assert.Assert(t, again.RefreshToken != refreshed.RefreshToken)

	// Case with a rotated-out value presented again, theft response
	_, _, err = stack.tokens.Refresh(refreshed.RefreshToken, client)
	assert.ErrorIs(t, err, service.ErrReuseDetected)

	// The whole session is revoked
	_, err = stack.sessions.Get(session.ID)
	assert.ErrorIs(t, err, service.ErrSessionRevoked)

	// Case with the freshest value after revocation
	_, _, err = stack.tokens.Refresh(again.RefreshToken, client)
	assert.ErrorIs(t, err, service.ErrSessionRevoked)
}

func TestTokenRefreshClientBinding(t *testing.T) {
	stack := newTestStack(t)

	minted, _, _ := mintForTest(t, stack, "dashboard")

	// Case with a different client presenting the refresh token
	provisioner, err := stack.registry.Lookup("provisioner")
	assert.NilError(t, err)

	_, _, err = stack.tokens.Refresh(minted.RefreshToken, provisioner)
	assert.ErrorIs(t, err, service.ErrTokenInvalid)

	// Case with a token that never existed
	_, _, err = stack.tokens.Refresh("made-up-token", provisioner)
	assert.ErrorIs(t, err, service.ErrTokenInvalid)
}

func TestTokenRefreshExpiredSession(t *testing.T) {
	stack := newTestStack(t)

	minted, session, client := mintForTest(t, stack, "dashboard")

	assert.NilError(t, stack.database.Model(&model.Session{}).
		Where("id = ?", session.ID).
		Update("expires_at", time.Now().Add(-time.Minute).Unix()).Error)

	// Case with refreshing on an expired session
	_, _, err := stack.tokens.Refresh(minted.RefreshToken, client)
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}
