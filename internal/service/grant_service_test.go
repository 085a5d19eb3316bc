package service_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/janusauth/janus/internal/config"
	"github.com/janusauth/janus/internal/model"
	"github.com/janusauth/janus/internal/service"
	"github.com/janusauth/janus/internal/utils"

	"gotest.tools/v3/assert"
)

const testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

func startAuthorization(t *testing.T, stack *testStack, clientID string, redirectURI string) string {
	t.Helper()

	result, err := stack.grants.Start(service.AuthorizeInput{
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		ResponseType:        "code",
		Scope:               "openid profile",
		State:               "some-state",
		CodeChallenge:       utils.S256Challenge(testVerifier),
		CodeChallengeMethod: "S256",
		UserID:              "user-1",
		ActiveTenantID:      "",
	})
	assert.NilError(t, err)
	assert.Assert(t, !result.ConsentPending)

	parsed, err := url.Parse(result.RedirectTo)
	assert.NilError(t, err)

	query := parsed.Query()
	assert.Equal(t, "some-state", query.Get("state"))
	assert.Assert(t, query.Get("code") != "")

	return query.Get("code")
}

func TestGrantStartValidation(t *testing.T) {
	stack := newTestStack(t)
	redirectURI := "https://dashboard.example.com/oauth/callback"

	// Case with an unknown client
	_, err := stack.grants.Start(service.AuthorizeInput{
		ClientID:     "ghost",
		RedirectURI:  redirectURI,
		ResponseType: "code",
	})
	assert.ErrorIs(t, err, service.ErrUnknownClient)

	// Case with a redirect uri missing from the allow-list
	_, err = stack.grants.Start(service.AuthorizeInput{
		ClientID:     "dashboard",
		RedirectURI:  "https://dashboard.example.com/other",
		ResponseType: "code",
	})
	assert.ErrorIs(t, err, service.ErrInvalidRedirectURI)

	// Case with an unsupported response type
	_, err = stack.grants.Start(service.AuthorizeInput{
		ClientID:            "dashboard",
		RedirectURI:         redirectURI,
		ResponseType:        "token",
		CodeChallenge:       utils.S256Challenge(testVerifier),
		CodeChallengeMethod: "S256",
	})
	assert.ErrorIs(t, err, service.ErrUnsupportedResponseType)

	// Case with a missing challenge
	_, err = stack.grants.Start(service.AuthorizeInput{
		ClientID:     "dashboard",
		RedirectURI:  redirectURI,
		ResponseType: "code",
	})
	assert.ErrorIs(t, err, service.ErrInvalidChallenge)

	// Case with the plain challenge method
	_, err = stack.grants.Start(service.AuthorizeInput{
		ClientID:            "dashboard",
		RedirectURI:         redirectURI,
		ResponseType:        "code",
		CodeChallenge:       testVerifier,
		CodeChallengeMethod: "plain",
	})
	assert.ErrorIs(t, err, service.ErrInvalidChallenge)

	// Case with a device-flow-only client
	_, err = stack.grants.Start(service.AuthorizeInput{
		ClientID:            "provisioner",
		RedirectURI:         redirectURI,
		ResponseType:        "code",
		CodeChallenge:       utils.S256Challenge(testVerifier),
		CodeChallengeMethod: "S256",
	})
	assert.ErrorIs(t, err, service.ErrInvalidRedirectURI)
}

func TestGrantExchange(t *testing.T) {
	stack := newTestStack(t)
	redirectURI := "https://dashboard.example.com/oauth/callback"

	client, err := stack.registry.Lookup("dashboard")
	assert.NilError(t, err)

	code := startAuthorization(t, stack, "dashboard", redirectURI)

	// Case with a successful exchange
	minted, err := stack.grants.Exchange(code, client, redirectURI, testVerifier)
	assert.NilError(t, err)
	assert.Assert(t, minted.AccessToken != "")
	assert.Assert(t, minted.RefreshToken != "")
	assert.Assert(t, minted.IDToken != "")
	assert.Equal(t, "Bearer", minted.TokenType)

	// Case with redeeming the same code twice
	_, err = stack.grants.Exchange(code, client, redirectURI, testVerifier)
	assert.ErrorIs(t, err, service.ErrGrantConsumed)
}

func TestGrantExchangeMismatches(t *testing.T) {
	stack := newTestStack(t)
	redirectURI := "https://dashboard.example.com/oauth/callback"

	client, err := stack.registry.Lookup("dashboard")
	assert.NilError(t, err)

	// Case with a wrong verifier, the code is burned anyway
	code := startAuthorization(t, stack, "dashboard", redirectURI)

	_, err = stack.grants.Exchange(code, client, redirectURI, "wrong-verifier-wrong-verifier-wrong-verifier")
	assert.ErrorIs(t, err, service.ErrChallengeMismatch)

	_, err = stack.grants.Exchange(code, client, redirectURI, testVerifier)
	assert.ErrorIs(t, err, service.ErrGrantConsumed)

	// Case with a redirect uri that differs from authorization start
	code = startAuthorization(t, stack, "dashboard", redirectURI)

	_, err = stack.grants.Exchange(code, client, redirectURI+"/", testVerifier)
	assert.ErrorIs(t, err, service.ErrRedirectMismatch)

	// Case with a different client redeeming the code
	code = startAuthorization(t, stack, "dashboard", redirectURI)

	otherID, _, err := stack.registry.Register("Other", []string{"https://other.example.com/oauth/callback"}, config.ClientKindConfidential)
	assert.NilError(t, err)
	other, err := stack.registry.Lookup(otherID)
	assert.NilError(t, err)

	_, err = stack.grants.Exchange(code, other, redirectURI, testVerifier)
	assert.ErrorIs(t, err, service.ErrGrantConsumed)

	// Case with an expired code
	code = startAuthorization(t, stack, "dashboard", redirectURI)

	err = stack.database.Model(&model.AuthorizationRequest{}).
		Where("code = ?", code).
		Update("expires_at", time.Now().Add(-time.Minute).Unix()).Error
	assert.NilError(t, err)

	_, err = stack.grants.Exchange(code, client, redirectURI, testVerifier)
	assert.ErrorIs(t, err, service.ErrGrantExpired)
}

func TestGrantConsentFlow(t *testing.T) {
	stack := newTestStack(t)

	// Third-party clients require consent
	clientID, _, err := stack.registry.Register("Reporting", []string{"https://reporting.example.com/oauth/callback"}, config.ClientKindConfidential)
	assert.NilError(t, err)
	client, err := stack.registry.Lookup(clientID)
	assert.NilError(t, err)

	redirectURI := "https://reporting.example.com/oauth/callback"
	input := service.AuthorizeInput{
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		ResponseType:        "code",
		Scope:               "profile",
		State:               "some-state",
		CodeChallenge:       utils.S256Challenge(testVerifier),
		CodeChallengeMethod: "S256",
		UserID:              "user-1",
	}

	// Case with the authorization suspended, no code issued yet
	result, err := stack.grants.Start(input)
	assert.NilError(t, err)
	assert.Assert(t, result.ConsentPending)
	assert.Assert(t, result.ConsentID != "")
	assert.Equal(t, "", result.RedirectTo)

	// Case with approval resuming the flow
	redirectTo, err := stack.grants.DecideConsent(result.ConsentID, true)
	assert.NilError(t, err)

	parsed, err := url.Parse(redirectTo)
	assert.NilError(t, err)
	code := parsed.Query().Get("code")
	assert.Assert(t, code != "")
	assert.Equal(t, "some-state", parsed.Query().Get("state"))

	_, err = stack.grants.Exchange(code, client, redirectURI, testVerifier)
	assert.NilError(t, err)

	// Case with deciding the same consent twice
	_, err = stack.grants.DecideConsent(result.ConsentID, true)
	assert.ErrorIs(t, err, service.ErrGrantConsumed)

	// Case with a second authorization after consent was granted
	result, err = stack.grants.Start(input)
	assert.NilError(t, err)
	assert.Assert(t, !result.ConsentPending)
	assert.Assert(t, result.RedirectTo != "")
}

func TestGrantConsentDenied(t *testing.T) {
	stack := newTestStack(t)

	clientID, _, err := stack.registry.Register("Reporting", []string{"https://reporting.example.com/oauth/callback"}, config.ClientKindConfidential)
	assert.NilError(t, err)

	result, err := stack.grants.Start(service.AuthorizeInput{
		ClientID:            clientID,
		RedirectURI:         "https://reporting.example.com/oauth/callback",
		ResponseType:        "code",
		State:               "some-state",
		CodeChallenge:       utils.S256Challenge(testVerifier),
		CodeChallengeMethod: "S256",
		UserID:              "user-1",
	})
	assert.NilError(t, err)
	assert.Assert(t, result.ConsentPending)

	// Case with the user denying, the client gets an error redirect
	redirectTo, err := stack.grants.DecideConsent(result.ConsentID, false)
	assert.NilError(t, err)

	parsed, err := url.Parse(redirectTo)
	assert.NilError(t, err)
	assert.Equal(t, "access_denied", parsed.Query().Get("error"))
	assert.Equal(t, "some-state", parsed.Query().Get("state"))
	assert.Equal(t, "", parsed.Query().Get("code"))
}

func TestGrantTrustedClientSkipsConsent(t *testing.T) {
	stack := newTestStack(t)

	// Case with a trusted client, no consent suspension
	result, err := stack.grants.Start(service.AuthorizeInput{
		ClientID:            "dashboard",
		RedirectURI:         "https://dashboard.example.com/oauth/callback",
		ResponseType:        "code",
		CodeChallenge:       utils.S256Challenge(testVerifier),
		CodeChallengeMethod: "S256",
		UserID:              "user-1",
	})
	assert.NilError(t, err)
	assert.Assert(t, !result.ConsentPending)
	assert.Assert(t, result.RedirectTo != "")
}
