package controller_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/janusauth/janus/internal/controller"

	"gotest.tools/v3/assert"
)

func TestOpenIDConnectConfiguration(t *testing.T) {
	app := newTestApp(t)

	recorder := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/.well-known/openid-configuration", nil)
	assert.NilError(t, err)

	app.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var document controller.OpenIDConnectConfiguration
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &document))

	assert.Equal(t, "https://auth.example.com", document.Issuer)
	assert.Equal(t, "https://auth.example.com/api/oauth/authorize", document.AuthorizationEndpoint)
	assert.Equal(t, "https://auth.example.com/api/oauth/token", document.TokenEndpoint)
	assert.Equal(t, "https://auth.example.com/api/oauth/device/code", document.DeviceAuthorizationEndpoint)
	assert.Equal(t, "https://auth.example.com/api/oauth/jwks", document.JwksUri)

	assert.DeepEqual(t, []string{"code"}, document.ResponseTypesSupported)
	assert.DeepEqual(t, []string{"S256"}, document.CodeChallengeMethodsSupported)

	assert.Equal(t, 3, len(document.GrantTypesSupported))
	assert.Equal(t, "urn:ietf:params:oauth:grant-type:device_code", document.GrantTypesSupported[2])
}

func TestJWKSEndpoint(t *testing.T) {
	app := newTestApp(t)

	recorder := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/api/oauth/jwks", nil)
	assert.NilError(t, err)

	app.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var document struct {
		Keys []map[string]any `json:"keys"`
	}
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &document))
	assert.Equal(t, 1, len(document.Keys))

	key := document.Keys[0]
	assert.Equal(t, "RSA", key["kty"])
	assert.Equal(t, "RS256", key["alg"])
	assert.Assert(t, key["kid"] != "")
	assert.Assert(t, key["n"] != "")

	// Rotation adds the retired key to the published set
	assert.NilError(t, app.keys.Rotate())

	recorder = httptest.NewRecorder()
	req, err = http.NewRequest("GET", "/api/oauth/jwks", nil)
	assert.NilError(t, err)

	app.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)

	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &document))
	assert.Equal(t, 2, len(document.Keys))
}
