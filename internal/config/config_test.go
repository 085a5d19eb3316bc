package config_test

import (
	"testing"

	"github.com/janusauth/janus/internal/config"

	"github.com/go-playground/validator/v10"
	"gotest.tools/v3/assert"
)

func validConfig() config.Config {
	return config.Config{
		Port:               8080,
		Address:            "0.0.0.0",
		AppURL:             "https://auth.example.com",
		DatabasePath:       "/data/janus.db",
		LogLevel:           "info",
		AccessTokenExpiry:  21600,
		RefreshTokenExpiry: 604800,
		KeyRetirement:      28800,
	}
}

func TestConfigValidation(t *testing.T) {
	validate := validator.New()

	// Case with a valid config
	assert.NilError(t, validate.Struct(validConfig()))

	// Case with a retirement window shorter than the access token lifetime
	cfg := validConfig()
	cfg.KeyRetirement = 600
	assert.Assert(t, validate.Struct(cfg) != nil)

	// Case with a retirement window equal to the access token lifetime
	cfg = validConfig()
	cfg.KeyRetirement = cfg.AccessTokenExpiry
	assert.Assert(t, validate.Struct(cfg) != nil)
}
