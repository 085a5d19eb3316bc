package service_test

import (
	"path/filepath"
	"testing"

	"github.com/janusauth/janus/internal/config"
	"github.com/janusauth/janus/internal/service"
	"github.com/janusauth/janus/internal/utils/tlog"

	"gotest.tools/v3/assert"
	"gorm.io/gorm"
)

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	tlog.NewSimpleLogger().Init()

	databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
		DatabasePath: filepath.Join(t.TempDir(), "janus.db"),
	})

	assert.NilError(t, databaseService.Init())
	return databaseService.GetDatabase()
}

func newTestRegistry(t *testing.T, database *gorm.DB) *service.RegistryService {
	t.Helper()

	registry := service.NewRegistryService(service.RegistryServiceConfig{
		TrustedClients: []config.TrustedClient{
			{
				ID:           "dashboard",
				Name:         "Dashboard",
				Kind:         config.ClientKindConfidential,
				Secret:       "dashboard-secret",
				RedirectURIs: []string{"https://dashboard.example.com/oauth/callback"},
				GrantTypes:   []string{config.GrantAuthorizationCode, config.GrantRefreshToken},
			},
			{
				ID:         "provisioner",
				Name:       "Provisioner",
				Kind:       config.ClientKindConfidential,
				Secret:     "provisioner-secret",
				GrantTypes: []string{config.GrantDeviceCode, config.GrantRefreshToken},
			},
		},
		Database: database,
	})

	assert.NilError(t, registry.Init())
	return registry
}

func newTestKeys(t *testing.T, database *gorm.DB, retirement int) *service.KeyService {
	t.Helper()

	keys := service.NewKeyService(service.KeyServiceConfig{
		Retirement: retirement,
		Database:   database,
	})

	assert.NilError(t, keys.Init())
	return keys
}

type testStack struct {
	database *gorm.DB
	registry *service.RegistryService
	keys     *service.KeyService
	sessions *service.SessionService
	tokens   *service.TokenService
	grants   *service.GrantService
	devices  *service.DeviceService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	database := newTestDatabase(t)
	registry := newTestRegistry(t, database)
	keys := newTestKeys(t, database, 3600)

	sessions := service.NewSessionService(service.SessionServiceConfig{
		SessionExpiry: 3600,
		RefreshExpiry: 7200,
		Database:      database,
	})

	resolveTenant := func(userID string, activeOverride string) (config.TenantClaims, error) {
		tenantID := activeOverride
		if tenantID == "" {
			tenantID = "org-primary"
		}
		return config.TenantClaims{
			TenantID:        tenantID,
			OrganizationIDs: []string{"org-primary", "org-other"},
		}, nil
	}

	tokens := service.NewTokenService(service.TokenServiceConfig{
		Issuer:            "https://auth.example.com",
		AccessTokenExpiry: 3600,
	}, keys, sessions, resolveTenant)

	grants := service.NewGrantService(service.GrantServiceConfig{
		AuthCodeExpiry: 600,
		Database:       database,
	}, registry, sessions, tokens)

	devices := service.NewDeviceService(service.DeviceServiceConfig{
		AppURL:           "https://auth.example.com",
		DeviceCodeExpiry: 600,
		PollInterval:     5,
		Database:         database,
	}, registry, sessions, tokens)

	return &testStack{
		database: database,
		registry: registry,
		keys:     keys,
		sessions: sessions,
		tokens:   tokens,
		grants:   grants,
		devices:  devices,
	}
}
