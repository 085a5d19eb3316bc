package bootstrap

import (
	"github.com/janusauth/janus/internal/service"
)

type Services struct {
	databaseService   *service.DatabaseService
	keyService        *service.KeyService
	registryService   *service.RegistryService
	sessionService    *service.SessionService
	tenantService     *service.TenantService
	tokenService      *service.TokenService
	grantService      *service.GrantService
	deviceService     *service.DeviceService
	redirectValidator *service.RedirectValidator
}

func (app *BootstrapApp) initServices() (Services, error) {
	services := Services{}

	databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
		DatabasePath: app.config.DatabasePath,
	})

	err := databaseService.Init()

	if err != nil {
		return Services{}, err
	}

	services.databaseService = databaseService

	database := databaseService.GetDatabase()

	keyService := service.NewKeyService(service.KeyServiceConfig{
		Retirement:       app.config.KeyRetirement,
		RotationInterval: app.config.KeyRotationInterval,
		Database:         database,
	})

	err = keyService.Init()

	if err != nil {
		return Services{}, err
	}

	services.keyService = keyService

	registryService := service.NewRegistryService(service.RegistryServiceConfig{
		TrustedClients: app.context.trustedClients,
		Database:       database,
	})

	err = registryService.Init()

	if err != nil {
		return Services{}, err
	}

	services.registryService = registryService

	sessionService := service.NewSessionService(service.SessionServiceConfig{
		SessionExpiry: app.config.SessionExpiry,
		RefreshExpiry: app.config.RefreshTokenExpiry,
		Database:      database,
	})

	services.sessionService = sessionService

	tenantService := service.NewTenantService(service.TenantServiceConfig{
		Database: database,
	})

	services.tenantService = tenantService

	tokenService := service.NewTokenService(service.TokenServiceConfig{
		Issuer:            app.config.AppURL,
		AccessTokenExpiry: app.config.AccessTokenExpiry,
	}, keyService, sessionService, tenantService.ResolveTenantClaims)

	services.tokenService = tokenService

	grantService := service.NewGrantService(service.GrantServiceConfig{
		AuthCodeExpiry: app.config.AuthCodeExpiry,
		Database:       database,
	}, registryService, sessionService, tokenService)

	services.grantService = grantService

	deviceService := service.NewDeviceService(service.DeviceServiceConfig{
		AppURL:           app.config.AppURL,
		DeviceCodeExpiry: app.config.DeviceCodeExpiry,
		PollInterval:     app.config.DevicePollInterval,
		Database:         database,
	}, registryService, sessionService, tokenService)

	services.deviceService = deviceService

	redirectValidator, err := service.NewRedirectValidator(app.config.AppURL)

	if err != nil {
		return Services{}, err
	}

	services.redirectValidator = redirectValidator

	return services, nil
}
