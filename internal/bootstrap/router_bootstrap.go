package bootstrap

import (
	"fmt"
	"strings"

	"github.com/janusauth/janus/internal/controller"
	"github.com/janusauth/janus/internal/middleware"

	"github.com/gin-gonic/gin"
)

func (app *BootstrapApp) setupRouter() (*gin.Engine, error) {
	engine := gin.New()
	engine.Use(gin.Recovery())

	if len(app.config.TrustedProxies) > 0 {
		err := engine.SetTrustedProxies(strings.Split(app.config.TrustedProxies, ","))

		if err != nil {
			return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
		}
	}

	identityMiddleware := middleware.NewIdentityMiddleware(middleware.IdentityMiddlewareConfig{}, app.services.sessionService)

	err := identityMiddleware.Init()

	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity middleware: %w", err)
	}

	engine.Use(identityMiddleware.Middleware())

	zerologMiddleware := middleware.NewZerologMiddleware()

	err = zerologMiddleware.Init()

	if err != nil {
		return nil, fmt.Errorf("failed to initialize zerolog middleware: %w", err)
	}

	engine.Use(zerologMiddleware.Middleware())

	apiRouter := engine.Group("/api")

	authorizeController := controller.NewAuthorizeController(controller.AuthorizeControllerConfig{
		AppURL:   app.config.AppURL,
		LoginURL: app.config.LoginURL,
	}, apiRouter, app.services.grantService, app.services.registryService, app.services.redirectValidator)

	authorizeController.SetupRoutes()

	tokenController := controller.NewTokenController(controller.TokenControllerConfig{}, apiRouter, app.services.registryService, app.services.grantService, app.services.deviceService, app.services.tokenService)

	tokenController.SetupRoutes()

	deviceController := controller.NewDeviceController(controller.DeviceControllerConfig{}, apiRouter, app.services.deviceService)

	deviceController.SetupRoutes()

	wellKnownController := controller.NewWellKnownController(controller.WellKnownControllerConfig{
		AppURL: app.config.AppURL,
		Issuer: app.config.AppURL,
	}, engine, app.services.keyService)

	wellKnownController.SetupRoutes()

	adminController := controller.NewAdminController(controller.AdminControllerConfig{
		APIToken: app.context.adminAPIToken,
	}, apiRouter, app.services.registryService)

	adminController.SetupRoutes()

	healthController := controller.NewHealthController(apiRouter)

	healthController.SetupRoutes()

	return engine, nil
}
