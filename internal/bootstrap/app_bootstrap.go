package bootstrap

import (
	"fmt"

	"github.com/janusauth/janus/internal/config"
	"github.com/janusauth/janus/internal/utils"

	"github.com/rs/zerolog/log"
)

type BootstrapApp struct {
	config  config.Config
	context struct {
		trustedClients []config.TrustedClient
		adminAPIToken  string
	}
	services Services
}

func NewBootstrapApp(config config.Config) *BootstrapApp {
	return &BootstrapApp{
		config: config,
	}
}

func (app *BootstrapApp) Setup() error {
	// Trusted clients
	if app.config.ClientsFile != "" {
		clients, err := utils.ParseClientsFile(app.config.ClientsFile)

		if err != nil {
			return fmt.Errorf("failed to parse clients file: %w", err)
		}

		app.context.trustedClients = clients
	}

	// Admin API token
	app.context.adminAPIToken = utils.GetSecret(app.config.AdminAPIToken, app.config.AdminAPITokenFile)

	// Dumps
	log.Trace().Interface("config", app.config).Msg("Config dump")
	log.Trace().Int("trustedClients", len(app.context.trustedClients)).Msg("Trusted clients")

	// Services
	services, err := app.initServices()

	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	app.services = services

	// Setup router
	router, err := app.setupRouter()

	if err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	// Start expiry sweeper
	if !app.config.DisableSweeper {
		log.Debug().Msg("Starting expiry sweeper routine")
		go app.services.sessionService.SweepLoop()
	}

	// Start key rotation routine
	if app.config.KeyRotationInterval > 0 {
		log.Debug().Msg("Starting key rotation routine")
		go app.services.keyService.RotateLoop()
	}

	// Start server
	address := fmt.Sprintf("%s:%d", app.config.Address, app.config.Port)
	log.Info().Msgf("Starting server on %s", address)
	if err := router.Run(address); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}

	return nil
}
