package cmd

import (
	"github.com/janusauth/janus/internal/bootstrap"
	"github.com/janusauth/janus/internal/config"
	"github.com/janusauth/janus/internal/utils/tlog"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "janus",
	Short: "OAuth 2.1 / OIDC authorization and token service.",
	Long:  `Janus issues, verifies and revokes credentials for a multi-tenant platform through authorization-code+PKCE, device-authorization and refresh-token grants.`,
	Run: func(cmd *cobra.Command, args []string) {
		log.Info().Msg("Parsing config")
		var cfg config.Config
		parseErr := viper.Unmarshal(&cfg)
		HandleError(parseErr, "Failed to parse config")

		log.Info().Msg("Validating config")
		validate := validator.New()
		validateErr := validate.Struct(cfg)
		HandleError(validateErr, "Invalid config")

		logger := tlog.NewLogger(config.LogConfig{
			Level: cfg.LogLevel,
			Json:  cfg.LogJSON,
			Streams: config.LogStreams{
				App:   config.LogStreamConfig{Enabled: true},
				HTTP:  config.LogStreamConfig{Enabled: true},
				Audit: config.LogStreamConfig{Enabled: true},
			},
		})
		logger.Init()

		tlog.App.Info().Str("version", config.Version).Msg("Starting janus")

		app := bootstrap.NewBootstrapApp(cfg)
		HandleError(app.Setup(), "Failed to bootstrap app")
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}

func HandleError(err error, msg string) {
	if err != nil {
		log.Fatal().Err(err).Msg(msg)
	}
}

func init() {
	viper.AutomaticEnv()
	rootCmd.Flags().Int("port", 3000, "Port to run the server on.")
	rootCmd.Flags().String("address", "0.0.0.0", "Address to bind the server to.")
	rootCmd.Flags().String("app-url", "", "Public URL of the service, used as the token issuer.")
	rootCmd.Flags().String("login-url", "", "URL of the login screen to redirect unauthenticated users to. Defaults to app-url + /login.")
	rootCmd.Flags().String("database-path", "./janus.db", "Path to the sqlite database.")
	rootCmd.Flags().String("clients-file", "", "Path to a JSON file with trusted clients seeded at boot.")
	rootCmd.Flags().String("admin-api-token", "", "Bearer token guarding the client registration endpoints.")
	rootCmd.Flags().String("admin-api-token-file", "", "Path to a file containing the admin API token.")
	rootCmd.Flags().String("log-level", "info", "Log level.")
	rootCmd.Flags().Bool("log-json", false, "Log in JSON format.")
	rootCmd.Flags().Int("access-token-expiry", 21600, "Access token lifetime in seconds.")
	rootCmd.Flags().Int("refresh-token-expiry", 604800, "Refresh token lifetime in seconds.")
	rootCmd.Flags().Int("session-expiry", 604800, "Session lifetime in seconds.")
	rootCmd.Flags().Int("auth-code-expiry", 600, "Authorization code lifetime in seconds.")
	rootCmd.Flags().Int("device-code-expiry", 600, "Device code lifetime in seconds.")
	rootCmd.Flags().Int("device-poll-interval", 5, "Minimum device token polling interval in seconds.")
	rootCmd.Flags().Int("key-retirement", 28800, "How long a rotated-out signing key stays valid for verification, in seconds. Must exceed the access token lifetime.")
	rootCmd.Flags().Int("key-rotation-interval", 0, "Automatic key rotation interval in seconds, 0 to disable.")
	rootCmd.Flags().String("trusted-proxies", "", "Comma separated list of trusted proxies.")
	rootCmd.Flags().Bool("disable-sweeper", false, "Disable the background cleanup of expired records.")
	viper.BindEnv("port", "PORT")
	viper.BindEnv("address", "ADDRESS")
	viper.BindEnv("app-url", "APP_URL")
	viper.BindEnv("login-url", "LOGIN_URL")
	viper.BindEnv("database-path", "DATABASE_PATH")
	viper.BindEnv("clients-file", "CLIENTS_FILE")
	viper.BindEnv("admin-api-token", "ADMIN_API_TOKEN")
	viper.BindEnv("admin-api-token-file", "ADMIN_API_TOKEN_FILE")
	viper.BindEnv("log-level", "LOG_LEVEL")
	viper.BindEnv("log-json", "LOG_JSON")
	viper.BindEnv("access-token-expiry", "ACCESS_TOKEN_EXPIRY")
	viper.BindEnv("refresh-token-expiry", "REFRESH_TOKEN_EXPIRY")
	viper.BindEnv("session-expiry", "SESSION_EXPIRY")
	viper.BindEnv("auth-code-expiry", "AUTH_CODE_EXPIRY")
	viper.BindEnv("device-code-expiry", "DEVICE_CODE_EXPIRY")
	viper.BindEnv("device-poll-interval", "DEVICE_POLL_INTERVAL")
	viper.BindEnv("key-retirement", "KEY_RETIREMENT")
	viper.BindEnv("key-rotation-interval", "KEY_ROTATION_INTERVAL")
	viper.BindEnv("trusted-proxies", "TRUSTED_PROXIES")
	viper.BindEnv("disable-sweeper", "DISABLE_SWEEPER")
	viper.BindPFlags(rootCmd.Flags())
}
