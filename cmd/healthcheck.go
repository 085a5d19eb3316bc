package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type healthResponse struct {
	Status string `json:"status"`
}

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck [app-url]",
	Short: "Perform a health check",
	Long:  `Use the health endpoint to verify that janus is running and healthy.`,
	Run: func(cmd *cobra.Command, args []string) {
		appURL := fmt.Sprintf("http://127.0.0.1:%d", viper.GetInt("port"))

		if len(args) > 0 {
			appURL = args[0]
		}

		log.Info().Str("appUrl", appURL).Msg("Performing health check")

		res, err := http.Get(appURL + "/api/health")
		HandleError(err, "Failed to reach health endpoint")
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		HandleError(err, "Failed to read health response")

		var health healthResponse
		HandleError(json.Unmarshal(body, &health), "Failed to parse health response")

		if health.Status != "ok" {
			log.Fatal().Str("status", health.Status).Msg("Unhealthy")
		}

		log.Info().Msg("Healthy")
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
}
