package controller

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/janusauth/janus/internal/config"
	"github.com/janusauth/janus/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type OpenIDConnectConfiguration struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	DeviceAuthorizationEndpoint       string   `json:"device_authorization_endpoint"`
	JwksUri                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

type WellKnownControllerConfig struct {
	AppURL string
	Issuer string
}

type WellKnownController struct {
	config WellKnownControllerConfig
	engine *gin.Engine
	keys   *service.KeyService
}

func NewWellKnownController(config WellKnownControllerConfig, engine *gin.Engine, keys *service.KeyService) *WellKnownController {
	return &WellKnownController{
		config: config,
		engine: engine,
		keys:   keys,
	}
}

func (controller *WellKnownController) SetupRoutes() {
	controller.engine.GET("/.well-known/openid-configuration", controller.openIDConnectConfiguration)
	controller.engine.GET("/api/oauth/jwks", controller.jwks)
}

func (controller *WellKnownController) openIDConnectConfiguration(c *gin.Context) {
	baseURL := strings.TrimSuffix(controller.config.AppURL, "/")

	c.JSON(http.StatusOK, OpenIDConnectConfiguration{
		Issuer:                      controller.config.Issuer,
		AuthorizationEndpoint:       fmt.Sprintf("%s/api/oauth/authorize", baseURL),
		TokenEndpoint:               fmt.Sprintf("%s/api/oauth/token", baseURL),
		DeviceAuthorizationEndpoint: fmt.Sprintf("%s/api/oauth/device/code", baseURL),
		JwksUri:                     fmt.Sprintf("%s/api/oauth/jwks", baseURL),
		ResponseTypesSupported:      []string{"code"},
		GrantTypesSupported: []string{
			config.GrantAuthorizationCode,
			config.GrantRefreshToken,
			config.GrantDeviceCode,
		},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"RS256"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post"},
		CodeChallengeMethodsSupported:     []string{"S256"},
	})
}

func (controller *WellKnownController) jwks(c *gin.Context) {
	keySet, err := controller.keys.PublishKeySet()
	if err != nil {
		log.Error().Err(err).Msg("Failed to publish key set")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "server_error",
		})
		return
	}

	c.JSON(http.StatusOK, keySet)
}
