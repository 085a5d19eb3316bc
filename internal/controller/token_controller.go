package controller

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/janusauth/janus/internal/config"
	"github.com/janusauth/janus/internal/model"
	"github.com/janusauth/janus/internal/service"
	"github.com/janusauth/janus/internal/utils/tlog"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type TokenControllerConfig struct{}

type TokenController struct {
	config   TokenControllerConfig
	router   *gin.RouterGroup
	registry *service.RegistryService
	grants   *service.GrantService
	devices  *service.DeviceService
	tokens   *service.TokenService
}

func NewTokenController(config TokenControllerConfig, router *gin.RouterGroup, registry *service.RegistryService, grants *service.GrantService, devices *service.DeviceService, tokens *service.TokenService) *TokenController {
	return &TokenController{
		config:   config,
		router:   router,
		registry: registry,
		grants:   grants,
		devices:  devices,
		tokens:   tokens,
	}
}

func (controller *TokenController) SetupRoutes() {
	controller.router.POST("/oauth/token", controller.tokenHandler)
}

// TokenRequest is the token endpoint form body. Which fields matter
// depends on the grant type.
type TokenRequest struct {
	GrantType    string `url:"grant_type"`
	Code         string `url:"code,omitempty"`
	RedirectURI  string `url:"redirect_uri,omitempty"`
	CodeVerifier string `url:"code_verifier,omitempty"`
	RefreshToken string `url:"refresh_token,omitempty"`
	DeviceCode   string `url:"device_code,omitempty"`
	ClientID     string `url:"client_id,omitempty"`
	ClientSecret string `url:"client_secret,omitempty"`
}

func (controller *TokenController) tokenHandler(c *gin.Context) {
	grantType := c.PostForm("grant_type")

	clientID, clientSecret := controller.getClientCredentials(c)
	if clientID == "" {
		controller.tokenError(c, http.StatusUnauthorized, "invalid_client", "Client authentication missing")
		return
	}

	client, err := controller.registry.Lookup(clientID)
	if err != nil {
		controller.tokenError(c, http.StatusUnauthorized, "invalid_client", "Client not found")
		return
	}

	if !controller.registry.VerifySecret(client, clientSecret) {
		tlog.AuditClientSecretFailure(c, clientID)
		controller.tokenError(c, http.StatusUnauthorized, "invalid_client", "Client authentication failed")
		return
	}

	if !controller.registry.AllowsGrant(client, grantType) {
		controller.tokenError(c, http.StatusBadRequest, "unauthorized_client", "Client is not authorized for this grant type")
		return
	}

	switch grantType {
	case config.GrantAuthorizationCode:
		controller.exchangeCode(c, client)
	case config.GrantRefreshToken:
		controller.refresh(c, client)
	case config.GrantDeviceCode:
		controller.pollDevice(c, client)
	default:
		controller.tokenError(c, http.StatusBadRequest, "unsupported_grant_type", "Unsupported grant_type")
	}
}

func (controller *TokenController) exchangeCode(c *gin.Context, client *model.Client) {
	code := c.PostForm("code")
	redirectURI := c.PostForm("redirect_uri")
	codeVerifier := c.PostForm("code_verifier")

	if code == "" || redirectURI == "" || codeVerifier == "" {
		controller.tokenError(c, http.StatusBadRequest, "invalid_request", "Missing required parameters")
		return
	}

	minted, err := controller.grants.Exchange(code, client, redirectURI, codeVerifier)
	if err != nil {
		if errors.Is(err, service.ErrChallengeMismatch) {
			tlog.AuditChallengeMismatch(c, client.ClientID)
		}
		log.Debug().Err(err).Str("client_id", client.ClientID).Msg("Code exchange failed")
		controller.serviceError(c, err)
		return
	}

	controller.tokenResponse(c, minted)
}

func (controller *TokenController) refresh(c *gin.Context, client *model.Client) {
	refreshToken := c.PostForm("refresh_token")
	if refreshToken == "" {
		controller.tokenError(c, http.StatusBadRequest, "invalid_request", "Missing refresh_token")
		return
	}

	minted, session, err := controller.tokens.Refresh(refreshToken, client)
	if err != nil {
		if errors.Is(err, service.ErrReuseDetected) && session != nil {
			tlog.AuditRefreshReuse(c, session.ID)
		}
		log.Debug().Err(err).Str("client_id", client.ClientID).Msg("Refresh failed")
		controller.serviceError(c, err)
		return
	}

	controller.tokenResponse(c, minted)
}

func (controller *TokenController) pollDevice(c *gin.Context, client *model.Client) {
	deviceCode := c.PostForm("device_code")
	if deviceCode == "" {
		controller.tokenError(c, http.StatusBadRequest, "invalid_request", "Missing device_code")
		return
	}

	minted, err := controller.devices.Poll(deviceCode, client)
	if err != nil {
		controller.serviceError(c, err)
		return
	}

	controller.tokenResponse(c, minted)
}

func (controller *TokenController) tokenResponse(c *gin.Context, minted *service.MintedTokens) {
	response := gin.H{
		"access_token": minted.AccessToken,
		"token_type":   minted.TokenType,
		"expires_in":   minted.ExpiresIn,
	}

	if minted.RefreshToken != "" {
		response["refresh_token"] = minted.RefreshToken
	}
	if minted.IDToken != "" {
		response["id_token"] = minted.IDToken
	}
	if minted.Scope != "" {
		response["scope"] = minted.Scope
	}

	c.JSON(http.StatusOK, response)
}

func (controller *TokenController) serviceError(c *gin.Context, err error) {
	code, description := service.ErrorCode(err)

	status := http.StatusBadRequest
	if code == "server_error" {
		status = http.StatusInternalServerError
	}

	controller.tokenError(c, status, code, description)
}

func (controller *TokenController) tokenError(c *gin.Context, status int, errorCode string, errorDescription string) {
	c.JSON(status, gin.H{
		"error":             errorCode,
		"error_description": errorDescription,
	})
}

func (controller *TokenController) getClientCredentials(c *gin.Context) (string, string) {
	// Basic auth first (client_secret_basic)
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Basic ") {
		encoded := strings.TrimPrefix(authHeader, "Basic ")
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err == nil {
			parts := strings.SplitN(string(decoded), ":", 2)
			if len(parts) == 2 {
				return parts[0], parts[1]
			}
		}
	}

	// Form parameters (client_secret_post). Public clients send only their
	// id. Credentials are never accepted via query parameters, those end
	// up in access logs and browser history.
	return c.PostForm("client_id"), c.PostForm("client_secret")
}
