package controller

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/janusauth/janus/internal/middleware"
	"github.com/janusauth/janus/internal/service"
	"github.com/janusauth/janus/internal/utils/tlog"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AuthorizeControllerConfig struct {
	AppURL   string
	LoginURL string
}

type AuthorizeController struct {
	config    AuthorizeControllerConfig
	router    *gin.RouterGroup
	grants    *service.GrantService
	registry  *service.RegistryService
	redirects *service.RedirectValidator
}

func NewAuthorizeController(config AuthorizeControllerConfig, router *gin.RouterGroup, grants *service.GrantService, registry *service.RegistryService, redirects *service.RedirectValidator) *AuthorizeController {
	return &AuthorizeController{
		config:    config,
		router:    router,
		grants:    grants,
		registry:  registry,
		redirects: redirects,
	}
}

func (controller *AuthorizeController) SetupRoutes() {
	oauthGroup := controller.router.Group("/oauth")
	oauthGroup.GET("/authorize", controller.authorizeHandler)
	oauthGroup.GET("/redirect", controller.redirectHandler)
	oauthGroup.POST("/consent/decision", controller.consentDecisionHandler)
}

func (controller *AuthorizeController) authorizeHandler(c *gin.Context) {
	clientID := c.Query("client_id")
	redirectURI := c.Query("redirect_uri")
	responseType := c.Query("response_type")
	scope := c.Query("scope")
	state := c.Query("state")
	nonce := c.Query("nonce")
	codeChallenge := c.Query("code_challenge")
	codeChallengeMethod := c.Query("code_challenge_method")

	// Nothing is validated yet, so failures here render in-page and are
	// never redirected
	if clientID == "" || redirectURI == "" || responseType == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Missing required parameters",
		})
		return
	}

	identity := middleware.GetIdentity(c)
	if !identity.IsLoggedIn {
		loginURL := controller.config.LoginURL
		if loginURL == "" {
			loginURL = controller.config.AppURL + "/login"
		}

		returnTo := fmt.Sprintf("%s%s", controller.config.AppURL, c.Request.URL.Path)
		if c.Request.URL.RawQuery != "" {
			returnTo = fmt.Sprintf("%s?%s", returnTo, c.Request.URL.RawQuery)
		}

		c.Redirect(http.StatusFound, fmt.Sprintf("%s?redirect_uri=%s", loginURL, url.QueryEscape(returnTo)))
		return
	}

	result, err := controller.grants.Start(service.AuthorizeInput{
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		ResponseType:        responseType,
		Scope:               scope,
		State:               state,
		Nonce:               nonce,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		UserID:              identity.UserID,
		ActiveTenantID:      identity.ActiveTenantID,
	})

	if err != nil {
		// Unknown clients and unlisted redirect uris are rendered in-page,
		// redirecting to an unvalidated target is exactly the attack the
		// validator exists to stop
		if errors.Is(err, service.ErrUnknownClient) || errors.Is(err, service.ErrInvalidRedirectURI) {
			if errors.Is(err, service.ErrInvalidRedirectURI) {
				tlog.AuditUntrustedRedirect(c, redirectURI)
			}
			code, description := service.ErrorCode(err)
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             code,
				"error_description": description,
			})
			return
		}

		controller.redirectError(c, redirectURI, state, err)
		return
	}

	if result.ConsentPending {
		consentURL := fmt.Sprintf("%s/consent?request_id=%s", controller.config.AppURL, url.QueryEscape(result.ConsentID))
		c.Redirect(http.StatusFound, consentURL)
		return
	}

	c.Redirect(http.StatusFound, result.RedirectTo)
}

// redirectHandler is the post-action navigation hop used by the consent
// and device UIs. The target is caller-supplied, so it only gets a 302 if
// the validator allows it against the current origin snapshot.
func (controller *AuthorizeController) redirectHandler(c *gin.Context) {
	target := c.Query("to")

	if controller.redirects.Validate(target, controller.registry.Origins()) != service.Allow {
		tlog.AuditUntrustedRedirect(c, target)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Redirect target is not allowed",
		})
		return
	}

	c.Redirect(http.StatusFound, target)
}

type ConsentDecisionRequest struct {
	RequestID string `json:"request_id" binding:"required"`
	Approved  bool   `json:"approved"`
}

func (controller *AuthorizeController) consentDecisionHandler(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if !identity.IsLoggedIn {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "access_denied",
			"error_description": "Login required",
		})
		return
	}

	var request ConsentDecisionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Missing request_id",
		})
		return
	}

	redirectTo, err := controller.grants.DecideConsent(request.RequestID, request.Approved)
	if err != nil {
		log.Debug().Err(err).Str("request_id", request.RequestID).Msg("Consent decision failed")
		code, description := service.ErrorCode(err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             code,
			"error_description": description,
		})
		return
	}

	tlog.AuditConsentDecision(c, request.RequestID, identity.UserID, request.Approved)

	c.JSON(http.StatusOK, gin.H{
		"redirect_uri": redirectTo,
	})
}

func (controller *AuthorizeController) redirectError(c *gin.Context, redirectURI string, state string, err error) {
	code, description := service.ErrorCode(err)

	redirectURL, parseErr := url.Parse(redirectURI)
	if parseErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             code,
			"error_description": description,
		})
		return
	}

	query := redirectURL.Query()
	query.Set("error", code)
	query.Set("error_description", description)
	if state != "" {
		query.Set("state", state)
	}
	redirectURL.RawQuery = query.Encode()

	c.Redirect(http.StatusFound, redirectURL.String())
}
