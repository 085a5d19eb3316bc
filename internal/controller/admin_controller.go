package controller

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/janusauth/janus/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type RegisterClientRequest struct {
	Name         string   `json:"name" binding:"required"`
	RedirectURIs []string `json:"redirect_uris" binding:"required"`
	Kind         string   `json:"kind" binding:"required"`
}

type RegisterClientResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type AdminControllerConfig struct {
	APIToken string
}

type AdminController struct {
	config   AdminControllerConfig
	router   *gin.RouterGroup
	registry *service.RegistryService
}

func NewAdminController(config AdminControllerConfig, router *gin.RouterGroup, registry *service.RegistryService) *AdminController {
	return &AdminController{
		config:   config,
		router:   router,
		registry: registry,
	}
}

func (controller *AdminController) SetupRoutes() {
	controller.router.POST("/admin/clients", controller.registerClient)
	controller.router.DELETE("/admin/clients/:id", controller.deleteClient)
}

func (controller *AdminController) authorized(c *gin.Context) bool {
	if controller.config.APIToken == "" {
		c.JSON(http.StatusForbidden, gin.H{
			"status":  http.StatusForbidden,
			"message": "Forbidden",
		})
		return false
	}

	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(controller.config.APIToken)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  http.StatusUnauthorized,
			"message": "Unauthorized",
		})
		return false
	}

	return true
}

func (controller *AdminController) registerClient(c *gin.Context) {
	if !controller.authorized(c) {
		return
	}

	var request RegisterClientRequest

	if err := c.BindJSON(&request); err != nil {
		log.Debug().Err(err).Msg("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  http.StatusBadRequest,
			"message": "Bad Request",
		})
		return
	}

	clientID, secret, err := controller.registry.Register(request.Name, request.RedirectURIs, request.Kind)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRedirectURI) || errors.Is(err, service.ErrDuplicateClient) {
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  http.StatusBadRequest,
				"message": err.Error(),
			})
			return
		}

		log.Error().Err(err).Msg("Failed to register client")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  http.StatusInternalServerError,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusCreated, RegisterClientResponse{
		ClientID:     clientID,
		ClientSecret: secret,
	})
}

func (controller *AdminController) deleteClient(c *gin.Context) {
	if !controller.authorized(c) {
		return
	}

	err := controller.registry.Delete(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrUnknownClient) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  http.StatusNotFound,
				"message": "Not Found",
			})
			return
		}

		if errors.Is(err, service.ErrTrustedClientImmutable) {
			c.JSON(http.StatusForbidden, gin.H{
				"status":  http.StatusForbidden,
				"message": "Trusted clients cannot be deleted",
			})
			return
		}

		log.Error().Err(err).Msg("Failed to delete client")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  http.StatusInternalServerError,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "OK",
	})
}
