package controller

import (
	"net/http"

	"github.com/janusauth/janus/internal/middleware"
	"github.com/janusauth/janus/internal/service"
	"github.com/janusauth/janus/internal/utils/tlog"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type DeviceControllerConfig struct{}

type DeviceController struct {
	config  DeviceControllerConfig
	router  *gin.RouterGroup
	devices *service.DeviceService
}

func NewDeviceController(config DeviceControllerConfig, router *gin.RouterGroup, devices *service.DeviceService) *DeviceController {
	return &DeviceController{
		config:  config,
		router:  router,
		devices: devices,
	}
}

func (controller *DeviceController) SetupRoutes() {
	deviceGroup := controller.router.Group("/oauth/device")
	deviceGroup.POST("/code", controller.deviceAuthorizationHandler)
	deviceGroup.POST("/decision", controller.deviceDecisionHandler)
}

func (controller *DeviceController) deviceAuthorizationHandler(c *gin.Context) {
	clientID := c.PostForm("client_id")
	scope := c.PostForm("scope")

	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Missing client_id",
		})
		return
	}

	authorization, err := controller.devices.Start(clientID, scope)
	if err != nil {
		log.Debug().Err(err).Str("client_id", clientID).Msg("Device authorization failed")
		code, description := service.ErrorCode(err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             code,
			"error_description": description,
		})
		return
	}

	c.JSON(http.StatusOK, authorization)
}

type DeviceDecisionRequest struct {
	UserCode string `json:"user_code" binding:"required"`
	Approved bool   `json:"approved"`
}

// deviceDecisionHandler is the callback invoked by the device-approval UI
// once a human typed the user code and decided.
func (controller *DeviceController) deviceDecisionHandler(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if !identity.IsLoggedIn {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "access_denied",
			"error_description": "Login required",
		})
		return
	}

	var request DeviceDecisionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Missing user_code",
		})
		return
	}

	var err error
	if request.Approved {
		err = controller.devices.Approve(request.UserCode, identity.UserID, identity.ActiveTenantID)
	} else {
		err = controller.devices.Deny(request.UserCode)
	}

	if err != nil {
		log.Debug().Err(err).Msg("Device decision failed")
		code, description := service.ErrorCode(err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             code,
			"error_description": description,
		})
		return
	}

	tlog.AuditDeviceDecision(c, request.UserCode, identity.UserID, request.Approved)

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
