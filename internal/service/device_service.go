package service

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/janusauth/janus/internal/config"
	"github.com/janusauth/janus/internal/model"
	"github.com/janusauth/janus/internal/utils"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const slowDownPenalty = 5 // seconds added to the interval on a fast poll

type DeviceServiceConfig struct {
	AppURL           string
	DeviceCodeExpiry int
	PollInterval     int
	Database         *gorm.DB
}

// DeviceService drives the RFC 8628 device-authorization state machine:
// pending -> approved -> redeemed, pending -> denied, pending -> expired.
// Polling is a plain read, no worker ever blocks waiting for approval.
type DeviceService struct {
	config   DeviceServiceConfig
	registry *RegistryService
	sessions *SessionService
	tokens   *TokenService
}

func NewDeviceService(config DeviceServiceConfig, registry *RegistryService, sessions *SessionService, tokens *TokenService) *DeviceService {
	return &DeviceService{
		config:   config,
		registry: registry,
		sessions: sessions,
		tokens:   tokens,
	}
}

type DeviceAuthorization struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// Start opens a device grant. Only clients explicitly flagged for the
// device grant type may use it, and no redirect_uri is involved.
func (ds *DeviceService) Start(clientID string, scope string) (*DeviceAuthorization, error) {
	client, err := ds.registry.Lookup(clientID)
	if err != nil {
		return nil, err
	}

	if !ds.registry.AllowsGrant(client, config.GrantDeviceCode) {
		return nil, ErrGrantNotAllowed
	}

	deviceCode, err := utils.GetRandomString(43)
	if err != nil {
		return nil, fmt.Errorf("failed to generate device code: %w", err)
	}

	userCode, err := ds.uniqueUserCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	grant := model.DeviceGrant{
		DeviceCode:   deviceCode,
		UserCode:     userCode,
		ClientID:     client.ClientID,
		Scope:        scope,
		Status:       model.DeviceGrantPending,
		PollInterval: ds.config.PollInterval,
		ExpiresAt:    now.Add(time.Duration(ds.config.DeviceCodeExpiry) * time.Second).Unix(),
		CreatedAt:    now.Unix(),
		UpdatedAt:    now.Unix(),
	}

	if err := ds.config.Database.Create(&grant).Error; err != nil {
		return nil, fmt.Errorf("failed to store device grant: %w", err)
	}

	verificationURI := ds.config.AppURL + "/device"

	return &DeviceAuthorization{
		DeviceCode:              deviceCode,
		UserCode:                userCode,
		VerificationURI:         verificationURI,
		VerificationURIComplete: verificationURI + "?user_code=" + url.QueryEscape(userCode),
		ExpiresIn:               ds.config.DeviceCodeExpiry,
		Interval:                ds.config.PollInterval,
	}, nil
}

// Poll is the token-endpoint read for a device grant. It returns tokens
// once a human approved the user code, and a typed error otherwise.
func (ds *DeviceService) Poll(deviceCode string, client *model.Client) (*MintedTokens, error) {
	var grant model.DeviceGrant
	err := ds.config.Database.Where("device_code = ?", deviceCode).First(&grant).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load device grant: %w", err)
	}

	if grant.ClientID != client.ClientID {
		return nil, ErrTokenInvalid
	}

	now := time.Now().Unix()

	// Expiry applies to approved grants too: an approval that was never
	// redeemed dies with the device code
	expirable := grant.Status == model.DeviceGrantPending || grant.Status == model.DeviceGrantApproved
	if expirable && grant.ExpiresAt <= now {
		// Terminal state, recorded best-effort since the read-time check
		// is authoritative
		ds.config.Database.Model(&model.DeviceGrant{}).
			Where("device_code = ?", deviceCode).
			Updates(map[string]any{"status": model.DeviceGrantExpired, "updated_at": now})
		return nil, ErrExpiredToken
	}

	switch grant.Status {
	case model.DeviceGrantPending:
		if grant.LastPolledAt > 0 && now-grant.LastPolledAt < int64(grant.PollInterval) {
			escalated := grant.PollInterval + slowDownPenalty
			ds.config.Database.Model(&model.DeviceGrant{}).
				Where("device_code = ?", deviceCode).
				Updates(map[string]any{"poll_interval": escalated, "last_polled_at": now, "updated_at": now})
			return nil, ErrSlowDown
		}

		ds.config.Database.Model(&model.DeviceGrant{}).
			Where("device_code = ?", deviceCode).
			Updates(map[string]any{"last_polled_at": now, "updated_at": now})
		return nil, ErrAuthorizationPending

	case model.DeviceGrantDenied:
		return nil, ErrAccessDenied

	case model.DeviceGrantExpired:
		return nil, ErrExpiredToken

	case model.DeviceGrantRedeemed:
		return nil, ErrGrantConsumed

	case model.DeviceGrantApproved:
		// Redeem exactly once
		result := ds.config.Database.Model(&model.DeviceGrant{}).
			Where("device_code = ? AND status = ?", deviceCode, model.DeviceGrantApproved).
			Updates(map[string]any{"status": model.DeviceGrantRedeemed, "updated_at": now})
		if result.Error != nil {
			return nil, fmt.Errorf("failed to redeem device grant: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, ErrGrantConsumed
		}

		session, err := ds.sessions.Create(grant.UserID, client.ClientID, grant.TenantID)
		if err != nil {
			return nil, err
		}

		return ds.tokens.Mint(grant.UserID, client, session, splitScopes(grant.Scope), "")

	default:
		return nil, ErrTokenInvalid
	}
}

// Approve is the callback from the device-approval UI after a human
// entered the user code and confirmed.
func (ds *DeviceService) Approve(userCode string, userID string, tenantID string) error {
	return ds.decide(userCode, model.DeviceGrantApproved, userID, tenantID)
}

func (ds *DeviceService) Deny(userCode string) error {
	return ds.decide(userCode, model.DeviceGrantDenied, "", "")
}

func (ds *DeviceService) decide(userCode string, status string, userID string, tenantID string) error {
	var grant model.DeviceGrant
	err := ds.config.Database.Where("user_code = ?", userCode).First(&grant).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("failed to load device grant: %w", err)
	}

	if grant.ExpiresAt <= time.Now().Unix() {
		return ErrExpiredToken
	}

	now := time.Now().Unix()
	result := ds.config.Database.Model(&model.DeviceGrant{}).
		Where("user_code = ? AND status = ?", userCode, model.DeviceGrantPending).
		Updates(map[string]any{
			"status":     status,
			"user_id":    userID,
			"tenant_id":  tenantID,
			"updated_at": now,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update device grant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrGrantConsumed
	}

	log.Info().Str("client_id", grant.ClientID).Str("status", status).Msg("Device grant decided")
	return nil
}

func (ds *DeviceService) uniqueUserCode() (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		userCode, err := utils.GenerateUserCode()
		if err != nil {
			return "", err
		}

		var existing model.DeviceGrant
		err = ds.config.Database.Where("user_code = ?", userCode).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return userCode, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check user code: %w", err)
		}
	}
	return "", errors.New("failed to generate a unique user code")
}
