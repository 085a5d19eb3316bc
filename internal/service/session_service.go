package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/janusauth/janus/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type SessionServiceConfig struct {
	SessionExpiry int
	RefreshExpiry int
	Database      *gorm.DB
}

// SessionService owns the server-side sessions and the refresh tokens
// scoped to them. Refresh tokens are stored hashed only.
type SessionService struct {
	config SessionServiceConfig
}

func NewSessionService(config SessionServiceConfig) *SessionService {
	return &SessionService{
		config: config,
	}
}

func (ss *SessionService) Create(userID string, clientID string, activeTenantID string) (*model.Session, error) {
	now := time.Now().Unix()
	session := model.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		ClientID:       clientID,
		ActiveTenantID: activeTenantID,
		IssuedAt:       now,
		ExpiresAt:      now + int64(ss.config.SessionExpiry),
	}

	if err := ss.config.Database.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &session, nil
}

// Get returns the session if it is live. Expiry is enforced at read time,
// the background sweep is only a space optimization.
func (ss *SessionService) Get(sessionID string) (*model.Session, error) {
	var session model.Session
	err := ss.config.Database.Where("id = ?", sessionID).First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if session.Revoked {
		return nil, ErrSessionRevoked
	}
	if session.ExpiresAt <= time.Now().Unix() {
		return nil, ErrSessionExpired
	}

	return &session, nil
}

func (ss *SessionService) Extend(sessionID string) error {
	expiresAt := time.Now().Unix() + int64(ss.config.SessionExpiry)
	return ss.config.Database.Model(&model.Session{}).
		Where("id = ? AND revoked = ?", sessionID, false).
		Update("expires_at", expiresAt).Error
}

func (ss *SessionService) Revoke(sessionID string) error {
	return ss.config.Database.Model(&model.Session{}).
		Where("id = ?", sessionID).
		Update("revoked", true).Error
}

// FindByRefreshHash looks a session up by the hash of a presented refresh
// token. reused reports that the hash matched an already-rotated value,
// which the caller must treat as token theft.
func (ss *SessionService) FindByRefreshHash(hash string) (session *model.Session, reused bool, err error) {
	var found model.Session

	err = ss.config.Database.Where("refresh_hash = ?", hash).First(&found).Error
	if err == nil {
		return &found, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	err = ss.config.Database.Where("prev_refresh_hash = ?", hash).First(&found).Error
	if err == nil {
		return &found, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	return nil, false, ErrTokenInvalid
}

// RotateRefresh swaps the active refresh hash. The conditional update on
// the current hash means two concurrent redemptions of the same token
// cannot both win.
func (ss *SessionService) RotateRefresh(sessionID string, currentHash string, newHash string) error {
	expiresAt := time.Now().Unix() + int64(ss.config.RefreshExpiry)

	result := ss.config.Database.Model(&model.Session{}).
		Where("id = ? AND refresh_hash = ? AND revoked = ?", sessionID, currentHash, false).
		Updates(map[string]any{
			"prev_refresh_hash":  currentHash,
			"refresh_hash":       newHash,
			"refresh_expires_at": expiresAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTokenInvalid
	}
	return nil
}

// SetRefresh installs the first refresh hash on a fresh session.
func (ss *SessionService) SetRefresh(sessionID string, hash string) error {
	expiresAt := time.Now().Unix() + int64(ss.config.RefreshExpiry)
	return ss.config.Database.Model(&model.Session{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{
			"refresh_hash":       hash,
			"prev_refresh_hash":  "",
			"refresh_expires_at": expiresAt,
		}).Error
}

func (ss *SessionService) DeleteExpired() error {
	return ss.config.Database.
		Where("expires_at <= ?", time.Now().Unix()).
		Delete(&model.Session{}).Error
}

// SweepLoop clears expired sessions and grants periodically. Correctness
// never depends on it, expiry is always checked at read time.
func (ss *SessionService) SweepLoop() {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		log.Debug().Msg("Cleaning up expired sessions")
		if err := ss.DeleteExpired(); err != nil {
			log.Error().Err(err).Msg("Failed to clean up expired sessions")
		}

		now := time.Now().Unix()
		if err := ss.config.Database.
			Where("expires_at <= ?", now).
			Delete(&model.AuthorizationRequest{}).Error; err != nil {
			log.Error().Err(err).Msg("Failed to clean up expired authorization requests")
		}
		if err := ss.config.Database.
			Where("expires_at <= ?", now).
			Delete(&model.DeviceGrant{}).Error; err != nil {
			log.Error().Err(err).Msg("Failed to clean up expired device grants")
		}
	}
}
