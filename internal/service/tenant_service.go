package service

import (
	"fmt"

	"github.com/janusauth/janus/internal/config"
	"github.com/janusauth/janus/internal/model"

	"gorm.io/gorm"
)

// TenantResolver computes the tenant claims for a subject. The token
// minter depends on this function type, not on the membership store.
type TenantResolver func(userID string, activeOverride string) (config.TenantClaims, error)

type TenantServiceConfig struct {
	Database *gorm.DB
}

type TenantService struct {
	config TenantServiceConfig
}

func NewTenantService(config TenantServiceConfig) *TenantService {
	return &TenantService{
		config: config,
	}
}

// ResolveTenantClaims returns the active tenant and the full membership
// list for row-level isolation downstream. The tenant defaults to the
// primary organization membership unless an active-session override
// names another organization the user belongs to.
func (ts *TenantService) ResolveTenantClaims(userID string, activeOverride string) (config.TenantClaims, error) {
	var memberships []model.OrgMembership
	err := ts.config.Database.
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&memberships).Error
	if err != nil {
		return config.TenantClaims{}, fmt.Errorf("failed to load memberships: %w", err)
	}

	claims := config.TenantClaims{
		OrganizationIDs: make([]string, 0, len(memberships)),
	}

	for _, membership := range memberships {
		claims.OrganizationIDs = append(claims.OrganizationIDs, membership.OrgID)
		if membership.Primary && claims.TenantID == "" {
			claims.TenantID = membership.OrgID
		}
	}

	if claims.TenantID == "" && len(memberships) > 0 {
		claims.TenantID = memberships[0].OrgID
	}

	if activeOverride != "" {
		for _, orgID := range claims.OrganizationIDs {
			if orgID == activeOverride {
				claims.TenantID = activeOverride
				break
			}
		}
	}

	return claims, nil
}
