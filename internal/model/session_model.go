package model

type Session struct {
	ID               string `gorm:"column:id;primaryKey"`
	UserID           string `gorm:"column:user_id;not null;index"`
	ClientID         string `gorm:"column:client_id"`
	ActiveTenantID   string `gorm:"column:active_tenant_id"`
	RefreshHash      string `gorm:"column:refresh_hash;index"`
	PrevRefreshHash  string `gorm:"column:prev_refresh_hash;index"`
	RefreshExpiresAt int64  `gorm:"column:refresh_expires_at"`
	IssuedAt         int64  `gorm:"column:issued_at;not null"`
	ExpiresAt        int64  `gorm:"column:expires_at;not null"`
	Revoked          bool   `gorm:"column:revoked;default:false"`
}

func (Session) TableName() string {
	return "sessions"
}
