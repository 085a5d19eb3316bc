package model

const (
	DeviceGrantPending  = "pending"
	DeviceGrantApproved = "approved"
	DeviceGrantDenied   = "denied"
	DeviceGrantExpired  = "expired"
	DeviceGrantRedeemed = "redeemed"
)

type DeviceGrant struct {
	DeviceCode   string `gorm:"column:device_code;primaryKey"`
	UserCode     string `gorm:"column:user_code;uniqueIndex;not null"`
	ClientID     string `gorm:"column:client_id;not null"`
	Scope        string `gorm:"column:scope"`
	Status       string `gorm:"column:status;not null;default:pending"`
	UserID       string `gorm:"column:user_id"`   // filled on approval
	TenantID     string `gorm:"column:tenant_id"` // filled on approval
	PollInterval int    `gorm:"column:poll_interval;not null"`
	LastPolledAt int64  `gorm:"column:last_polled_at"`
	ExpiresAt    int64  `gorm:"column:expires_at;not null"`
	CreatedAt    int64  `gorm:"column:created_at;not null"`
	UpdatedAt    int64  `gorm:"column:updated_at"`
}

func (DeviceGrant) TableName() string {
	return "device_grants"
}
