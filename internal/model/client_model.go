package model

type Client struct {
	ClientID        string `gorm:"column:client_id;primaryKey"`
	Name            string `gorm:"column:name"`
	Kind            string `gorm:"column:kind;not null"`  // public or confidential
	Trust           string `gorm:"column:trust;not null"` // trusted or third_party
	SecretHash      string `gorm:"column:secret_hash"`    // bcrypt, confidential clients only
	RedirectURIs    string `gorm:"column:redirect_uris"`  // JSON array
	GrantTypes      string `gorm:"column:grant_types"`    // JSON array
	ConsentRequired bool   `gorm:"column:consent_required"`
	CreatedAt       int64  `gorm:"column:created_at"`
	UpdatedAt       int64  `gorm:"column:updated_at"`
}

func (Client) TableName() string {
	return "clients"
}
