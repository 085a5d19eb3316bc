package model

// ConsentGrant records that a user approved a third-party client. Trusted
// clients never create one.
type ConsentGrant struct {
	ID        int    `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string `gorm:"column:user_id;not null;index:idx_consent_user_client,unique"`
	ClientID  string `gorm:"column:client_id;not null;index:idx_consent_user_client,unique"`
	CreatedAt int64  `gorm:"column:created_at"`
}

func (ConsentGrant) TableName() string {
	return "consent_grants"
}

// PendingAuthorization is a suspended authorization request waiting for a
// consent decision from the external consent UI.
type PendingAuthorization struct {
	ID                  string `gorm:"column:id;primaryKey"`
	UserID              string `gorm:"column:user_id;not null"`
	TenantID            string `gorm:"column:tenant_id"`
	ClientID            string `gorm:"column:client_id;not null"`
	RedirectURI         string `gorm:"column:redirect_uri;not null"`
	Scope               string `gorm:"column:scope"`
	State               string `gorm:"column:state"`
	Nonce               string `gorm:"column:nonce"`
	CodeChallenge       string `gorm:"column:code_challenge;not null"`
	CodeChallengeMethod string `gorm:"column:code_challenge_method;not null"`
	Decided             bool   `gorm:"column:decided;default:false"`
	ExpiresAt           int64  `gorm:"column:expires_at;not null"`
	CreatedAt           int64  `gorm:"column:created_at"`
}

func (PendingAuthorization) TableName() string {
	return "pending_authorizations"
}
