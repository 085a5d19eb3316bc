package model

type AuthorizationRequest struct {
	Code                string `gorm:"column:code;primaryKey"`
	ClientID            string `gorm:"column:client_id;not null"`
	UserID              string `gorm:"column:user_id;not null"`
	TenantID            string `gorm:"column:tenant_id"`
	RedirectURI         string `gorm:"column:redirect_uri;not null"`
	Scope               string `gorm:"column:scope"`
	Nonce               string `gorm:"column:nonce"`
	CodeChallenge       string `gorm:"column:code_challenge;not null"`
	CodeChallengeMethod string `gorm:"column:code_challenge_method;not null"`
	Consumed            bool   `gorm:"column:consumed;default:false"`
	ExpiresAt           int64  `gorm:"column:expires_at;not null"`
	CreatedAt           int64  `gorm:"column:created_at;not null"`
}

func (AuthorizationRequest) TableName() string {
	return "authorization_requests"
}
