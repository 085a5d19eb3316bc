package model

type SigningKey struct {
	KID        string `gorm:"column:kid;primaryKey"`
	Algorithm  string `gorm:"column:algorithm;not null"`
	PrivatePEM string `gorm:"column:private_pem;not null"`
	PublicPEM  string `gorm:"column:public_pem;not null"`
	Current    bool   `gorm:"column:current;default:false"`
	NotBefore  int64  `gorm:"column:not_before;not null"`
	NotAfter   int64  `gorm:"column:not_after;not null"`
	CreatedAt  int64  `gorm:"column:created_at"`
}

func (SigningKey) TableName() string {
	return "signing_keys"
}
