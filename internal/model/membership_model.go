package model

// OrgMembership links a user to an organization. The membership with
// the primary flag decides the default tenant claim.
type OrgMembership struct {
	ID        int    `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string `gorm:"column:user_id;not null;index"`
	OrgID     string `gorm:"column:org_id;not null"`
	Primary   bool   `gorm:"column:is_primary;default:false"`
	CreatedAt int64  `gorm:"column:created_at"`
}

func (OrgMembership) TableName() string {
	return "org_memberships"
}
