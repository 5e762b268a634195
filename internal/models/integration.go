package models

import "time"

// Integration is the stored OAuth credential set for one (user, provider) pair.
// Token fields never leave the process: they are excluded from JSON and must not be logged.
type Integration struct {
	ID           string     `gorm:"column:id;primaryKey" bson:"_id"`
	UserID       string     `gorm:"column:user_id;uniqueIndex:ux_integration_user_provider,priority:1" bson:"user_id"`
	Provider     Provider   `gorm:"column:provider;uniqueIndex:ux_integration_user_provider,priority:2" bson:"provider"`
	AccessToken  string     `gorm:"column:access_token" bson:"access_token" json:"-"`
	RefreshToken string     `gorm:"column:refresh_token" bson:"refresh_token" json:"-"`
	ExpiresAt    *time.Time `gorm:"column:expires_at" bson:"expires_at,omitempty"`
	IsActive     bool       `gorm:"column:is_active" bson:"is_active"`
	Scope        string     `gorm:"column:scope" bson:"scope"`
	AccountEmail string     `gorm:"column:account_email" bson:"account_email"`
	Metadata     JSONB      `gorm:"column:metadata;type:jsonb" bson:"metadata,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" bson:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" bson:"updated_at"`
}

// TableName specifies the table name for GORM
func (Integration) TableName() string {
	return "integrations"
}

// TokenUpdate is the set of token fields written by a refresh.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
