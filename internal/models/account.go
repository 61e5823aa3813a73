package models

import (
	"time"
)

// Account represents a monitored platform account
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	AccountID string    `gorm:"type:varchar(64);not null;uniqueIndex:funnel_accounts_ux1;column:account_id"`
	Username  string    `gorm:"type:varchar(64);not null;column:username"`
	Enabled   bool      `gorm:"not null;default:true;column:enabled"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "funnel_accounts"
}
