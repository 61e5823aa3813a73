package models

import (
	"database/sql"
	"time"
)

// Trigger mode constants
const (
	TriggerModeAny     = "ANY"
	TriggerModeKeyword = "KEYWORD"
)

// AutomationConfig represents the account-level automation policy
type AutomationConfig struct {
	ID              int64          `gorm:"primaryKey;autoIncrement;column:id"`
	AccountID       string         `gorm:"type:varchar(64);not null;uniqueIndex:funnel_automation_configs_ux1;column:account_id"`
	Enabled         bool           `gorm:"not null;default:false;column:enabled"`
	TriggerMode     string         `gorm:"type:varchar(16);not null;default:'ANY';column:trigger_mode"`
	TriggerKeyword  sql.NullString `gorm:"type:varchar(128);column:trigger_keyword"`
	MessageTemplate sql.NullString `gorm:"type:text;column:message_template"`
	LinkPayload     sql.NullString `gorm:"type:varchar(1024);column:link_payload"`
	DailySendLimit  int            `gorm:"not null;default:0;column:daily_send_limit"`
	CooldownSeconds int            `gorm:"not null;default:0;column:cooldown_seconds"`
	ReplyAfterSend  bool           `gorm:"not null;default:false;column:reply_after_send"`
	UseTextGen      bool           `gorm:"not null;default:false;column:use_textgen"`
	CreatedAt       time.Time      `gorm:"not null;column:created_at"`
	UpdatedAt       time.Time      `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for AutomationConfig
func (AutomationConfig) TableName() string {
	return "funnel_automation_configs"
}

// PostConfig represents a post-level automation policy. When present it
// replaces the account-level config entirely for that post.
type PostConfig struct {
	ID              int64          `gorm:"primaryKey;autoIncrement;column:id"`
	AccountID       string         `gorm:"type:varchar(64);not null;uniqueIndex:funnel_post_configs_ux1;column:account_id"`
	PostID          string         `gorm:"type:varchar(64);not null;uniqueIndex:funnel_post_configs_ux1;column:post_id"`
	Enabled         bool           `gorm:"not null;default:true;column:enabled"`
	TriggerMode     string         `gorm:"type:varchar(16);not null;default:'ANY';column:trigger_mode"`
	TriggerKeyword  sql.NullString `gorm:"type:varchar(128);column:trigger_keyword"`
	MessageTemplate sql.NullString `gorm:"type:text;column:message_template"`
	LinkPayload     sql.NullString `gorm:"type:varchar(1024);column:link_payload"`
	DailySendLimit  int            `gorm:"not null;default:0;column:daily_send_limit"`
	CooldownSeconds int            `gorm:"not null;default:0;column:cooldown_seconds"`
	ReplyAfterSend  bool           `gorm:"not null;default:false;column:reply_after_send"`
	UseTextGen      bool           `gorm:"not null;default:false;column:use_textgen"`
	CreatedAt       time.Time      `gorm:"not null;column:created_at"`
	UpdatedAt       time.Time      `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for PostConfig
func (PostConfig) TableName() string {
	return "funnel_post_configs"
}
