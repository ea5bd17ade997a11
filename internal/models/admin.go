// internal/models/admin.go
package models

import (
	"github.com/google/uuid"
)

// Platform setting keys.
const (
	SettingPluginBaseDomain = "plugins.baseDomain"
	SettingSMTPHost         = "platform.smtp.host"
	SettingSMTPPort         = "platform.smtp.port"
	SettingSMTPUsername     = "platform.smtp.username"
	SettingSMTPPassword     = "platform.smtp.password"
	SettingSMTPFromEmail    = "platform.smtp.fromEmail"
	SettingSMTPFromName     = "platform.smtp.fromName"
	SettingSMTPEnableSSL    = "platform.smtp.enableSsl"
)

type PlatformSetting struct {
	BaseModel
	Key       string     `json:"key" gorm:"uniqueIndex;size:100;not null"`
	Value     string     `json:"value" gorm:"type:text"`
	UpdatedBy *uuid.UUID `json:"updated_by" gorm:"type:uuid"`
}

type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
	StatusCode   int        `json:"status_code"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"type:text"`
}
