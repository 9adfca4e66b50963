package models

import (
	"github.com/jinzhu/gorm"
)

// AuditEntry represents a log of staff actions
type AuditEntry struct {
	gorm.Model
	Actor   string
	Role    string
	Action  string
	Entity  string
	Details string `gorm:"type:text"`
}
