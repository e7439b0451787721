package models

import (
	"time"

	"gorm.io/datatypes"
)

// StatusTransition is the append-only audit row written for every applied status change.
type StatusTransition struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	ApplicationID uint              `gorm:"not null;index" json:"application_id"`
	FromStatus    ApplicationStatus `gorm:"size:32;not null" json:"from_status"`
	ToStatus      ApplicationStatus `gorm:"size:32;not null" json:"to_status"`
	ChangedBy     uint              `gorm:"not null" json:"changed_by"`
	ChangedAt     time.Time         `gorm:"not null;index" json:"changed_at"`
	Reason        *string           `gorm:"type:text" json:"reason"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
}
