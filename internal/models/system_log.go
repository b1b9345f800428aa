package models

import (
	"time"

	"gorm.io/datatypes"
)

// SystemLog stores structured error logs written by the slog DB handler.
type SystemLog struct {
	Base
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	Level     string         `gorm:"size:10;not null;index" json:"level"`
	Message   string         `gorm:"type:text" json:"message"`
	TraceID   string         `gorm:"size:36;index" json:"trace_id"`
	UserID    *string        `gorm:"size:36" json:"user_id"`
	OrgID     *string        `gorm:"size:36" json:"org_id"`
	Entity    string         `gorm:"size:50" json:"entity"`
	Action    string         `gorm:"size:100" json:"action"`
	Error     string         `gorm:"type:text" json:"error"`
	LatencyMs int            `json:"latency_ms"`
	Extra     datatypes.JSON `json:"extra"`
	CreatedAt time.Time      `json:"created_at"`
}
