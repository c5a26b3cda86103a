package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationLogStatus string

const (
	NotificationLogStatusReceived     NotificationLogStatus = "received"
	NotificationLogStatusHandled      NotificationLogStatus = "handled"
	NotificationLogStatusHandleFailed NotificationLogStatus = "handle_failed"
)

// NotificationLog is the raw audit trail of inbound webhook traffic,
// written outside the reconciliation transaction. Unauthentic payloads
// never reach it; the idempotency ledger is ProcessedNotification.
type NotificationLog struct {
	ID               string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider         string                `gorm:"column:provider;type:varchar(16);not null" json:"provider"`
	UserID           *string               `gorm:"column:user_id;type:varchar(64)" json:"user_id"`
	TraceID          string                `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	NotificationID   string                `gorm:"column:notification_id;type:varchar(128)" json:"notification_id"`
	NotificationTime time.Time             `gorm:"column:notification_time" json:"notification_time"`
	Data             datatypes.JSON        `gorm:"column:data;type:jsonb" json:"data"`
	Result           *datatypes.JSON       `gorm:"column:result;type:jsonb" json:"result"`
	Status           NotificationLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func (NotificationLog) TableName() string { return "notification_log" }
