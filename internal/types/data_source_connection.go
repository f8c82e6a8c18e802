package types

import (
  "time"
  "github.com/google/uuid"
)

const (
  SyncStatusIdle       = "idle"
  SyncStatusSyncing    = "syncing"
  SyncStatusCancelled  = "cancelled"

  VerificationPending  = "pending"
  VerificationVerified = "verified"
  VerificationFailed   = "failed"
)

type DataSourceConnection struct {
  ID                  uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
  OrganizationID      uuid.UUID   `gorm:"type:uuid;not null;index;column:organization_id" json:"organization_id"`
  Name                string      `gorm:"not null;column:name" json:"name"`
  SourceType          string      `gorm:"not null;column:source_type" json:"source_type"`
  SyncStatus          string      `gorm:"not null;default:'idle';column:sync_status" json:"sync_status"`
  VerificationStatus  string      `gorm:"not null;default:'pending';column:verification_status" json:"verification_status"`
  Settings            string      `gorm:"column:settings" json:"settings"`
  LastSyncStartedAt   *time.Time  `gorm:"column:last_sync_started_at" json:"last_sync_started_at"`
  LastSyncedAt        *time.Time  `gorm:"column:last_synced_at" json:"last_synced_at"`
  LastError           string      `gorm:"column:last_error" json:"last_error"`
  CreatedAt           time.Time   `gorm:"not null" json:"created_at"`
  UpdatedAt           time.Time   `gorm:"not null" json:"updated_at"`
}

func (DataSourceConnection) TableName() string {
  return "data_source_connections"
}
