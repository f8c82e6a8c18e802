package types

import (
  "time"
  "github.com/google/uuid"
)

const (
  IngestionStatusPending    = "pending"
  IngestionStatusRunning    = "running"
  IngestionStatusCompleted  = "completed"
  IngestionStatusFailed     = "failed"
)

type IngestionRun struct {
  ID                uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
  OrganizationID    uuid.UUID   `gorm:"type:uuid;not null;index;column:organization_id" json:"organization_id"`
  ConnectionID      uuid.UUID   `gorm:"type:uuid;not null;index;column:connection_id" json:"connection_id"`
  Status            string      `gorm:"not null;default:'pending';column:status" json:"status"`
  RecordsProcessed  int64       `gorm:"not null;default:0;column:records_processed" json:"records_processed"`
  RecordsFailed     int64       `gorm:"not null;default:0;column:records_failed" json:"records_failed"`
  StartedAt         *time.Time  `gorm:"column:started_at" json:"started_at"`
  CompletedAt       *time.Time  `gorm:"column:completed_at" json:"completed_at"`
  LastError         string      `gorm:"column:last_error" json:"last_error"`
  CreatedAt         time.Time   `gorm:"not null" json:"created_at"`
  UpdatedAt         time.Time   `gorm:"not null" json:"updated_at"`
}

func (IngestionRun) TableName() string {
  return "ingestion_runs"
}
