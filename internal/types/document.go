package types

import (
  "time"
  "github.com/google/uuid"
)

const (
  DocumentStatusProcessing  = "processing"
  DocumentStatusReady       = "ready"
  DocumentStatusFailed      = "failed"
)

type Document struct {
  ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
  OrganizationID  uuid.UUID   `gorm:"type:uuid;not null;index;column:organization_id" json:"organization_id"`
  BlobMetadataID  string      `gorm:"uniqueIndex;not null;column:blob_metadata_id" json:"blob_metadata_id"`
  Title           string      `gorm:"column:title" json:"title"`
  Status          string      `gorm:"not null;default:'processing';column:status" json:"status"`
  LastError       string      `gorm:"column:last_error" json:"last_error"`
  ProcessedAt     *time.Time  `gorm:"column:processed_at" json:"processed_at"`
  CreatedAt       time.Time   `gorm:"not null" json:"created_at"`
  UpdatedAt       time.Time   `gorm:"not null" json:"updated_at"`
}

func (Document) TableName() string {
  return "documents"
}
