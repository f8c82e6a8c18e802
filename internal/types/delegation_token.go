package types

import (
  "time"
  "github.com/google/uuid"
)

const (
  DelegationStatusPending   = "pending"
  DelegationStatusVerified  = "verified"
  DelegationStatusFailed    = "failed"
)

type DelegationToken struct {
  ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
  OrganizationID  uuid.UUID   `gorm:"type:uuid;not null;index;column:organization_id" json:"organization_id"`
  ConnectionID    uuid.UUID   `gorm:"type:uuid;not null;index;column:connection_id" json:"connection_id"`
  Status          string      `gorm:"not null;default:'pending';column:status" json:"status"`
  Settings        string      `gorm:"column:settings" json:"settings"`
  VerifiedAt      *time.Time  `gorm:"column:verified_at" json:"verified_at"`
  LastError       string      `gorm:"column:last_error" json:"last_error"`
  CreatedAt       time.Time   `gorm:"not null" json:"created_at"`
  UpdatedAt       time.Time   `gorm:"not null" json:"updated_at"`
}

func (DelegationToken) TableName() string {
  return "delegation_tokens"
}

type DelegationAuditLog struct {
  ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  DelegationID    uuid.UUID  `gorm:"type:uuid;not null;index;column:delegation_id" json:"delegation_id"`
  OrganizationID  uuid.UUID  `gorm:"type:uuid;not null;index;column:organization_id" json:"organization_id"`
  Outcome         string     `gorm:"not null;column:outcome" json:"outcome"`
  Detail          string     `gorm:"column:detail" json:"detail"`
  CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
}

func (DelegationAuditLog) TableName() string {
  return "delegation_audit_logs"
}
