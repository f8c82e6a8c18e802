package types

import (
  "time"
  "github.com/google/uuid"
)

type Organization struct {
  ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  ExternalID  string     `gorm:"uniqueIndex;not null;column:external_id" json:"external_id"`
  Name        string     `gorm:"not null;column:name" json:"name"`
  CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
  UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (Organization) TableName() string {
  return "organizations"
}
