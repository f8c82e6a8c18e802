package types

import (
  "time"
  "github.com/google/uuid"
)

type UserProfile struct {
  UserID       uuid.UUID  `gorm:"type:uuid;primaryKey;column:user_id" json:"user_id"`
  ExternalID   string     `gorm:"uniqueIndex;not null;column:external_id" json:"external_id"`
  Email        string     `gorm:"column:email" json:"email"`
  DisplayName  string     `gorm:"column:display_name" json:"display_name"`
  CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
  UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

func (UserProfile) TableName() string {
  return "user_profiles"
}
