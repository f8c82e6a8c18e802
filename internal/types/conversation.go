package types

import (
  "time"
  "github.com/google/uuid"
)

type Conversation struct {
  ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  OrganizationID  uuid.UUID  `gorm:"type:uuid;not null;index;column:organization_id" json:"organization_id"`
  UserID          uuid.UUID  `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
  Title           string     `gorm:"column:title" json:"title"`
  CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
  UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
}

func (Conversation) TableName() string {
  return "conversations"
}

type ActivityContext struct {
  ActivityID      string     `gorm:"primaryKey;column:activity_id" json:"activity_id"`
  OrganizationID  uuid.UUID  `gorm:"type:uuid;primaryKey;column:organization_id" json:"organization_id"`
  ConversationID  uuid.UUID  `gorm:"type:uuid;not null;column:conversation_id" json:"conversation_id"`
  CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
}

func (ActivityContext) TableName() string {
  return "activity_contexts"
}
