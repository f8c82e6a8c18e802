package types

import (
  "time"
  "github.com/google/uuid"
)

const (
  MemberRoleMember  = "member"
  MemberRoleAdmin   = "admin"
)

type OrganizationMember struct {
  OrganizationID  uuid.UUID  `gorm:"type:uuid;primaryKey;column:organization_id" json:"organization_id"`
  UserID          uuid.UUID  `gorm:"type:uuid;primaryKey;column:user_id" json:"user_id"`
  Role            string     `gorm:"not null;default:'member';column:role" json:"role"`
  CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
}

func (OrganizationMember) TableName() string {
  return "organization_members"
}
