package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
  "github.com/crestdesk/crestdesk-backend/internal/types"
)

type MembershipRepo interface {
  Ensure(ctx context.Context, tx *gorm.DB, organizationID, userID uuid.UUID, role string) error
  Exists(ctx context.Context, tx *gorm.DB, organizationID, userID uuid.UUID) (bool, error)
}

type membershipRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewMembershipRepo(db *gorm.DB, baseLog *logger.Logger) MembershipRepo {
  return &membershipRepo{db: db, log: baseLog.With("repo", "MembershipRepo")}
}

// Ensure is called on every identity resolution, not only on first creation.
// Legacy or manually corrected rows can desynchronize membership from the
// org/user pair, so it must never depend on "was this the first contact".
func (r *membershipRepo) Ensure(ctx context.Context, tx *gorm.DB, organizationID, userID uuid.UUID, role string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if organizationID == uuid.Nil || userID == uuid.Nil {
    return nil
  }
  if role == "" {
    role = types.MemberRoleMember
  }
  member := types.OrganizationMember{
    OrganizationID: organizationID,
    UserID:         userID,
    Role:           role,
  }
  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "organization_id"}, {Name: "user_id"}},
      DoNothing: true,
    }).
    Create(&member).Error
}

func (r *membershipRepo) Exists(ctx context.Context, tx *gorm.DB, organizationID, userID uuid.UUID) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.OrganizationMember{}).
    Where("organization_id = ? AND user_id = ?", organizationID, userID).
    Count(&count).Error; err != nil {
    return false, err
  }
  return count > 0, nil
}
