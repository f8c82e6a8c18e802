package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
  "github.com/crestdesk/crestdesk-backend/internal/types"
)

type UserProfileRepo interface {
  GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*types.UserProfile, error)
  CreateIfAbsent(ctx context.Context, tx *gorm.DB, profile *types.UserProfile) error
  UpdateDisplayName(ctx context.Context, tx *gorm.DB, userID uuid.UUID, displayName string) error
}

type userProfileRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewUserProfileRepo(db *gorm.DB, baseLog *logger.Logger) UserProfileRepo {
  return &userProfileRepo{db: db, log: baseLog.With("repo", "UserProfileRepo")}
}

func (r *userProfileRepo) GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*types.UserProfile, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if externalID == "" {
    return nil, nil
  }
  var profile types.UserProfile
  if err := transaction.WithContext(ctx).
    Where("external_id = ?", externalID).
    Limit(1).
    Find(&profile).Error; err != nil {
    return nil, err
  }
  if profile.UserID == uuid.Nil {
    return nil, nil
  }
  return &profile, nil
}

func (r *userProfileRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, profile *types.UserProfile) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if profile == nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "external_id"}},
      DoNothing: true,
    }).
    Create(profile).Error
}

func (r *userProfileRepo) UpdateDisplayName(ctx context.Context, tx *gorm.DB, userID uuid.UUID, displayName string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if userID == uuid.Nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.UserProfile{}).
    Where("user_id = ?", userID).
    Update("display_name", displayName).Error
}
