package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
  "github.com/crestdesk/crestdesk-backend/internal/types"
)

type OrganizationRepo interface {
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Organization, error)
  GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*types.Organization, error)
  CreateIfAbsent(ctx context.Context, tx *gorm.DB, org *types.Organization) error
  UpdateName(ctx context.Context, tx *gorm.DB, id uuid.UUID, name string) error
}

type organizationRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewOrganizationRepo(db *gorm.DB, baseLog *logger.Logger) OrganizationRepo {
  return &organizationRepo{db: db, log: baseLog.With("repo", "OrganizationRepo")}
}

func (r *organizationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Organization, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil, nil
  }
  var org types.Organization
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&org).Error; err != nil {
    return nil, err
  }
  if org.ID == uuid.Nil {
    return nil, nil
  }
  return &org, nil
}

func (r *organizationRepo) GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*types.Organization, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if externalID == "" {
    return nil, nil
  }
  var org types.Organization
  if err := transaction.WithContext(ctx).
    Where("external_id = ?", externalID).
    Limit(1).
    Find(&org).Error; err != nil {
    return nil, err
  }
  if org.ID == uuid.Nil {
    return nil, nil
  }
  return &org, nil
}

// CreateIfAbsent inserts with ON CONFLICT DO NOTHING so two concurrent
// first-contact messages for the same tenant cannot double-create. The caller
// re-selects afterwards to obtain the canonical row.
func (r *organizationRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, org *types.Organization) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if org == nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "external_id"}},
      DoNothing: true,
    }).
    Create(org).Error
}

func (r *organizationRepo) UpdateName(ctx context.Context, tx *gorm.DB, id uuid.UUID, name string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.Organization{}).
    Where("id = ?", id).
    Update("name", name).Error
}
