package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
  "github.com/crestdesk/crestdesk-backend/internal/types"
)

type DelegationRepo interface {
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DelegationToken, error)
  Create(ctx context.Context, tx *gorm.DB, token *types.DelegationToken) (*types.DelegationToken, error)
  MarkVerified(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int64, error)
  MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, lastError string) (int64, error)
  InsertAudit(ctx context.Context, tx *gorm.DB, entry *types.DelegationAuditLog) error
}

type delegationRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewDelegationRepo(db *gorm.DB, baseLog *logger.Logger) DelegationRepo {
  return &delegationRepo{db: db, log: baseLog.With("repo", "DelegationRepo")}
}

func (r *delegationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DelegationToken, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil, nil
  }
  var token types.DelegationToken
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&token).Error; err != nil {
    return nil, err
  }
  if token.ID == uuid.Nil {
    return nil, nil
  }
  return &token, nil
}

func (r *delegationRepo) Create(ctx context.Context, tx *gorm.DB, token *types.DelegationToken) (*types.DelegationToken, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if token == nil {
    return nil, nil
  }
  if err := transaction.WithContext(ctx).Create(token).Error; err != nil {
    return nil, err
  }
  return token, nil
}

// MarkVerified and MarkFailed are both guarded on the pending state, so a
// redelivered verification result affects zero rows the second time.
func (r *delegationRepo) MarkVerified(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return 0, nil
  }
  now := time.Now()
  res := transaction.WithContext(ctx).
    Model(&types.DelegationToken{}).
    Where("id = ? AND status = ?", id, types.DelegationStatusPending).
    Updates(map[string]interface{}{
      "status":      types.DelegationStatusVerified,
      "verified_at": now,
      "last_error":  "",
      "updated_at":  now,
    })
  return res.RowsAffected, res.Error
}

func (r *delegationRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, lastError string) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return 0, nil
  }
  res := transaction.WithContext(ctx).
    Model(&types.DelegationToken{}).
    Where("id = ? AND status = ?", id, types.DelegationStatusPending).
    Updates(map[string]interface{}{
      "status":     types.DelegationStatusFailed,
      "last_error": lastError,
      "updated_at": time.Now(),
    })
  return res.RowsAffected, res.Error
}

func (r *delegationRepo) InsertAudit(ctx context.Context, tx *gorm.DB, entry *types.DelegationAuditLog) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if entry == nil {
    return nil
  }
  return transaction.WithContext(ctx).Create(entry).Error
}
