package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
  "github.com/crestdesk/crestdesk-backend/internal/types"
)

type ConnectionRepo interface {
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DataSourceConnection, error)
  Create(ctx context.Context, tx *gorm.DB, connection *types.DataSourceConnection) (*types.DataSourceConnection, error)
  TransitionSyncStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatuses []string, toStatus string, updates map[string]interface{}) (int64, error)
  SetVerification(ctx context.Context, tx *gorm.DB, id uuid.UUID, status, lastError string) (int64, error)
  UpdateSettings(ctx context.Context, tx *gorm.DB, id uuid.UUID, settings string) error
}

type connectionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewConnectionRepo(db *gorm.DB, baseLog *logger.Logger) ConnectionRepo {
  return &connectionRepo{db: db, log: baseLog.With("repo", "ConnectionRepo")}
}

func (r *connectionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DataSourceConnection, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil, nil
  }
  var connection types.DataSourceConnection
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&connection).Error; err != nil {
    return nil, err
  }
  if connection.ID == uuid.Nil {
    return nil, nil
  }
  return &connection, nil
}

func (r *connectionRepo) Create(ctx context.Context, tx *gorm.DB, connection *types.DataSourceConnection) (*types.DataSourceConnection, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if connection == nil {
    return nil, nil
  }
  if err := transaction.WithContext(ctx).Create(connection).Error; err != nil {
    return nil, err
  }
  return connection, nil
}

// TransitionSyncStatus is the guarded write for ordering-sensitive sync
// transitions. The expected prior statuses are part of the WHERE clause, so a
// message that arrives after the state already moved on affects zero rows.
// Callers treat zero rows as a benign no-op.
func (r *connectionRepo) TransitionSyncStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatuses []string, toStatus string, updates map[string]interface{}) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil || toStatus == "" {
    return 0, nil
  }
  if updates == nil {
    updates = map[string]interface{}{}
  }
  updates["sync_status"] = toStatus
  if _, ok := updates["updated_at"]; !ok {
    updates["updated_at"] = time.Now()
  }
  q := transaction.WithContext(ctx).
    Model(&types.DataSourceConnection{}).
    Where("id = ?", id)
  if len(fromStatuses) > 0 {
    q = q.Where("sync_status IN ?", fromStatuses)
  }
  res := q.Updates(updates)
  return res.RowsAffected, res.Error
}

func (r *connectionRepo) SetVerification(ctx context.Context, tx *gorm.DB, id uuid.UUID, status, lastError string) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil || status == "" {
    return 0, nil
  }
  res := transaction.WithContext(ctx).
    Model(&types.DataSourceConnection{}).
    Where("id = ? AND verification_status <> ?", id, status).
    Updates(map[string]interface{}{
      "verification_status": status,
      "last_error":          lastError,
      "updated_at":          time.Now(),
    })
  return res.RowsAffected, res.Error
}

func (r *connectionRepo) UpdateSettings(ctx context.Context, tx *gorm.DB, id uuid.UUID, settings string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.DataSourceConnection{}).
    Where("id = ?", id).
    Updates(map[string]interface{}{
      "settings":   settings,
      "updated_at": time.Now(),
    }).Error
}
