package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
  "github.com/crestdesk/crestdesk-backend/internal/types"
)

type IngestionRunRepo interface {
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.IngestionRun, error)
  Create(ctx context.Context, tx *gorm.DB, run *types.IngestionRun) (*types.IngestionRun, error)
  TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatuses []string, toStatus string, updates map[string]interface{}) (int64, error)
  UpdateProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID, recordsProcessed, recordsFailed int64) error
}

type ingestionRunRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewIngestionRunRepo(db *gorm.DB, baseLog *logger.Logger) IngestionRunRepo {
  return &ingestionRunRepo{db: db, log: baseLog.With("repo", "IngestionRunRepo")}
}

func (r *ingestionRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.IngestionRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil, nil
  }
  var run types.IngestionRun
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&run).Error; err != nil {
    return nil, err
  }
  if run.ID == uuid.Nil {
    return nil, nil
  }
  return &run, nil
}

func (r *ingestionRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.IngestionRun) (*types.IngestionRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if run == nil {
    return nil, nil
  }
  if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
    return nil, err
  }
  return run, nil
}

func (r *ingestionRunRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatuses []string, toStatus string, updates map[string]interface{}) (int64, error) {
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
  updates["status"] = toStatus
  if _, ok := updates["updated_at"]; !ok {
    updates["updated_at"] = time.Now()
  }
  q := transaction.WithContext(ctx).
    Model(&types.IngestionRun{}).
    Where("id = ?", id)
  if len(fromStatuses) > 0 {
    q = q.Where("status IN ?", fromStatuses)
  }
  res := q.Updates(updates)
  return res.RowsAffected, res.Error
}

// UpdateProgress is deliberately unguarded: counts are monotonically
// informative, so a redelivered message re-writes the same or newer numbers.
func (r *ingestionRunRepo) UpdateProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID, recordsProcessed, recordsFailed int64) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.IngestionRun{}).
    Where("id = ?", id).
    Updates(map[string]interface{}{
      "records_processed": recordsProcessed,
      "records_failed":    recordsFailed,
      "updated_at":        time.Now(),
    }).Error
}
