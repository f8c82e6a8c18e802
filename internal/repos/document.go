package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
  "github.com/crestdesk/crestdesk-backend/internal/types"
)

type DocumentRepo interface {
  GetByBlobMetadataID(ctx context.Context, tx *gorm.DB, blobMetadataID string) (*types.Document, error)
  Create(ctx context.Context, tx *gorm.DB, document *types.Document) (*types.Document, error)
  TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatuses []string, toStatus string, updates map[string]interface{}) (int64, error)
}

type documentRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
  return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) GetByBlobMetadataID(ctx context.Context, tx *gorm.DB, blobMetadataID string) (*types.Document, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if blobMetadataID == "" {
    return nil, nil
  }
  var document types.Document
  if err := transaction.WithContext(ctx).
    Where("blob_metadata_id = ?", blobMetadataID).
    Limit(1).
    Find(&document).Error; err != nil {
    return nil, err
  }
  if document.ID == uuid.Nil {
    return nil, nil
  }
  return &document, nil
}

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, document *types.Document) (*types.Document, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if document == nil {
    return nil, nil
  }
  if err := transaction.WithContext(ctx).Create(document).Error; err != nil {
    return nil, err
  }
  return document, nil
}

func (r *documentRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatuses []string, toStatus string, updates map[string]interface{}) (int64, error) {
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
    Model(&types.Document{}).
    Where("id = ?", id)
  if len(fromStatuses) > 0 {
    q = q.Where("status IN ?", fromStatuses)
  }
  res := q.Updates(updates)
  return res.RowsAffected, res.Error
}
