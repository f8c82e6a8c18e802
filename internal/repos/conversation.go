package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
  "github.com/crestdesk/crestdesk-backend/internal/types"
)

type ConversationRepo interface {
  GetOwned(ctx context.Context, tx *gorm.DB, id, organizationID, userID uuid.UUID) (*types.Conversation, error)
  GetByActivity(ctx context.Context, tx *gorm.DB, organizationID uuid.UUID, activityID string) (*types.Conversation, error)
  Create(ctx context.Context, tx *gorm.DB, conversation *types.Conversation) (*types.Conversation, error)
  LinkActivity(ctx context.Context, tx *gorm.DB, organizationID uuid.UUID, activityID string, conversationID uuid.UUID) error
}

type conversationRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
  return &conversationRepo{db: db, log: baseLog.With("repo", "ConversationRepo")}
}

// GetOwned fetches only when the conversation belongs to the given org and
// user. A foreign id resolves to nil, never to someone else's conversation.
func (r *conversationRepo) GetOwned(ctx context.Context, tx *gorm.DB, id, organizationID, userID uuid.UUID) (*types.Conversation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil || organizationID == uuid.Nil || userID == uuid.Nil {
    return nil, nil
  }
  var conversation types.Conversation
  if err := transaction.WithContext(ctx).
    Where("id = ? AND organization_id = ? AND user_id = ?", id, organizationID, userID).
    Limit(1).
    Find(&conversation).Error; err != nil {
    return nil, err
  }
  if conversation.ID == uuid.Nil {
    return nil, nil
  }
  return &conversation, nil
}

func (r *conversationRepo) GetByActivity(ctx context.Context, tx *gorm.DB, organizationID uuid.UUID, activityID string) (*types.Conversation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if organizationID == uuid.Nil || activityID == "" {
    return nil, nil
  }
  var conversation types.Conversation
  if err := transaction.WithContext(ctx).
    Joins("JOIN activity_contexts ON activity_contexts.conversation_id = conversations.id").
    Where("activity_contexts.activity_id = ? AND activity_contexts.organization_id = ?", activityID, organizationID).
    Limit(1).
    Find(&conversation).Error; err != nil {
    return nil, err
  }
  if conversation.ID == uuid.Nil {
    return nil, nil
  }
  return &conversation, nil
}

func (r *conversationRepo) Create(ctx context.Context, tx *gorm.DB, conversation *types.Conversation) (*types.Conversation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if conversation == nil {
    return nil, nil
  }
  if err := transaction.WithContext(ctx).Create(conversation).Error; err != nil {
    return nil, err
  }
  return conversation, nil
}

func (r *conversationRepo) LinkActivity(ctx context.Context, tx *gorm.DB, organizationID uuid.UUID, activityID string, conversationID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if organizationID == uuid.Nil || activityID == "" || conversationID == uuid.Nil {
    return nil
  }
  link := types.ActivityContext{
    ActivityID:     activityID,
    OrganizationID: organizationID,
    ConversationID: conversationID,
  }
  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "activity_id"}, {Name: "organization_id"}},
      DoNothing: true,
    }).
    Create(&link).Error
}
