package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
)

const (
	WorkflowActionCreated  = "workflow_created"
	WorkflowActionExecuted = "workflow_executed"
	WorkflowActionProgress = "progress_update"
)

type WorkflowEventMessage struct {
	TenantID       string
	TenantName     string
	UserID         string
	Email          string
	DisplayName    string
	Action         string
	ConversationID uuid.UUID
	ActivityID     string
	Payload        map[string]any
}

// WorkflowEventService handles events from externally executed workflows.
// There is no persisted workflow entity on our side; each event resolves the
// tenant/user identity just in time and fans out to the user's live sessions.
type WorkflowEventService interface {
	WorkflowCreated(ctx context.Context, msg WorkflowEventMessage) error
	WorkflowExecuted(ctx context.Context, msg WorkflowEventMessage) error
	ProgressUpdate(ctx context.Context, msg WorkflowEventMessage) error
}

type workflowEventService struct {
	log      *logger.Logger
	identity IdentityService
	notifier Notifier
}

func NewWorkflowEventService(log *logger.Logger, identity IdentityService, notifier Notifier) WorkflowEventService {
	return &workflowEventService{
		log:      log.With("service", "WorkflowEventService"),
		identity: identity,
		notifier: notifier,
	}
}

func (s *workflowEventService) resolve(ctx context.Context, msg WorkflowEventMessage) (*Identity, error) {
	return s.identity.Resolve(ctx, ResolveIdentityInput{
		TenantID:    msg.TenantID,
		TenantName:  msg.TenantName,
		UserID:      msg.UserID,
		Email:       msg.Email,
		DisplayName: msg.DisplayName,
	})
}

func (s *workflowEventService) WorkflowCreated(ctx context.Context, msg WorkflowEventMessage) error {
	identity, err := s.resolve(ctx, msg)
	if err != nil {
		return err
	}
	s.notifier.WorkflowCreated(identity.User.UserID, msg.Payload)
	return nil
}

func (s *workflowEventService) WorkflowExecuted(ctx context.Context, msg WorkflowEventMessage) error {
	identity, err := s.resolve(ctx, msg)
	if err != nil {
		return err
	}
	conversation, err := s.identity.ResolveConversation(ctx, identity, msg.ConversationID, msg.ActivityID)
	if err != nil {
		return fmt.Errorf("resolve conversation: %w", err)
	}
	s.notifier.WorkflowExecuted(identity.User.UserID, conversation.ID, msg.Payload)
	return nil
}

func (s *workflowEventService) ProgressUpdate(ctx context.Context, msg WorkflowEventMessage) error {
	identity, err := s.resolve(ctx, msg)
	if err != nil {
		return err
	}
	s.notifier.WorkflowProgress(identity.User.UserID, msg.Payload)
	return nil
}
