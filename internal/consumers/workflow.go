package consumers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/services"
)

type workflowMessage struct {
	Action         string         `json:"action"`
	TenantID       string         `json:"tenant_id"`
	TenantName     string         `json:"tenant_name,omitempty"`
	UserID         string         `json:"user_id"`
	Email          string         `json:"email,omitempty"`
	DisplayName    string         `json:"display_name,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	ActivityID     string         `json:"activity_id,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// WorkflowConsumer handles the workflow responses queue, discriminating on
// the `action` field.
type WorkflowConsumer struct {
	log       *logger.Logger
	queue     string
	workflows services.WorkflowEventService
}

func NewWorkflowConsumer(log *logger.Logger, queue string, workflows services.WorkflowEventService) *WorkflowConsumer {
	return &WorkflowConsumer{
		log:       log.With("consumer", "WorkflowConsumer"),
		queue:     queue,
		workflows: workflows,
	}
}

func (c *WorkflowConsumer) Queue() string {
	return c.queue
}

func (c *WorkflowConsumer) Handle(ctx context.Context, body []byte) error {
	var msg workflowMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Action == "" || msg.TenantID == "" || msg.UserID == "" {
		return fmt.Errorf("%w: action=%q missing action/tenant_id/user_id", ErrMalformed, msg.Action)
	}

	var conversationID uuid.UUID
	if msg.ConversationID != "" {
		parsed, err := uuid.Parse(msg.ConversationID)
		if err != nil {
			return fmt.Errorf("%w: action=%q bad conversation_id", ErrMalformed, msg.Action)
		}
		conversationID = parsed
	}

	event := services.WorkflowEventMessage{
		TenantID:       msg.TenantID,
		TenantName:     msg.TenantName,
		UserID:         msg.UserID,
		Email:          msg.Email,
		DisplayName:    msg.DisplayName,
		Action:         msg.Action,
		ConversationID: conversationID,
		ActivityID:     msg.ActivityID,
		Payload:        msg.Payload,
	}

	switch msg.Action {
	case services.WorkflowActionCreated:
		return c.workflows.WorkflowCreated(ctx, event)
	case services.WorkflowActionExecuted:
		return c.workflows.WorkflowExecuted(ctx, event)
	case services.WorkflowActionProgress:
		return c.workflows.ProgressUpdate(ctx, event)
	default:
		return fmt.Errorf("%w: %q on queue %s", ErrUnknownKind, msg.Action, c.queue)
	}
}
