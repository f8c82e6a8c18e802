package consumers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/services"
)

type delegationMessage struct {
	DelegationID string `json:"delegation_id"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	Settings     string `json:"settings,omitempty"`
}

type DelegationConsumer struct {
	log         *logger.Logger
	queue       string
	delegations services.DelegationReconciler
}

func NewDelegationConsumer(log *logger.Logger, queue string, delegations services.DelegationReconciler) *DelegationConsumer {
	return &DelegationConsumer{
		log:         log.With("consumer", "DelegationConsumer"),
		queue:       queue,
		delegations: delegations,
	}
}

func (c *DelegationConsumer) Queue() string {
	return c.queue
}

func (c *DelegationConsumer) Handle(ctx context.Context, body []byte) error {
	var msg delegationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.DelegationID == "" || msg.Status == "" {
		return fmt.Errorf("%w: status=%q missing delegation_id/status", ErrMalformed, msg.Status)
	}
	delegationID, err := uuid.Parse(msg.DelegationID)
	if err != nil {
		return fmt.Errorf("%w: bad delegation_id", ErrMalformed)
	}

	return c.delegations.ApplyResult(ctx, services.DelegationResultMessage{
		DelegationID: delegationID,
		Status:       msg.Status,
		Error:        msg.Error,
		Settings:     msg.Settings,
	})
}
