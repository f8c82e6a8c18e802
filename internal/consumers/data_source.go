package consumers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/services"
)

const (
	dataSourceKindSync         = "sync_status"
	dataSourceKindVerification = "verification_status"
)

type dataSourceMessage struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
	TenantID     string `json:"tenant_id"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
}

// DataSourceConsumer handles the data source status queue: sync lifecycle
// and credential verification results, discriminated by the `type` field.
type DataSourceConsumer struct {
	log   *logger.Logger
	queue string
	sync  services.SyncReconciler
}

func NewDataSourceConsumer(log *logger.Logger, queue string, sync services.SyncReconciler) *DataSourceConsumer {
	return &DataSourceConsumer{
		log:   log.With("consumer", "DataSourceConsumer"),
		queue: queue,
		sync:  sync,
	}
}

func (c *DataSourceConsumer) Queue() string {
	return c.queue
}

func (c *DataSourceConsumer) Handle(ctx context.Context, body []byte) error {
	var msg dataSourceMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.ConnectionID == "" || msg.TenantID == "" || msg.Status == "" {
		return fmt.Errorf("%w: type=%q missing connection_id/tenant_id/status", ErrMalformed, msg.Type)
	}
	connectionID, err := uuid.Parse(msg.ConnectionID)
	if err != nil {
		return fmt.Errorf("%w: type=%q bad connection_id", ErrMalformed, msg.Type)
	}

	switch msg.Type {
	case dataSourceKindSync:
		return c.sync.ApplySyncStatus(ctx, services.SyncStatusMessage{
			ConnectionID: connectionID,
			TenantID:     msg.TenantID,
			Status:       msg.Status,
			Error:        msg.Error,
		})
	case dataSourceKindVerification:
		return c.sync.ApplyVerification(ctx, services.VerificationMessage{
			ConnectionID: connectionID,
			TenantID:     msg.TenantID,
			Status:       msg.Status,
			Error:        msg.Error,
		})
	default:
		return fmt.Errorf("%w: %q on queue %s", ErrUnknownKind, msg.Type, c.queue)
	}
}
