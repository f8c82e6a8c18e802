package consumers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/services"
)

type ingestionMessage struct {
	IngestionRunID   string `json:"ingestion_run_id"`
	TenantID         string `json:"tenant_id"`
	Status           string `json:"status"`
	RecordsProcessed *int64 `json:"records_processed,omitempty"`
	RecordsFailed    *int64 `json:"records_failed,omitempty"`
	Error            string `json:"error,omitempty"`
}

type IngestionConsumer struct {
	log       *logger.Logger
	queue     string
	ingestion services.IngestionReconciler
}

func NewIngestionConsumer(log *logger.Logger, queue string, ingestion services.IngestionReconciler) *IngestionConsumer {
	return &IngestionConsumer{
		log:       log.With("consumer", "IngestionConsumer"),
		queue:     queue,
		ingestion: ingestion,
	}
}

func (c *IngestionConsumer) Queue() string {
	return c.queue
}

func (c *IngestionConsumer) Handle(ctx context.Context, body []byte) error {
	var msg ingestionMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.IngestionRunID == "" || msg.TenantID == "" || msg.Status == "" {
		return fmt.Errorf("%w: status=%q missing ingestion_run_id/tenant_id/status", ErrMalformed, msg.Status)
	}
	runID, err := uuid.Parse(msg.IngestionRunID)
	if err != nil {
		return fmt.Errorf("%w: bad ingestion_run_id", ErrMalformed)
	}

	return c.ingestion.ApplyStatus(ctx, services.IngestionStatusMessage{
		RunID:            runID,
		TenantID:         msg.TenantID,
		Status:           msg.Status,
		RecordsProcessed: msg.RecordsProcessed,
		RecordsFailed:    msg.RecordsFailed,
		Error:            msg.Error,
	})
}
