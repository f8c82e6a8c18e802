package consumers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/services"
)

type documentMessage struct {
	BlobMetadataID string `json:"blob_metadata_id"`
	TenantID       string `json:"tenant_id"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

type DocumentConsumer struct {
	log       *logger.Logger
	queue     string
	documents services.DocumentReconciler
}

func NewDocumentConsumer(log *logger.Logger, queue string, documents services.DocumentReconciler) *DocumentConsumer {
	return &DocumentConsumer{
		log:       log.With("consumer", "DocumentConsumer"),
		queue:     queue,
		documents: documents,
	}
}

func (c *DocumentConsumer) Queue() string {
	return c.queue
}

func (c *DocumentConsumer) Handle(ctx context.Context, body []byte) error {
	var msg documentMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.BlobMetadataID == "" || msg.TenantID == "" || msg.Status == "" {
		return fmt.Errorf("%w: status=%q missing blob_metadata_id/tenant_id/status", ErrMalformed, msg.Status)
	}

	return c.documents.ApplyProcessing(ctx, services.DocumentStatusMessage{
		BlobMetadataID: msg.BlobMetadataID,
		TenantID:       msg.TenantID,
		Status:         msg.Status,
		Error:          msg.Error,
	})
}
