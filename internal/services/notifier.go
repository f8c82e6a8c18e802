package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/crestdesk/crestdesk-backend/internal/realtime"
)

// Notifier is the best-effort fan-out boundary. Persistence is the source of
// truth by the time any of these run; a missed live notification is
// recoverable by the client re-fetching, so no method returns an error.
type Notifier interface {
	SyncStatusChanged(organizationID, connectionID uuid.UUID, status, errorMessage string)
	VerificationChanged(organizationID, connectionID uuid.UUID, status string)
	IngestionStatusChanged(organizationID, runID uuid.UUID, status string)
	IngestionProgress(organizationID, runID uuid.UUID, recordsProcessed, recordsFailed int64)
	DocumentStatusChanged(organizationID, documentID uuid.UUID, blobMetadataID, status string)
	DelegationStatusChanged(organizationID, delegationID uuid.UUID, status string)
	WorkflowCreated(userID uuid.UUID, data map[string]any)
	WorkflowExecuted(userID, conversationID uuid.UUID, data map[string]any)
	WorkflowProgress(userID uuid.UUID, data map[string]any)
	FeatureFlagUpdated(organizationID uuid.UUID, flag string, enabled bool)
}

type notifier struct {
	emit Emitter
}

func NewNotifier(emit Emitter) Notifier {
	return &notifier{emit: emit}
}

func stamp(data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return data
}

func (n *notifier) toOrg(organizationID uuid.UUID, event realtime.Event, data map[string]any) {
	if n == nil || n.emit == nil || organizationID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.Message{
		Channel: realtime.OrgChannel(organizationID),
		Type:    event,
		Data:    stamp(data),
	})
}

func (n *notifier) toUser(userID uuid.UUID, event realtime.Event, data map[string]any) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.Message{
		Channel: realtime.UserChannel(userID),
		Type:    event,
		Data:    stamp(data),
	})
}

func (n *notifier) SyncStatusChanged(organizationID, connectionID uuid.UUID, status, errorMessage string) {
	data := map[string]any{
		"connection_id": connectionID.String(),
		"status":        status,
	}
	if errorMessage != "" {
		data["error"] = errorMessage
	}
	n.toOrg(organizationID, realtime.EventSyncStatus, data)
}

func (n *notifier) VerificationChanged(organizationID, connectionID uuid.UUID, status string) {
	n.toOrg(organizationID, realtime.EventVerificationStatus, map[string]any{
		"connection_id": connectionID.String(),
		"status":        status,
	})
}

func (n *notifier) IngestionStatusChanged(organizationID, runID uuid.UUID, status string) {
	n.toOrg(organizationID, realtime.EventIngestionStatus, map[string]any{
		"ingestion_run_id": runID.String(),
		"status":           status,
	})
}

func (n *notifier) IngestionProgress(organizationID, runID uuid.UUID, recordsProcessed, recordsFailed int64) {
	n.toOrg(organizationID, realtime.EventIngestionProgress, map[string]any{
		"ingestion_run_id":  runID.String(),
		"records_processed": recordsProcessed,
		"records_failed":    recordsFailed,
	})
}

func (n *notifier) DocumentStatusChanged(organizationID, documentID uuid.UUID, blobMetadataID, status string) {
	n.toOrg(organizationID, realtime.EventDocumentStatus, map[string]any{
		"document_id":      documentID.String(),
		"blob_metadata_id": blobMetadataID,
		"status":           status,
	})
}

func (n *notifier) DelegationStatusChanged(organizationID, delegationID uuid.UUID, status string) {
	n.toOrg(organizationID, realtime.EventDelegationStatus, map[string]any{
		"delegation_id": delegationID.String(),
		"status":        status,
	})
}

func (n *notifier) WorkflowCreated(userID uuid.UUID, data map[string]any) {
	n.toUser(userID, realtime.EventWorkflowCreated, data)
}

func (n *notifier) WorkflowExecuted(userID, conversationID uuid.UUID, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	if conversationID != uuid.Nil {
		data["conversation_id"] = conversationID.String()
	}
	n.toUser(userID, realtime.EventWorkflowExecuted, data)
}

func (n *notifier) WorkflowProgress(userID uuid.UUID, data map[string]any) {
	n.toUser(userID, realtime.EventWorkflowProgress, data)
}

func (n *notifier) FeatureFlagUpdated(organizationID uuid.UUID, flag string, enabled bool) {
	n.toOrg(organizationID, realtime.EventFeatureFlagUpdate, map[string]any{
		"flag":    flag,
		"enabled": enabled,
	})
}
