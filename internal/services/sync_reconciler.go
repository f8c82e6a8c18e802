package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/repos"
	"github.com/crestdesk/crestdesk-backend/internal/retry"
	"github.com/crestdesk/crestdesk-backend/internal/types"
)

const (
	SyncStatusStarted   = "sync_started"
	SyncStatusCompleted = "sync_completed"
	SyncStatusFailed    = "sync_failed"
	SyncStatusCancelled = "sync_cancelled"

	VerificationSuccess = "success"
)

type SyncStatusMessage struct {
	ConnectionID uuid.UUID
	TenantID     string
	Status       string
	Error        string
}

type VerificationMessage struct {
	ConnectionID uuid.UUID
	TenantID     string
	Status       string
	Error        string
}

// SyncReconciler applies out-of-band sync and credential-verification results
// to data source connections. All transitions are guarded; a message that
// lost the race to an earlier transition is a benign no-op, acknowledged
// without notification.
type SyncReconciler interface {
	ApplySyncStatus(ctx context.Context, msg SyncStatusMessage) error
	ApplyVerification(ctx context.Context, msg VerificationMessage) error
}

type syncReconciler struct {
	db          *gorm.DB
	log         *logger.Logger
	connections repos.ConnectionRepo
	orgs        repos.OrganizationRepo
	notifier    Notifier
	policy      retry.Policy
}

func NewSyncReconciler(db *gorm.DB, log *logger.Logger, connections repos.ConnectionRepo, orgs repos.OrganizationRepo, notifier Notifier, policy retry.Policy) SyncReconciler {
	return &syncReconciler{
		db:          db,
		log:         log.With("service", "SyncReconciler"),
		connections: connections,
		orgs:        orgs,
		notifier:    notifier,
		policy:      policy,
	}
}

// lookupConnection retries only the not-yet-visible case: the HTTP request
// that created the row may not have committed when the completion message
// lands. DB errors are returned immediately and fail the message.
func (s *syncReconciler) lookupConnection(ctx context.Context, msg uuid.UUID, tenantID string) (*types.DataSourceConnection, error) {
	var connection *types.DataSourceConnection
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		c, err := s.connections.GetByID(ctx, nil, msg)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("connection %s: %w", msg, retry.ErrNotYetVisible)
		}
		connection = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	org, err := s.orgs.GetByID(ctx, nil, connection.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("lookup organization: %w", err)
	}
	if org == nil || org.ExternalID != tenantID {
		return nil, fmt.Errorf("%w: connection %s does not belong to tenant %s", ErrValidation, connection.ID, tenantID)
	}
	return connection, nil
}

func (s *syncReconciler) ApplySyncStatus(ctx context.Context, msg SyncStatusMessage) error {
	connection, err := s.lookupConnection(ctx, msg.ConnectionID, msg.TenantID)
	if err != nil {
		return err
	}

	now := time.Now()
	var rows int64
	notify := true

	switch msg.Status {
	case SyncStatusStarted:
		rows, err = s.connections.TransitionSyncStatus(ctx, nil, connection.ID,
			[]string{types.SyncStatusIdle, types.SyncStatusCancelled},
			types.SyncStatusSyncing,
			map[string]interface{}{"last_sync_started_at": now, "last_error": ""})
	case SyncStatusCompleted:
		rows, err = s.connections.TransitionSyncStatus(ctx, nil, connection.ID,
			[]string{types.SyncStatusSyncing},
			types.SyncStatusIdle,
			map[string]interface{}{"last_synced_at": now, "last_error": ""})
	case SyncStatusFailed:
		rows, err = s.connections.TransitionSyncStatus(ctx, nil, connection.ID,
			[]string{types.SyncStatusSyncing},
			types.SyncStatusIdle,
			map[string]interface{}{"last_error": msg.Error})
	case SyncStatusCancelled:
		// User-initiated; takes precedence over whatever state the row is in.
		// The cancel originated in the UI, so no push back to it either.
		rows, err = s.connections.TransitionSyncStatus(ctx, nil, connection.ID,
			nil, types.SyncStatusCancelled, nil)
		notify = false
	default:
		return fmt.Errorf("%w: unknown sync status %q", ErrValidation, msg.Status)
	}
	if err != nil {
		return fmt.Errorf("transition connection %s to %s: %w", connection.ID, msg.Status, err)
	}
	if rows == 0 {
		s.log.Info("Sync transition was a no-op; state already advanced",
			"connectionID", connection.ID, "status", msg.Status)
		return nil
	}
	if notify {
		s.notifier.SyncStatusChanged(connection.OrganizationID, connection.ID, msg.Status, msg.Error)
	}
	return nil
}

func (s *syncReconciler) ApplyVerification(ctx context.Context, msg VerificationMessage) error {
	connection, err := s.lookupConnection(ctx, msg.ConnectionID, msg.TenantID)
	if err != nil {
		return err
	}

	status := types.VerificationFailed
	lastError := msg.Error
	if msg.Status == VerificationSuccess {
		status = types.VerificationVerified
		lastError = ""
	} else if lastError == "" {
		lastError = msg.Status
	}

	rows, err := s.connections.SetVerification(ctx, nil, connection.ID, status, lastError)
	if err != nil {
		return fmt.Errorf("set verification on connection %s: %w", connection.ID, err)
	}
	if rows == 0 {
		s.log.Info("Verification already recorded", "connectionID", connection.ID, "status", status)
		return nil
	}
	s.notifier.VerificationChanged(connection.OrganizationID, connection.ID, status)
	return nil
}
